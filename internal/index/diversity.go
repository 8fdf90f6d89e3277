package index

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// registrableDomain reduces a URL to its public-suffix-plus-one label, so
// docs.example.co.uk and blog.example.co.uk count as the same source.
// Single-label hosts the suffix list cannot split count as themselves, and
// strings that do not parse as URLs pass through unchanged.
func registrableDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	host := strings.ToLower(u.Hostname())

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// capByDomain keeps at most maxPerDomain candidates per registrable
// domain, preserving order among the kept. maxPerDomain <= 0 disables the
// cap.
func capByDomain(cands []candidate, maxPerDomain int) []candidate {
	if maxPerDomain <= 0 || len(cands) == 0 {
		return cands
	}

	counts := make(map[string]int)
	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		domain := registrableDomain(c.url)
		if counts[domain] >= maxPerDomain {
			continue
		}
		counts[domain]++
		kept = append(kept, c)
	}
	return kept
}
