package index

import (
	"hash/fnv"
	"math/bits"
)

// simhash computes a 64-bit locality-sensitive fingerprint of text. Every
// token votes on each bit position through its FNV-1a hash, so texts
// sharing most of their tokens land within a small Hamming distance of
// each other.
func simhash(text string) uint64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	var counts [64]int
	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		for bit := uint(0); bit < 64; bit++ {
			if sum&(1<<bit) != 0 {
				counts[bit]++
			} else {
				counts[bit]--
			}
		}
	}

	var fingerprint uint64
	for bit := uint(0); bit < 64; bit++ {
		if counts[bit] > 0 {
			fingerprint |= 1 << bit
		}
	}
	return fingerprint
}

// hammingSimilarity converts the Hamming distance of two fingerprints into
// a similarity in [0, 1], where 1 means identical fingerprints.
func hammingSimilarity(a, b uint64) float64 {
	return 1 - float64(bits.OnesCount64(a^b))/64
}

// dedupeNearDuplicates walks score-ordered candidates and drops any whose
// fingerprint is more similar than threshold to one already kept. Earlier,
// higher-scored entries always win over later near-duplicates. Candidates
// without section text carry no usable fingerprint and pass through
// uncompared.
func dedupeNearDuplicates(cands []candidate, threshold float64) []candidate {
	if len(cands) == 0 {
		return cands
	}

	kept := make([]candidate, 0, len(cands))
	seen := make([]uint64, 0, len(cands))

	for _, c := range cands {
		if c.text == "" {
			kept = append(kept, c)
			continue
		}

		fp := simhash(c.text)
		duplicate := false
		for _, s := range seen {
			if hammingSimilarity(fp, s) > threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		kept = append(kept, c)
		seen = append(seen, fp)
	}

	return kept
}
