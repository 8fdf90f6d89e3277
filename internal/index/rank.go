package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ctxrank/internal/domain"
	"ctxrank/internal/port"
)

// candidate is one section moving through the ranking pipeline, carrying
// its retrieval scores and joined metadata.
type candidate struct {
	ref      domain.SectionRef
	denseRaw float64 // inner product in [-1, 1], 0 when dense missed
	lexRaw   float64 // unbounded BM25 score, 0 when lexical missed

	denseNorm float64
	lexNorm   float64
	cred      float64
	fresh     float64
	score     float64

	hasMeta bool
	url     string
	title   string
	site    string
	heading string
	text    string
	page    int
}

// SearchHybrid ranks indexed sections against the query and returns at
// most k results. Both index legs over-fetch 2k candidates, scores are
// normalized and blended with the given weights, near-duplicates and
// over-represented domains are filtered, and the survivors come back
// enriched with document metadata.
//
// An empty or whitespace-only query, k <= 0, or an empty index all return
// an empty result with no error. A zero-value weights argument falls back
// to the engine's configured weights. One failing metadata row skips that
// candidate only; the query carries on.
func (ix *Index) SearchHybrid(ctx context.Context, query string, k int, weights domain.Weights) ([]domain.SearchResult, error) {
	results := []domain.SearchResult{}

	if strings.TrimSpace(query) == "" || k <= 0 {
		return results, nil
	}
	if weights == (domain.Weights{}) {
		weights = ix.opts.Weights
	}

	// Snapshot the index state. Appends never mutate existing entries and
	// rebuilds swap whole structures, so these headers stay coherent after
	// the lock is released and the query never reads past them.
	ix.mu.RLock()
	snapshot := &denseStore{dimension: ix.dense.dimension, vectors: ix.dense.vectors}
	lexical := ix.lexical
	mappings := ix.mappings
	ix.mu.RUnlock()

	if len(mappings) == 0 {
		return results, nil
	}

	embedded, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(embedded) == 0 {
		return nil, errors.New("embedder returned no vector for query")
	}
	queryVec := embedded[0]
	normalizeVector(queryVec)

	fetch := 2 * k
	var denseHits, lexHits []positionScore

	var g errgroup.Group
	g.Go(func() error {
		hits, err := snapshot.search(queryVec, fetch)
		if err != nil {
			return err
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		if lexical != nil {
			lexHits = lexical.search(tokenize(query), fetch)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byPos := make(map[int]*candidate, len(denseHits)+len(lexHits))
	for _, h := range denseHits {
		byPos[h.position] = &candidate{ref: mappings[h.position], denseRaw: h.score}
	}

	var maxLex float64
	for _, h := range lexHits {
		if h.score > maxLex {
			maxLex = h.score
		}
	}
	for _, h := range lexHits {
		c, ok := byPos[h.position]
		if !ok {
			c = &candidate{ref: mappings[h.position]}
			byPos[h.position] = c
		}
		c.lexRaw = h.score
	}

	now := time.Now()
	joiner := newSectionJoiner(ix.meta)

	cands := make([]candidate, 0, len(byPos))
	for _, c := range byPos {
		meta, found, err := joiner.lookup(ctx, c.ref)
		if err != nil {
			ix.logger.Warn("metadata lookup failed, skipping candidate",
				"doc_id", c.ref.DocID, "section_id", c.ref.SectionID, "error", err)
			continue
		}
		if found {
			c.hasMeta = true
			c.url = meta.doc.URL
			c.title = meta.doc.Title
			c.site = meta.doc.SiteName
			c.heading = meta.section.Heading
			c.text = meta.section.Text
			c.page = meta.section.Page
			c.cred = meta.doc.Credibility
			c.fresh = freshnessScore(meta.doc.FetchedAt, now)
		} else {
			// Row is gone but the candidate still ranks on neutral source
			// scores rather than vanishing from the result set.
			c.cred = 0.5
			c.fresh = 0.5
		}

		c.denseNorm = clamp01((c.denseRaw + 1) / 2)
		if maxLex > 0 {
			c.lexNorm = clamp01(c.lexRaw / maxLex)
		}
		c.score = weights.Vector*c.denseNorm +
			weights.Lexical*c.lexNorm +
			weights.Credibility*c.cred +
			weights.Freshness*c.fresh

		cands = append(cands, *c)
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].ref.DocID != cands[j].ref.DocID {
			return cands[i].ref.DocID < cands[j].ref.DocID
		}
		return cands[i].ref.SectionID < cands[j].ref.SectionID
	})

	cands = dedupeNearDuplicates(cands, ix.opts.DedupThreshold)
	cands = capByDomain(cands, ix.opts.MaxPerDomain)
	if len(cands) > k {
		cands = cands[:k]
	}

	for i, c := range cands {
		title, site := c.title, c.site
		if !c.hasMeta {
			title, site = "Unknown", "Unknown"
		}
		results = append(results, domain.SearchResult{
			Rank:       i + 1,
			Score:      c.score,
			URL:        c.url,
			Title:      c.title,
			SiteName:   c.site,
			Heading:    c.heading,
			Content:    c.text,
			Page:       c.page,
			SourceInfo: fmt.Sprintf("Source: %s - %s", title, site),
			Details: domain.RankingDetails{
				VectorScore:      c.denseNorm,
				BM25Score:        c.lexNorm,
				CredibilityScore: c.cred,
				FreshnessScore:   c.fresh,
			},
		})
	}

	return results, nil
}

type joinedSection struct {
	doc     domain.Document
	section domain.Section
}

// sectionJoiner batches metadata lookups per query so candidates sharing
// a document hit the store once.
type sectionJoiner struct {
	meta port.MetadataStore
	docs map[string]*joinedDoc
}

type joinedDoc struct {
	doc      domain.Document
	sections map[string]domain.Section
	found    bool
}

func newSectionJoiner(meta port.MetadataStore) *sectionJoiner {
	return &sectionJoiner{meta: meta, docs: make(map[string]*joinedDoc)}
}

// lookup resolves a section ref. found is false when the document or the
// section is gone from the store; an error means the store itself failed.
func (j *sectionJoiner) lookup(ctx context.Context, ref domain.SectionRef) (joinedSection, bool, error) {
	entry, ok := j.docs[ref.DocID]
	if !ok {
		doc, err := j.meta.GetDocument(ctx, ref.DocID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				j.docs[ref.DocID] = &joinedDoc{}
				return joinedSection{}, false, nil
			}
			return joinedSection{}, false, err
		}

		sections, err := j.meta.GetSections(ctx, ref.DocID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return joinedSection{}, false, err
		}

		entry = &joinedDoc{doc: doc, sections: make(map[string]domain.Section, len(sections)), found: true}
		for _, s := range sections {
			entry.sections[s.SectionID] = s
		}
		j.docs[ref.DocID] = entry
	}

	if !entry.found {
		return joinedSection{}, false, nil
	}
	section, ok := entry.sections[ref.SectionID]
	if !ok {
		return joinedSection{}, false, nil
	}
	return joinedSection{doc: entry.doc, section: section}, true, nil
}

// freshnessScore decays with content age on a 365-day scale, floored at
// 0.1 so stale content never zeroes out entirely and capped at 1.0.
// Unknown fetch times score a neutral 0.5.
func freshnessScore(fetchedAt, now time.Time) float64 {
	if fetchedAt.IsZero() {
		return 0.5
	}
	days := now.Sub(fetchedAt).Hours() / 24
	score := math.Exp(-days / 365)
	if score < 0.1 {
		return 0.1
	}
	if score > 1 {
		return 1
	}
	return score
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
