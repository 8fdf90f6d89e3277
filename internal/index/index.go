package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"ctxrank/internal/domain"
	"ctxrank/internal/port"
)

// minSectionRunes is the length cutoff below which a section carries too
// little text to be worth indexing.
const minSectionRunes = 50

// Options configures an Index. Zero values fall back to the defaults
// noted per field.
type Options struct {
	// Dir is the artifact directory for Save and Load. Empty disables
	// persistence; the index then lives only in memory.
	Dir string

	// K1 and B shape the BM25 scorer. Defaults 1.5 and 0.75.
	K1 float64
	B  float64

	// Weights is the blend applied when a query carries no weights of its
	// own. Defaults to domain.DefaultWeights().
	Weights domain.Weights

	// DedupThreshold is the simhash similarity above which a candidate is
	// dropped as a near-duplicate. Default 0.85.
	DedupThreshold float64

	// MaxPerDomain caps results per registrable domain. Default 2.
	MaxPerDomain int
}

func (o Options) withDefaults() Options {
	if o.K1 == 0 {
		o.K1 = 1.5
	}
	if o.B == 0 {
		o.B = 0.75
	}
	if o.Weights == (domain.Weights{}) {
		o.Weights = domain.DefaultWeights()
	}
	if o.DedupThreshold == 0 {
		o.DedupThreshold = 0.85
	}
	if o.MaxPerDomain == 0 {
		o.MaxPerDomain = 2
	}
	return o
}

// Index is the hybrid retrieval engine. It owns one coherent snapshot of
// index state: the dense vector store, the BM25 model, the section refs
// parallel to the vectors, and the raw text corpus the BM25 model is
// rebuilt from.
//
// Ingestion and rebuild serialize on writerMu and hold mu only while
// mutating, so queries keep running against the previous snapshot during
// the slow embedding phase of a write.
type Index struct {
	opts     Options
	embedder port.Embedder
	meta     port.MetadataStore
	logger   *slog.Logger

	writerMu sync.Mutex
	mu       sync.RWMutex

	dense    *denseStore
	lexical  *bm25Index // nil until the first corpus build
	mappings []domain.SectionRef
	corpus   []string
}

// New constructs an empty index. Call Load to restore persisted state.
func New(opts Options, embedder port.Embedder, meta port.MetadataStore, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		opts:     opts.withDefaults(),
		embedder: embedder,
		meta:     meta,
		logger:   logger,
		dense:    newDenseStore(embedder.Dimension()),
	}
}

// AddSections embeds and indexes the sections of one document whose text
// exceeds minSectionRunes characters after trimming. It returns the number
// of sections indexed; zero qualifying sections is not an error and leaves
// the index untouched. Vectors, section refs, and corpus entries are
// appended in embedding order, and the BM25 model is rebuilt over the
// accumulated corpus.
func (ix *Index) AddSections(ctx context.Context, docID string, sections []domain.Section) (int, error) {
	ix.writerMu.Lock()
	defer ix.writerMu.Unlock()

	refs, texts := eligibleSections(docID, sections)
	if len(refs) == 0 {
		return 0, nil
	}

	vectors, err := ix.embedAll(ctx, texts)
	if err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.dense.add(vectors); err != nil {
		return 0, err
	}
	ix.mappings = append(ix.mappings, refs...)
	ix.corpus = append(ix.corpus, texts...)
	ix.lexical = newBM25Index(ix.corpus, ix.opts.K1, ix.opts.B)

	return len(refs), nil
}

// Rebuild discards the index state and re-derives it document by document
// from the metadata store, persisting the result before swapping it in.
// Queries keep seeing the old state until the swap; a failed rebuild
// changes nothing. Returns the number of sections indexed. progress may be
// nil.
func (ix *Index) Rebuild(ctx context.Context, progress func(done, total int)) (int, error) {
	ix.writerMu.Lock()
	defer ix.writerMu.Unlock()

	docIDs, err := ix.meta.ListDocumentIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing documents: %w", err)
	}

	dense := newDenseStore(ix.embedder.Dimension())
	var (
		mappings []domain.SectionRef
		corpus   []string
	)

	for i, docID := range docIDs {
		sections, err := ix.meta.GetSections(ctx, docID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("loading sections for %s: %w", docID, err)
		}

		refs, texts := eligibleSections(docID, sections)
		if len(refs) > 0 {
			vectors, err := ix.embedAll(ctx, texts)
			if err != nil {
				return 0, err
			}
			if err := dense.add(vectors); err != nil {
				return 0, err
			}
			mappings = append(mappings, refs...)
			corpus = append(corpus, texts...)
		}

		if progress != nil {
			progress(i+1, len(docIDs))
		}
	}

	var lexical *bm25Index
	if len(corpus) > 0 {
		lexical = newBM25Index(corpus, ix.opts.K1, ix.opts.B)
	}

	if err := ix.saveState(dense.vectors, mappings, corpus); err != nil {
		return 0, fmt.Errorf("persisting rebuilt index: %w", err)
	}

	ix.mu.Lock()
	ix.dense = dense
	ix.mappings = mappings
	ix.corpus = corpus
	ix.lexical = lexical
	ix.mu.Unlock()

	return len(mappings), nil
}

// Stats reports the current index state.
func (ix *Index) Stats() domain.IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return domain.IndexStats{
		TotalVectors:     len(ix.mappings),
		Dimension:        ix.dense.dimension,
		ModelName:        ix.embedder.ModelName(),
		IndexPath:        ix.opts.Dir,
		BM25Indexed:      ix.lexical != nil,
		BM25Texts:        len(ix.corpus),
		SimhashThreshold: ix.opts.DedupThreshold,
	}
}

// Size returns the number of indexed sections.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.mappings)
}

// Close persists the index state. The metadata store is owned by the
// caller and stays open.
func (ix *Index) Close() error {
	return ix.Save()
}

func (ix *Index) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d sections: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for _, v := range vectors {
		normalizeVector(v)
	}
	return vectors, nil
}

func eligibleSections(docID string, sections []domain.Section) ([]domain.SectionRef, []string) {
	refs := make([]domain.SectionRef, 0, len(sections))
	texts := make([]string, 0, len(sections))
	for _, s := range sections {
		if utf8.RuneCountInString(strings.TrimSpace(s.Text)) <= minSectionRunes {
			continue
		}
		refs = append(refs, domain.SectionRef{DocID: docID, SectionID: s.SectionID})
		texts = append(texts, s.Text)
	}
	return refs, texts
}
