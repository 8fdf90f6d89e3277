package index

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"ctxrank/internal/domain"
)

const (
	denseFile    = "dense.gob"
	mappingsFile = "mappings.gob"
	corpusFile   = "corpus.gob"

	artifactVersion = 1
)

// artifactHeader pins an artifact to the embedding model that produced
// it. A header mismatch on load means the vectors are incompatible with
// the configured embedder and the index must be re-ingested.
type artifactHeader struct {
	Version   int
	Model     string
	Dimension int
}

type densePayload struct {
	Header  artifactHeader
	Vectors [][]float32
}

type mappingsPayload struct {
	Header artifactHeader
	Refs   []domain.SectionRef
}

type corpusPayload struct {
	Header artifactHeader
	Texts  []string
}

func (ix *Index) header() artifactHeader {
	return artifactHeader{
		Version:   artifactVersion,
		Model:     ix.embedder.ModelName(),
		Dimension: ix.embedder.Dimension(),
	}
}

// Save writes the current index state to the configured directory. A
// blank directory disables persistence.
func (ix *Index) Save() error {
	if ix.opts.Dir == "" {
		return nil
	}

	ix.mu.RLock()
	vectors := ix.dense.vectors
	mappings := ix.mappings
	corpus := ix.corpus
	ix.mu.RUnlock()

	return ix.saveState(vectors, mappings, corpus)
}

func (ix *Index) saveState(vectors [][]float32, mappings []domain.SectionRef, corpus []string) error {
	if ix.opts.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(ix.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	header := ix.header()
	if err := writeArtifact(ix.opts.Dir, denseFile, densePayload{Header: header, Vectors: vectors}); err != nil {
		return err
	}
	if err := writeArtifact(ix.opts.Dir, mappingsFile, mappingsPayload{Header: header, Refs: mappings}); err != nil {
		return err
	}
	return writeArtifact(ix.opts.Dir, corpusFile, corpusPayload{Header: header, Texts: corpus})
}

// Load restores index state saved by a previous run. Nothing on disk is a
// fresh start, not an error. Incomplete, unreadable, or mismatched
// artifacts log a warning and leave the index empty, since serving stale
// or half-loaded state is worse than re-ingesting.
func (ix *Index) Load() error {
	if ix.opts.Dir == "" {
		return nil
	}

	present := 0
	for _, name := range []string{denseFile, mappingsFile, corpusFile} {
		if _, err := os.Stat(filepath.Join(ix.opts.Dir, name)); err == nil {
			present++
		}
	}
	if present == 0 {
		return nil
	}
	if present < 3 {
		ix.logger.Warn("index artifacts incomplete, starting empty", "dir", ix.opts.Dir)
		return nil
	}

	var (
		dense    densePayload
		mappings mappingsPayload
		corpus   corpusPayload
	)
	if err := readArtifact(ix.opts.Dir, denseFile, &dense); err != nil {
		ix.logger.Warn("loading dense artifact failed, starting empty", "error", err)
		return nil
	}
	if err := readArtifact(ix.opts.Dir, mappingsFile, &mappings); err != nil {
		ix.logger.Warn("loading mappings artifact failed, starting empty", "error", err)
		return nil
	}
	if err := readArtifact(ix.opts.Dir, corpusFile, &corpus); err != nil {
		ix.logger.Warn("loading corpus artifact failed, starting empty", "error", err)
		return nil
	}

	want := ix.header()
	for _, h := range []artifactHeader{dense.Header, mappings.Header, corpus.Header} {
		if h != want {
			ix.logger.Warn("index artifacts do not match the configured embedder, starting empty",
				"artifact_model", h.Model, "artifact_dimension", h.Dimension,
				"model", want.Model, "dimension", want.Dimension)
			return nil
		}
	}

	if len(dense.Vectors) != len(mappings.Refs) || len(mappings.Refs) != len(corpus.Texts) {
		ix.logger.Warn("index artifacts disagree on entry count, starting empty",
			"vectors", len(dense.Vectors), "mappings", len(mappings.Refs), "texts", len(corpus.Texts))
		return nil
	}

	var lexical *bm25Index
	if len(corpus.Texts) > 0 {
		lexical = newBM25Index(corpus.Texts, ix.opts.K1, ix.opts.B)
	}

	ix.mu.Lock()
	ix.dense = &denseStore{dimension: want.Dimension, vectors: dense.Vectors}
	ix.mappings = mappings.Refs
	ix.corpus = corpus.Texts
	ix.lexical = lexical
	ix.mu.Unlock()

	return nil
}

// writeArtifact encodes payload to a temp file in dir and renames it over
// name, so readers never observe a partially written artifact.
func writeArtifact(dir, name string, payload any) error {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

func readArtifact(dir, name string, payload any) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(payload); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}
