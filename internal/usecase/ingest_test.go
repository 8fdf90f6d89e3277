package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"ctxrank/internal/adapter/embedding"
	"ctxrank/internal/adapter/fs"
	"ctxrank/internal/adapter/metadata"
	"ctxrank/internal/domain"
	"ctxrank/internal/index"
)

const bioDocJSON = `{
  "url": "https://bio.example.edu/cells",
  "title": "Cell Biology",
  "site_name": "Bio University",
  "credibility": 0.9,
  "fetched_at": "2026-08-01T10:00:00Z",
  "lang": "en",
  "sections": [
    {"heading": "Mitochondria", "page": 3, "text": "Mitochondria convert nutrients into usable chemical energy for the cell."},
    {"heading": "Note", "text": "Too short."}
  ]
}`

const geoDocJSON = `{
  "url": "https://geo.example.org/rocks",
  "title": "Rock Formations",
  "site_name": "Geology Society",
  "credibility": 0.6,
  "fetched_at": "2026-07-15T08:30:00Z",
  "sections": [
    {"heading": "Sedimentation", "page": 1, "text": "Sedimentary rocks form through deposition and compaction of mineral particles."}
  ]
}`

func writeDocFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newIngestFixture(t *testing.T) (*IngestUseCase, *metadata.MemoryStore, *index.Index, string) {
	t.Helper()
	root := t.TempDir()
	store := metadata.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ix := index.New(index.Options{}, embedding.NewMockEmbedder(64), store, logger)
	uc := NewIngestUseCase(fs.NewWalker(nil, nil), store, ix)
	return uc, store, ix, root
}

func TestIngestImportsDocumentFiles(t *testing.T) {
	uc, store, ix, root := newIngestFixture(t)
	writeDocFile(t, root, "bio.json", bioDocJSON)
	writeDocFile(t, root, "geo.json", geoDocJSON)

	var progress [][2]int
	result, err := uc.Ingest(context.Background(), root, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.FilesIngested != 2 || result.FilesFailed != 0 {
		t.Errorf("files ingested/failed = %d/%d, want 2/0", result.FilesIngested, result.FilesFailed)
	}
	if result.SectionsStored != 3 {
		t.Errorf("sections stored = %d, want 3", result.SectionsStored)
	}
	// The ten-rune note is below the indexing cutoff.
	if result.SectionsIndexed != 2 {
		t.Errorf("sections indexed = %d, want 2", result.SectionsIndexed)
	}
	if ix.Size() != 2 {
		t.Errorf("index size = %d, want 2", ix.Size())
	}
	if len(progress) != 2 || progress[0] != [2]int{1, 2} || progress[1] != [2]int{2, 2} {
		t.Errorf("progress calls = %v", progress)
	}

	ids, err := store.ListDocumentIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("stored documents = %d, want 2", len(ids))
	}

	// Section IDs are minted by position when the file omits them.
	var bioID string
	for _, id := range ids {
		doc, err := store.GetDocument(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if doc.URL == "https://bio.example.edu/cells" {
			bioID = id
			if doc.Title != "Cell Biology" || doc.Credibility != 0.9 || doc.Lang != "en" {
				t.Errorf("bio document = %+v", doc)
			}
			if doc.FetchedAt.IsZero() {
				t.Error("fetched_at not decoded")
			}
		}
	}
	if bioID == "" {
		t.Fatal("bio document not stored")
	}
	secs, err := store.GetSections(context.Background(), bioID)
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 2 || secs[0].SectionID != "s1" || secs[1].SectionID != "s2" {
		t.Errorf("bio sections = %+v", secs)
	}
	if secs[0].Heading != "Mitochondria" || secs[0].Page != 3 {
		t.Errorf("section fields = %+v", secs[0])
	}
}

func TestIngestedSectionsAreSearchable(t *testing.T) {
	uc, _, ix, root := newIngestFixture(t)
	writeDocFile(t, root, "bio.json", bioDocJSON)
	writeDocFile(t, root, "geo.json", geoDocJSON)

	if _, err := uc.Ingest(context.Background(), root, nil); err != nil {
		t.Fatal(err)
	}

	results, err := ix.SearchHybrid(context.Background(),
		"Mitochondria convert nutrients into usable chemical energy for the cell.", 5,
		domain.Weights{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Cell Biology" {
		t.Errorf("top result = %q, want Cell Biology", results[0].Title)
	}
	if results[0].SourceInfo != "Source: Cell Biology - Bio University" {
		t.Errorf("source info = %q", results[0].SourceInfo)
	}
}

func TestIngestSkipsMalformedFiles(t *testing.T) {
	uc, store, _, root := newIngestFixture(t)
	writeDocFile(t, root, "bad.json", "{not json")
	writeDocFile(t, root, "geo.json", geoDocJSON)

	result, err := uc.Ingest(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.FilesIngested != 1 || result.FilesFailed != 1 {
		t.Errorf("files ingested/failed = %d/%d, want 1/1", result.FilesIngested, result.FilesFailed)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v, want one parse failure", result.Errors)
	}

	ids, err := store.ListDocumentIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("stored documents = %d, want 1", len(ids))
	}
}

func TestIngestTwiceUpsertsByURL(t *testing.T) {
	uc, store, _, root := newIngestFixture(t)
	writeDocFile(t, root, "geo.json", geoDocJSON)

	if _, err := uc.Ingest(context.Background(), root, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.Ingest(context.Background(), root, nil); err != nil {
		t.Fatal(err)
	}

	ids, err := store.ListDocumentIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("stored documents = %d after re-ingest, want 1", len(ids))
	}
}

func TestIngestEmptyRoot(t *testing.T) {
	uc, _, _, root := newIngestFixture(t)

	result, err := uc.Ingest(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.FilesIngested != 0 || len(result.Errors) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

type failEmbedder struct{}

func (failEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedder offline")
}
func (failEmbedder) Dimension() int    { return 4 }
func (failEmbedder) ModelName() string { return "fail" }

func TestIngestAbortsOnIndexingFailure(t *testing.T) {
	root := t.TempDir()
	store := metadata.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ix := index.New(index.Options{}, failEmbedder{}, store, logger)
	uc := NewIngestUseCase(fs.NewWalker(nil, nil), store, ix)

	writeDocFile(t, root, "bio.json", bioDocJSON)
	writeDocFile(t, root, "geo.json", geoDocJSON)

	result, err := uc.Ingest(context.Background(), root, nil)
	if err == nil {
		t.Fatal("expected indexing failure to abort the run")
	}
	if result.FilesIngested != 0 || result.FilesFailed != 1 {
		t.Errorf("files ingested/failed = %d/%d, want 0/1", result.FilesIngested, result.FilesFailed)
	}
}
