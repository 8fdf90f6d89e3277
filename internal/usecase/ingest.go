package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"ctxrank/internal/domain"
	"ctxrank/internal/index"
	"ctxrank/internal/port"
)

// IngestUseCase imports fetched-document JSON files: metadata and sections
// go to the store, eligible sections into the index.
type IngestUseCase struct {
	walker port.FileWalker
	meta   port.MetadataStore
	index  *index.Index
}

func NewIngestUseCase(walker port.FileWalker, meta port.MetadataStore, ix *index.Index) *IngestUseCase {
	return &IngestUseCase{
		walker: walker,
		meta:   meta,
		index:  ix,
	}
}

// IngestResult contains the results of an ingest operation.
type IngestResult struct {
	FilesIngested   int
	FilesFailed     int
	SectionsStored  int
	SectionsIndexed int
	Errors          []string
}

// documentFile is the on-disk shape of one fetched document.
type documentFile struct {
	domain.Document
	Sections []domain.Section `json:"sections"`
}

// Ingest walks root for document files and imports each one. Per-file read,
// decode, and store errors are collected and skipped; an indexing error
// aborts the run since every later file would hit the same embedder.
// progress may be nil.
func (u *IngestUseCase) Ingest(ctx context.Context, root string, progress func(done, total int)) (*IngestResult, error) {
	result := &IngestResult{}

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	for i, file := range files {
		if err := u.ingestFile(ctx, file.Path, result); err != nil {
			return result, err
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}

	return result, nil
}

// ingestFile imports a single document file. Only indexing errors are
// returned; everything else lands in result.Errors.
func (u *IngestUseCase) ingestFile(ctx context.Context, path string, result *IngestResult) error {
	data, err := os.ReadFile(path)
	if err != nil {
		result.FilesFailed++
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read %s: %v", path, err))
		return nil
	}

	var f documentFile
	if err := json.Unmarshal(data, &f); err != nil {
		result.FilesFailed++
		result.Errors = append(result.Errors, fmt.Sprintf("failed to parse %s: %v", path, err))
		return nil
	}

	docID, err := u.meta.PutDocument(ctx, f.Document)
	if err != nil {
		result.FilesFailed++
		result.Errors = append(result.Errors, fmt.Sprintf("failed to store document %s: %v", path, err))
		return nil
	}

	sections := f.Sections
	for i := range sections {
		sections[i].DocID = docID
		if sections[i].SectionID == "" {
			sections[i].SectionID = fmt.Sprintf("s%d", i+1)
		}
	}
	if err := u.meta.PutSections(ctx, docID, sections); err != nil {
		result.FilesFailed++
		result.Errors = append(result.Errors, fmt.Sprintf("failed to store sections for %s: %v", path, err))
		return nil
	}

	indexed, err := u.index.AddSections(ctx, docID, sections)
	if err != nil {
		result.FilesFailed++
		result.Errors = append(result.Errors, fmt.Sprintf("failed to index %s: %v", path, err))
		return fmt.Errorf("failed to index %s: %w", path, err)
	}

	result.FilesIngested++
	result.SectionsStored += len(sections)
	result.SectionsIndexed += indexed
	return nil
}
