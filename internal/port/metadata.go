package port

import (
	"context"

	"ctxrank/internal/domain"
)

// MetadataStore persists fetched documents and their sections. Lookups
// that miss return domain.ErrNotFound; any other error is a store failure.
type MetadataStore interface {
	// PutDocument inserts the document or, when one with the same URL
	// already exists, updates it in place. Returns the stored document ID.
	PutDocument(ctx context.Context, doc domain.Document) (string, error)

	GetDocument(ctx context.Context, docID string) (domain.Document, error)

	// PutSections replaces the stored sections of the document.
	PutSections(ctx context.Context, docID string, sections []domain.Section) error

	GetSections(ctx context.Context, docID string) ([]domain.Section, error)

	// ListDocumentIDs returns all document IDs in lexicographic order so
	// rebuilds walk the corpus deterministically.
	ListDocumentIDs(ctx context.Context) ([]string, error)

	Close() error
}
