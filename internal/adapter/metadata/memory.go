package metadata

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ctxrank/internal/domain"
)

// MemoryStore keeps documents and sections in process memory. It backs
// tests and throwaway runs where nothing needs to survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]domain.Document
	sections map[string][]domain.Section
	byURL    map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]domain.Document),
		sections: make(map[string][]domain.Section),
		byURL:    make(map[string]string),
	}
}

func (s *MemoryStore) PutDocument(_ context.Context, doc domain.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byURL[doc.URL]; ok && doc.URL != "" {
		doc.ID = existing
	} else if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	s.docs[doc.ID] = doc
	if doc.URL != "" {
		s.byURL[doc.URL] = doc.ID
	}
	return doc.ID, nil
}

func (s *MemoryStore) GetDocument(_ context.Context, docID string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docID]
	if !ok {
		return domain.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) PutSections(_ context.Context, docID string, sections []domain.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]domain.Section, len(sections))
	copy(copied, sections)
	s.sections[docID] = copied
	return nil
}

func (s *MemoryStore) GetSections(_ context.Context, docID string) ([]domain.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sections, ok := s.sections[docID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.Section, len(sections))
	copy(out, sections)
	for i := range out {
		out[i].DocID = docID
	}
	return out, nil
}

func (s *MemoryStore) ListDocumentIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
