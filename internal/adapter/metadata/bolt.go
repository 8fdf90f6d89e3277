package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"ctxrank/internal/domain"
)

// schemaVersion marks the storage layout. Increment on breaking changes
// to the record format.
const schemaVersion = 1

var (
	bucketDocuments = []byte("documents")
	bucketSections  = []byte("sections")
	bucketURLIndex  = []byte("url_index")
	bucketMeta      = []byte("meta")
	keyVersion      = []byte("schema_version")
)

// BoltStore persists documents and sections in a single-file bbolt
// database. Sections are stored as one JSON array per document, matching
// the replace-all semantics of PutSections.
type BoltStore struct {
	db *bbolt.DB
}

type docRecord struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	SiteName    string  `json:"site_name"`
	Credibility float64 `json:"credibility"`
	FetchedAt   int64   `json:"fetched_at"`
	Lang        string  `json:"lang,omitempty"`
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketSections, bucketURLIndex, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		if data := meta.Get(keyVersion); data != nil {
			var version int
			if err := json.Unmarshal(data, &version); err != nil {
				return fmt.Errorf("reading schema version: %w", err)
			}
			if version > schemaVersion {
				return fmt.Errorf("database created by newer version (v%d > v%d)", version, schemaVersion)
			}
			return nil
		}
		data, err := json.Marshal(schemaVersion)
		if err != nil {
			return err
		}
		return meta.Put(keyVersion, data)
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) PutDocument(_ context.Context, doc domain.Document) (string, error) {
	docID := doc.ID
	err := s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		urls := tx.Bucket(bucketURLIndex)

		if doc.URL != "" {
			if existing := urls.Get([]byte(doc.URL)); existing != nil {
				docID = string(existing)
			}
		}
		if docID == "" {
			docID = uuid.NewString()
		}

		// Drop the stale URL mapping when a document moves.
		if prev := docs.Get([]byte(docID)); prev != nil {
			var old docRecord
			if err := json.Unmarshal(prev, &old); err == nil && old.URL != "" && old.URL != doc.URL {
				if err := urls.Delete([]byte(old.URL)); err != nil {
					return err
				}
			}
		}

		rec := docRecord{
			URL:         doc.URL,
			Title:       doc.Title,
			SiteName:    doc.SiteName,
			Credibility: doc.Credibility,
			Lang:        doc.Lang,
		}
		if !doc.FetchedAt.IsZero() {
			rec.FetchedAt = doc.FetchedAt.Unix()
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := docs.Put([]byte(docID), data); err != nil {
			return err
		}
		if doc.URL != "" {
			return urls.Put([]byte(doc.URL), []byte(docID))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return docID, nil
}

func (s *BoltStore) GetDocument(_ context.Context, docID string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(docID))
		if data == nil {
			return domain.ErrNotFound
		}
		var rec docRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decoding document %s: %w", docID, err)
		}
		doc = domain.Document{
			ID:          docID,
			URL:         rec.URL,
			Title:       rec.Title,
			SiteName:    rec.SiteName,
			Credibility: rec.Credibility,
			Lang:        rec.Lang,
		}
		if rec.FetchedAt > 0 {
			doc.FetchedAt = time.Unix(rec.FetchedAt, 0)
		}
		return nil
	})
	return doc, err
}

func (s *BoltStore) PutSections(_ context.Context, docID string, sections []domain.Section) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(sections)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSections).Put([]byte(docID), data)
	})
}

func (s *BoltStore) GetSections(_ context.Context, docID string) ([]domain.Section, error) {
	var sections []domain.Section
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSections).Get([]byte(docID))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &sections)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("decoding sections for %s: %w", docID, err)
	}
	for i := range sections {
		sections[i].DocID = docID
	}
	return sections, nil
}

func (s *BoltStore) ListDocumentIDs(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		// Bolt iterates keys in byte order, so IDs come back sorted.
		return tx.Bucket(bucketDocuments).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
