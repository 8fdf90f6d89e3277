package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ctxrank/internal/domain"
)

// SQLiteStore persists documents and sections in a SQLite database. It
// suits deployments where the metadata should be inspectable with
// standard tooling.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		site_name TEXT NOT NULL DEFAULT '',
		credibility REAL NOT NULL DEFAULT 0,
		fetched_at INTEGER NOT NULL DEFAULT 0,
		lang TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_url
		ON documents(url) WHERE url <> '';

	CREATE TABLE IF NOT EXISTS sections (
		doc_id TEXT NOT NULL,
		section_id TEXT NOT NULL,
		heading TEXT NOT NULL DEFAULT '',
		page INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (doc_id, section_id)
	);
`

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite does not support concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) PutDocument(ctx context.Context, doc domain.Document) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	docID := doc.ID
	if doc.URL != "" {
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE url = ?`, doc.URL).Scan(&existing)
		switch {
		case err == nil:
			docID = existing
		case !errors.Is(err, sql.ErrNoRows):
			return "", fmt.Errorf("looking up document by url: %w", err)
		}
	}
	if docID == "" {
		docID = uuid.NewString()
	}

	var fetchedAt int64
	if !doc.FetchedAt.IsZero() {
		fetchedAt = doc.FetchedAt.Unix()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, url, title, site_name, credibility, fetched_at, lang)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			site_name = excluded.site_name,
			credibility = excluded.credibility,
			fetched_at = excluded.fetched_at,
			lang = excluded.lang
	`, docID, doc.URL, doc.Title, doc.SiteName, doc.Credibility, fetchedAt, doc.Lang)
	if err != nil {
		return "", fmt.Errorf("upserting document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing document: %w", err)
	}
	return docID, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, docID string) (domain.Document, error) {
	var (
		doc       domain.Document
		fetchedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, url, title, site_name, credibility, fetched_at, lang
		FROM documents WHERE id = ?
	`, docID).Scan(&doc.ID, &doc.URL, &doc.Title, &doc.SiteName, &doc.Credibility, &fetchedAt, &doc.Lang)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("loading document %s: %w", docID, err)
	}
	if fetchedAt > 0 {
		doc.FetchedAt = time.Unix(fetchedAt, 0)
	}
	return doc, nil
}

func (s *SQLiteStore) PutSections(ctx context.Context, docID string, sections []domain.Section) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("clearing sections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections (doc_id, section_id, heading, page, content, position)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing section insert: %w", err)
	}
	defer stmt.Close()

	for i, sec := range sections {
		if _, err := stmt.ExecContext(ctx, docID, sec.SectionID, sec.Heading, sec.Page, sec.Text, i); err != nil {
			return fmt.Errorf("inserting section %s: %w", sec.SectionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sections: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSections(ctx context.Context, docID string) ([]domain.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT section_id, heading, page, content
		FROM sections WHERE doc_id = ? ORDER BY position
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("loading sections for %s: %w", docID, err)
	}
	defer rows.Close()

	var sections []domain.Section
	for rows.Next() {
		sec := domain.Section{DocID: docID}
		if err := rows.Scan(&sec.SectionID, &sec.Heading, &sec.Page, &sec.Text); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if sections == nil {
		return nil, domain.ErrNotFound
	}
	return sections, nil
}

func (s *SQLiteStore) ListDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
