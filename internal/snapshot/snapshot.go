// Package snapshot persists fetched documents in SQLite so a restart
// can warm the cache without refetching the corpus. It is an optional
// layer: the pipeline runs memory-only when no snapshot path is
// configured.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halvard/muninn/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	category   TEXT NOT NULL,
	id         TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	sequence   INTEGER NOT NULL DEFAULT 0,
	metadata   TEXT NOT NULL DEFAULT '{}',
	body       TEXT NOT NULL DEFAULT '',
	preview    TEXT NOT NULL DEFAULT '',
	source_uri TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	fetched_at DATETIME NOT NULL,
	PRIMARY KEY (category, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_fetched_at ON documents(fetched_at);
`

// Store wraps a sql.DB with snapshot-specific operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("snapshot: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Upsert inserts or replaces a document row.
func (s *Store) Upsert(doc *models.Document) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("snapshot: marshal metadata: %w", err)
	}
	_, err = s.conn.Exec(`
		INSERT INTO documents (category, id, title, status, sequence, metadata, body, preview, source_uri, checksum, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, id) DO UPDATE SET
			title      = excluded.title,
			status     = excluded.status,
			sequence   = excluded.sequence,
			metadata   = excluded.metadata,
			body       = excluded.body,
			preview    = excluded.preview,
			source_uri = excluded.source_uri,
			checksum   = excluded.checksum,
			fetched_at = excluded.fetched_at
	`, string(doc.Category), doc.ID, doc.Title, doc.Status, doc.Sequence, string(metaJSON),
		doc.Body, doc.Preview, doc.SourceURI, doc.Checksum, doc.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("snapshot: upsert document: %w", err)
	}
	return nil
}

// All returns every stored document in canonical order, for warming the
// cache on boot.
func (s *Store) All() ([]*models.Document, error) {
	rows, err := s.conn.Query(`
		SELECT category, id, title, status, sequence, metadata, body, preview, source_uri, checksum, fetched_at
		FROM documents
		ORDER BY category, sequence, id
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: all documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		var d models.Document
		var category, metaJSON string
		if err := rows.Scan(&category, &d.ID, &d.Title, &d.Status, &d.Sequence, &metaJSON,
			&d.Body, &d.Preview, &d.SourceURI, &d.Checksum, &d.FetchedAt); err != nil {
			return nil, fmt.Errorf("snapshot: scan document: %w", err)
		}
		d.Category = models.Category(category)
		if metaJSON != "" && metaJSON != "{}" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &d.Metadata); err != nil {
				return nil, fmt.Errorf("snapshot: decode metadata for %s/%s: %w", category, d.ID, err)
			}
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Delete removes a stored document if present.
func (s *Store) Delete(category models.Category, id string) error {
	if _, err := s.conn.Exec(`DELETE FROM documents WHERE category = ? AND id = ?`, string(category), id); err != nil {
		return fmt.Errorf("snapshot: delete document: %w", err)
	}
	return nil
}

// Prune removes documents fetched before the cutoff and reports how
// many went away.
func (s *Store) Prune(before time.Time) (int, error) {
	res, err := s.conn.Exec(`DELETE FROM documents WHERE fetched_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("snapshot: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("snapshot: prune rows affected: %w", err)
	}
	return int(n), nil
}

// Count reports the number of stored documents.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("snapshot: count: %w", err)
	}
	return n, nil
}
