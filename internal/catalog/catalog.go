// Package catalog provides a SQLite-backed record of indexed documents
// and indexing runs. The vector store holds the searchable points; the
// catalog answers "what has been indexed, when, and how well" for the
// info command and the API without a round trip through Qdrant.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Document is a catalog row describing one indexed manual.
type Document struct {
	// ID is the document identifier used in point payloads.
	ID string
	// Title is the manual title.
	Title string
	// Revision is the manual revision string.
	Revision string
	// Manufacturer is the equipment manufacturer.
	Manufacturer string
	// Pages is the page count of the most recent indexing run.
	Pages int
	// LastIndexedAt is when the document was last indexed.
	LastIndexedAt time.Time
}

// Run records the outcome of one indexing run.
type Run struct {
	// DocumentID identifies the indexed document.
	DocumentID string
	// Attempted is the number of pages the run tried to index.
	Attempted int
	// Succeeded is the number of pages written to the vector store.
	Succeeded int
	// Failed is the number of pages skipped due to per-page errors.
	Failed int
	// StartedAt is when the run began.
	StartedAt time.Time
	// FinishedAt is when the run ended.
	FinishedAt time.Time
}

// Catalog persists document and run records. Safe for concurrent use.
type Catalog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default catalog database path. It resolves to
// catalog.db under the local cache directory (MANUALQA_CACHE_DIR, falling
// back to ~/.manualqa), creating the directory if needed.
func DefaultDBPath() (string, error) {
	dir := os.Getenv("MANUALQA_CACHE_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".manualqa")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a Catalog at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Catalog, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// migrate creates the schema if it does not already exist.
func (c *Catalog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id            TEXT    PRIMARY KEY,
    title         TEXT    NOT NULL,
    revision      TEXT    NOT NULL DEFAULT '',
    manufacturer  TEXT    NOT NULL DEFAULT '',
    pages         INTEGER NOT NULL DEFAULT 0,
    last_indexed  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS runs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id  TEXT    NOT NULL REFERENCES documents(id),
    attempted    INTEGER NOT NULL,
    succeeded    INTEGER NOT NULL,
    failed       INTEGER NOT NULL,
    started_at   INTEGER NOT NULL,
    finished_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_document_started
    ON runs (document_id, started_at);
`
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// RecordRun upserts the document row and appends a run record in one
// transaction.
func (c *Catalog) RecordRun(ctx context.Context, doc Document, run Run) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
INSERT INTO documents (id, title, revision, manufacturer, pages, last_indexed)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    revision = excluded.revision,
    manufacturer = excluded.manufacturer,
    pages = excluded.pages,
    last_indexed = excluded.last_indexed`
	if _, err := tx.ExecContext(ctx, upsert,
		doc.ID, doc.Title, doc.Revision, doc.Manufacturer, run.Attempted, run.FinishedAt.Unix()); err != nil {
		return fmt.Errorf("catalog: upsert document: %w", err)
	}

	const insert = `
INSERT INTO runs (document_id, attempted, succeeded, failed, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert,
		doc.ID, run.Attempted, run.Succeeded, run.Failed,
		run.StartedAt.Unix(), run.FinishedAt.Unix()); err != nil {
		return fmt.Errorf("catalog: insert run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	return nil
}

// Documents returns every cataloged document, most recently indexed first.
func (c *Catalog) Documents(ctx context.Context) ([]Document, error) {
	const q = `
SELECT id, title, revision, manufacturer, pages, last_indexed
FROM documents
ORDER BY last_indexed DESC, id ASC`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var ts int64
		if err := rows.Scan(&d.ID, &d.Title, &d.Revision, &d.Manufacturer, &d.Pages, &ts); err != nil {
			return nil, fmt.Errorf("catalog: scan document: %w", err)
		}
		d.LastIndexedAt = time.Unix(ts, 0)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate documents: %w", err)
	}
	return docs, nil
}

// Runs returns the run history for one document, newest first, capped at n.
func (c *Catalog) Runs(ctx context.Context, documentID string, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}
	const q = `
SELECT document_id, attempted, succeeded, failed, started_at, finished_at
FROM runs
WHERE document_id = ?
ORDER BY started_at DESC
LIMIT ?`
	rows, err := c.db.QueryContext(ctx, q, documentID, n)
	if err != nil {
		return nil, fmt.Errorf("catalog: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.DocumentID, &r.Attempted, &r.Succeeded, &r.Failed, &started, &finished); err != nil {
			return nil, fmt.Errorf("catalog: scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		r.FinishedAt = time.Unix(finished, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate runs: %w", err)
	}
	return runs, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}
