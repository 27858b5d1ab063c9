// Package catalog records received uploads in a SQLite database: one
// row per successfully ingested file with its original name, kind, size,
// and BLAKE3 content digest. The history is what the review UI and the
// `history` CLI command read.
package catalog

import (
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/lexdrop/lexdrop/core/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS ingests (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	size_bytes  INTEGER NOT NULL,
	blake3      TEXT NOT NULL,
	received_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingests_received_at ON ingests(received_at);
`

// Entry is one recorded ingest.
type Entry struct {
	ID         string
	Filename   string
	Kind       string
	SizeBytes  int64
	Digest     string
	ReceivedAt time.Time
}

// Catalog is an open ingest history database.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create catalog schema")
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Record inserts one ingest row and returns its generated ID. The BLAKE3
// digest is computed here so callers only hand over the raw bytes.
func (c *Catalog) Record(filename, kind string, data []byte) (Entry, error) {
	sum := blake3.Sum256(data)
	e := Entry{
		ID:         uuid.New().String(),
		Filename:   filename,
		Kind:       kind,
		SizeBytes:  int64(len(data)),
		Digest:     hex.EncodeToString(sum[:]),
		ReceivedAt: time.Now().UTC(),
	}
	_, err := c.db.Exec(
		"INSERT INTO ingests (id, filename, kind, size_bytes, blake3, received_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, e.Filename, e.Kind, e.SizeBytes, e.Digest, e.ReceivedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Entry{}, errors.Wrap(err, "record ingest of %s", filename)
	}
	return e, nil
}

// Recent returns the most recent n entries, newest first.
func (c *Catalog) Recent(n int) ([]Entry, error) {
	rows, err := c.db.Query(
		"SELECT id, filename, kind, size_bytes, blake3, received_at FROM ingests ORDER BY received_at DESC, id LIMIT ?", n)
	if err != nil {
		return nil, errors.Wrap(err, "query recent ingests")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &e.Filename, &e.Kind, &e.SizeBytes, &e.Digest, &ts); err != nil {
			return nil, errors.Wrap(err, "scan ingest row")
		}
		e.ReceivedAt, _ = time.Parse(time.RFC3339, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the total number of recorded ingests.
func (c *Catalog) Count() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM ingests").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count ingests")
	}
	return n, nil
}
