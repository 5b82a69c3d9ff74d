// Package store provides the embedded, SQLite-backed vector store used by
// default. One store lives in one directory as <dir>/index.db; each record
// keeps the chunk text, its metadata as JSON and its vector as a
// little-endian float32 BLOB. Queries scan every record and rank by cosine
// distance, which is adequate for the small corpora this tool targets.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/ragdemo-go/internal/rag"
)

// DefaultDir is the persistence directory used when none is configured.
const DefaultDir = "./chroma-store"

// DBFile is the database file name inside the store directory.
const DBFile = "index.db"

// metaDimension is the meta table key holding the fixed vector size.
const metaDimension = "dimension"

// SQLiteStore is a rag.VectorStore backed by a local SQLite database.
// It is not safe for concurrent writers across processes.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// dir is the store directory, or ":memory:".
	dir string
}

var _ rag.VectorStore = (*SQLiteStore)(nil)

// Create opens (or creates) the store in dir for a build.
func Create(dir string) (*SQLiteStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return open(filepath.Join(dir, DBFile), dir)
}

// OpenExisting opens a store previously written by Create. It returns an
// error wrapping rag.ErrStoreNotFound when dir or its database is missing.
func OpenExisting(dir string) (*SQLiteStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	path := filepath.Join(dir, DBFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("store: %s: %w (run `ragdemo build` first)", dir, rag.ErrStoreNotFound)
		}
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}
	return open(path, dir)
}

// OpenMemory opens an in-memory store for tests.
func OpenMemory() (*SQLiteStore, error) {
	return open(":memory:", ":memory:")
}

func open(path, dir string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases intact and serialises writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dir: dir}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
    seq       INTEGER PRIMARY KEY AUTOINCREMENT,
    id        TEXT    NOT NULL UNIQUE,
    content   TEXT    NOT NULL,
    source    TEXT    NOT NULL,
    metadata  TEXT    NOT NULL,  -- JSON object
    embedding BLOB    NOT NULL   -- little-endian float32
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Location returns the store directory.
func (s *SQLiteStore) Location() string { return s.dir }

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Upsert replaces every record with docs inside one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []rag.Document, embeddings [][]float32) error {
	dim, err := rag.CheckBatch(docs, embeddings)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("store: clear records: %w", err)
	}
	// Reset the sequence so insertion order restarts at 1 after a rebuild.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'records'`); err != nil {
		return fmt.Errorf("store: reset sequence: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaDimension, strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("store: write dimension: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (id, content, source, metadata, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		meta := doc.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("store: encode metadata for %q: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Content, doc.Source, string(metaJSON), encodeVector(embeddings[i])); err != nil {
			return fmt.Errorf("store: insert %q: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Query returns the k records nearest to vector by cosine distance. Equal
// distances keep insertion order.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]rag.Document, error) {
	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []rag.Document{}, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("store: %w: query has %d dimensions, store has %d",
			rag.ErrDimensionMismatch, len(vector), dim)
	}
	if k <= 0 {
		return []rag.Document{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, source, metadata, embedding FROM records ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		var (
			doc      rag.Document
			metaJSON string
			blob     []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("store: query scan: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("store: decode metadata for %q: %w", doc.ID, err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("store: decode vector for %q: %w", doc.ID, err)
		}
		doc.Distance = CosineDistance(vector, vec)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: query rows: %w", err)
	}

	// Rows arrive in insertion order, so a stable sort keeps ties in that order.
	slices.SortStableFunc(docs, func(a, b rag.Document) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// dimension returns the vector size fixed by the last build, or 0 if the
// store has never been written.
func (s *SQLiteStore) dimension(ctx context.Context) (int, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaDimension).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: read dimension: %w", err)
	}
	dim, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("store: corrupt dimension %q: %w", v, err)
	}
	return dim, nil
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are treated as
// maximally distant.
func CosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
