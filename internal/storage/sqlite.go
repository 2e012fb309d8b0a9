// Package storage is the SQLite persistence layer for feedwright: the
// settings documents, drafts with their metadata and attachments, and the
// bounded run log.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// ErrNotFound means no row matched the lookup key.
var ErrNotFound = errors.New("storage: record not found")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// pragmas are applied to every connection. A single connection is kept open
// so SQLite only ever sees one writer and an in-memory database survives
// between queries.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(ON)",
}

// timeLayout is the on-disk format for every timestamp column. Values are
// always written in UTC so string comparison orders them correctly.
const timeLayout = "2006-01-02 15:04:05"

// Store provides typed queries over the feedwright database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, brings its schema up to
// date and returns a ready Store. Parent directories are created as needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	applied, err := migrate(ctx, db, embeddedMigrations)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %q: %w", path, err)
	}
	if applied > 0 {
		slog.Info("database schema updated", "path", path, "migrations", applied)
	}
	return &Store{db: db}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if path != MemoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %q: %w", dir, err)
		}
	}

	var dsn strings.Builder
	dsn.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			dsn.WriteByte('?')
		} else {
			dsn.WriteByte('&')
		}
		dsn.WriteString("_pragma=")
		dsn.WriteString(p)
	}

	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database %q: %w", path, err)
	}
	return db, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database still answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version, 0 for an
// empty database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(v.Int64), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a timestamp column. Rows written by SQLite defaults use
// the same layout as formatTime; RFC 3339 is accepted for hand-edited data.
// Unparseable values become the zero time.
func parseTime(s string) time.Time {
	if t, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
