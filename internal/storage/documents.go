package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// LoadDocument returns the raw JSON stored under key, or ErrNotFound.
func (s *Store) LoadDocument(ctx context.Context, key string) (json.RawMessage, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings_documents WHERE key = ?`, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %q: %w", key, err)
	}
	return json.RawMessage(raw), nil
}

// SaveDocuments marshals every value and writes all of them in one
// transaction, so either every key is updated or none is.
func (s *Store) SaveDocuments(ctx context.Context, docs map[string]any) error {
	if len(docs) == 0 {
		return nil
	}

	encoded := make(map[string][]byte, len(docs))
	for key, v := range docs {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding document %q: %w", key, err)
		}
		encoded[key] = data
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning document write: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := formatTime(time.Now())
	for _, key := range slices.Sorted(maps.Keys(encoded)) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings_documents (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(encoded[key]), now,
		)
		if err != nil {
			return fmt.Errorf("saving document %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing documents: %w", err)
	}
	return nil
}

// DocumentUpdatedAt reports when key was last written.
func (s *Store) DocumentUpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM settings_documents WHERE key = ?`, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading document %q timestamp: %w", key, err)
	}
	return parseTime(raw), nil
}
