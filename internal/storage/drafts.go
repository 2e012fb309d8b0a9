package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hoanghai1803/feedwright/internal/models"
)

// CreateDraft inserts a draft and returns its ID. The status column is
// forced to "draft" whatever the caller sets. A zero CreatedAt is replaced
// with the current time.
func (s *Store) CreateDraft(ctx context.Context, d *models.Draft) (int64, error) {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (title, slug, body_html, author_id, category_id, status, feed_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Title, d.Slug, d.BodyHTML, d.AuthorID, d.CategoryID,
		models.DraftStatus, d.FeedID, formatTime(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("creating draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting draft id: %w", err)
	}
	return id, nil
}

// GetDraft returns the draft with the given ID.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetDraft(ctx context.Context, id int64) (*models.Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, slug, body_html, author_id, category_id, status,
				feed_id, thumbnail_id, created_at
		 FROM drafts WHERE id = ?`, id)

	d, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting draft %d: %w", id, err)
	}
	return d, nil
}

// ListDrafts returns the most recently created drafts, newest first.
func (s *Store) ListDrafts(ctx context.Context, limit int) ([]models.Draft, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, slug, body_html, author_id, category_id, status,
				feed_id, thumbnail_id, created_at
		 FROM drafts
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()

	drafts := []models.Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning draft row: %w", err)
		}
		drafts = append(drafts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating draft rows: %w", err)
	}
	return drafts, nil
}

// CountDrafts returns the number of drafts created at or after since. A zero
// since counts every draft.
func (s *Store) CountDrafts(ctx context.Context, since time.Time) (int, error) {
	var (
		n   int
		err error
	)
	if since.IsZero() {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafts`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM drafts WHERE created_at >= ?`, formatTime(since),
		).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting drafts: %w", err)
	}
	return n, nil
}

// SetDraftMeta stores a metadata value on a draft, replacing any previous
// value under the same key.
func (s *Store) SetDraftMeta(ctx context.Context, draftID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO draft_meta (draft_id, key, value)
		 VALUES (?, ?, ?)
		 ON CONFLICT(draft_id, key) DO UPDATE SET value = excluded.value`,
		draftID, key, value,
	)
	if err != nil {
		return fmt.Errorf("setting draft %d meta %q: %w", draftID, key, err)
	}
	return nil
}

// DraftMeta returns all metadata of a draft as a key to value map.
func (s *Store) DraftMeta(ctx context.Context, draftID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM draft_meta WHERE draft_id = ?`, draftID)
	if err != nil {
		return nil, fmt.Errorf("querying draft %d meta: %w", draftID, err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning draft meta row: %w", err)
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating draft meta rows: %w", err)
	}
	return meta, nil
}

// DraftExistsByMeta reports whether any draft carries the given metadata
// key with exactly the given value.
func (s *Store) DraftExistsByMeta(ctx context.Context, key, value string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM draft_meta WHERE key = ? AND value = ?)`,
		key, value,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking draft meta %q: %w", key, err)
	}
	return exists, nil
}

// HasThumbnail reports whether the draft already has a featured image.
func (s *Store) HasThumbnail(ctx context.Context, draftID int64) (bool, error) {
	var thumb sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT thumbnail_id FROM drafts WHERE id = ?`, draftID,
	).Scan(&thumb)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("checking draft %d thumbnail: %w", draftID, err)
	}
	return thumb.Valid, nil
}

// CreateAttachment stores a file for a draft and returns the attachment ID.
func (s *Store) CreateAttachment(ctx context.Context, a *models.Attachment) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (draft_id, source_url, mime_type, size, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.DraftID, a.SourceURL, a.MimeType, int64(len(a.Data)), a.Data, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("creating attachment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting attachment id: %w", err)
	}
	return id, nil
}

// GetAttachment returns the attachment with the given ID, including its data.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetAttachment(ctx context.Context, id int64) (*models.Attachment, error) {
	var (
		a         models.Attachment
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, draft_id, source_url, mime_type, size, data, created_at
		 FROM attachments WHERE id = ?`, id,
	).Scan(&a.ID, &a.DraftID, &a.SourceURL, &a.MimeType, &a.Size, &a.Data, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting attachment %d: %w", id, err)
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// SetThumbnail marks an attachment as the featured image of a draft.
func (s *Store) SetThumbnail(ctx context.Context, draftID, attachmentID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET thumbnail_id = ? WHERE id = ?`, attachmentID, draftID)
	if err != nil {
		return fmt.Errorf("setting draft %d thumbnail: %w", draftID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner is a minimal interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(row scanner) (*models.Draft, error) {
	var (
		d         models.Draft
		thumb     sql.NullInt64
		createdAt string
	)
	if err := row.Scan(
		&d.ID, &d.Title, &d.Slug, &d.BodyHTML, &d.AuthorID, &d.CategoryID,
		&d.Status, &d.FeedID, &thumb, &createdAt,
	); err != nil {
		return nil, err
	}
	if thumb.Valid {
		v := thumb.Int64
		d.ThumbnailID = &v
	}
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}
