package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hoanghai1803/feedwright/internal/models"
)

// LogFilter narrows a run log query. Empty fields match everything.
type LogFilter struct {
	FeedID string
	Status string
	Limit  int
}

// InsertLog appends an entry to the run log and evicts the oldest entries so
// that at most maxEntries remain. Both steps run in one transaction. The
// new entry's ID is returned.
func (s *Store) InsertLog(ctx context.Context, e models.LogEntry, maxEntries int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var postID *int64
	if e.PostID != nil {
		v := *e.PostID
		postID = &v
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO run_logs
			(logged_at, feed_id, feed_name, title_original, title_generated, status, message, post_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(ts), e.FeedID, e.FeedName, e.TitleOriginal, e.TitleGenerated,
		e.Status, e.Message, postID,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting log entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting log entry id: %w", err)
	}

	if maxEntries > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM run_logs
			 WHERE id NOT IN (SELECT id FROM run_logs ORDER BY id DESC LIMIT ?)`,
			maxEntries,
		); err != nil {
			return 0, fmt.Errorf("trimming run log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing log entry: %w", err)
	}
	return id, nil
}

// ListLogs returns run log entries matching the filter, newest first.
func (s *Store) ListLogs(ctx context.Context, f LogFilter) ([]models.LogEntry, error) {
	query := `SELECT id, logged_at, feed_id, feed_name, title_original, title_generated,
				status, message, post_id
			  FROM run_logs WHERE 1 = 1`

	var args []any
	if f.FeedID != "" {
		query += " AND feed_id = ?"
		args = append(args, f.FeedID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying run logs: %w", err)
	}
	defer rows.Close()

	entries := []models.LogEntry{}
	for rows.Next() {
		var (
			e        models.LogEntry
			loggedAt string
			postID   sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID, &loggedAt, &e.FeedID, &e.FeedName, &e.TitleOriginal,
			&e.TitleGenerated, &e.Status, &e.Message, &postID,
		); err != nil {
			return nil, fmt.Errorf("scanning run log row: %w", err)
		}
		e.Timestamp = parseTime(loggedAt)
		if postID.Valid {
			v := postID.Int64
			e.PostID = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run log rows: %w", err)
	}
	return entries, nil
}

// CountLogs returns the number of entries currently in the run log.
func (s *Store) CountLogs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting run logs: %w", err)
	}
	return n, nil
}

// LatestLogTime returns the timestamp of the newest entry with the given
// status. Returns nil, ErrNotFound when no such entry exists.
func (s *Store) LatestLogTime(ctx context.Context, status string) (*time.Time, error) {
	var loggedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT logged_at FROM run_logs WHERE status = ? ORDER BY id DESC LIMIT 1`, status,
	).Scan(&loggedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting latest %q log: %w", status, err)
	}
	t := parseTime(loggedAt)
	return &t, nil
}

// ClearLogs deletes every run log entry.
func (s *Store) ClearLogs(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_logs`); err != nil {
		return fmt.Errorf("clearing run logs: %w", err)
	}
	return nil
}
