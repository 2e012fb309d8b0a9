// Package runlog records pipeline events in a bounded, persistent log.
package runlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/storage"
)

const (
	// MaxEntries is the number of entries kept; older ones are evicted.
	MaxEntries = 500
	// DefaultLimit is the page size used by List when none is given.
	DefaultLimit = 50
)

// Store is the persistence the Logger needs.
type Store interface {
	InsertLog(ctx context.Context, e models.LogEntry, maxEntries int) (int64, error)
	ListLogs(ctx context.Context, f storage.LogFilter) ([]models.LogEntry, error)
	ClearLogs(ctx context.Context) error
}

var _ Store = (*storage.Store)(nil)

// Filter narrows List.
type Filter struct {
	FeedID string
	Status string
	Limit  int
}

// Logger appends entries to the run log and mirrors them to slog.
type Logger struct {
	store Store
	now   func() time.Time
}

// New creates a Logger backed by store.
func New(store Store) *Logger {
	return &Logger{store: store, now: time.Now}
}

// Log records an entry. A failure to persist is logged and otherwise
// ignored: the pipeline never stops because the log could not be written.
func (l *Logger) Log(ctx context.Context, e models.LogEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	e.Timestamp = e.Timestamp.UTC()

	attrs := []any{
		"status", e.Status,
		"feed_id", e.FeedID,
		"message", e.Message,
	}
	if e.FeedName != "" {
		attrs = append(attrs, "feed", e.FeedName)
	}
	if e.TitleOriginal != "" {
		attrs = append(attrs, "title", e.TitleOriginal)
	}
	if e.PostID != nil {
		attrs = append(attrs, "post_id", *e.PostID)
	}
	if e.IsError() {
		slog.Warn("pipeline event", attrs...)
	} else {
		slog.Info("pipeline event", attrs...)
	}

	if _, err := l.store.InsertLog(ctx, e, MaxEntries); err != nil {
		slog.Error("failed to write run log entry", "status", e.Status, "error", err)
	}
}

// List returns entries matching f, newest first.
func (l *Logger) List(ctx context.Context, f Filter) ([]models.LogEntry, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	return l.store.ListLogs(ctx, storage.LogFilter{
		FeedID: f.FeedID,
		Status: f.Status,
		Limit:  f.Limit,
	})
}

// Clear deletes every entry.
func (l *Logger) Clear(ctx context.Context) error {
	return l.store.ClearLogs(ctx)
}
