// Package stats aggregates dashboard figures from settings, drafts and the
// run log.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/storage"
)

const (
	recentWindow = 30 * 24 * time.Hour
	defaultLimit = 10
)

// FeedSource lists configured feeds.
type FeedSource interface {
	Feeds(ctx context.Context) ([]models.FeedConfig, error)
}

// Store reads drafts and run log entries.
type Store interface {
	CountDrafts(ctx context.Context, since time.Time) (int, error)
	ListDrafts(ctx context.Context, limit int) ([]models.Draft, error)
	LatestLogTime(ctx context.Context, status string) (*time.Time, error)
	ListLogs(ctx context.Context, f storage.LogFilter) ([]models.LogEntry, error)
}

var _ Store = (*storage.Store)(nil)

// Summary holds the dashboard counters.
type Summary struct {
	FeedsTotal    int               `json:"feeds_total"`
	FeedsActive   int               `json:"feeds_active"`
	FeedsInactive int               `json:"feeds_inactive"`
	DraftsTotal   int               `json:"drafts_total"`
	DraftsLast30  int               `json:"drafts_last_30_days"`
	LastSuccessAt *time.Time        `json:"last_success_at"`
	RecentRuns    []models.LogEntry `json:"recent_runs"`
	RecentDrafts  []models.Draft    `json:"recent_drafts"`
}

// Service computes summaries.
type Service struct {
	feeds FeedSource
	store Store
	now   func() time.Time
}

// New creates a Service.
func New(feeds FeedSource, store Store) *Service {
	return &Service{feeds: feeds, store: store, now: time.Now}
}

// Summary gathers every counter along with the latest summary runs and
// drafts.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var sum Summary

	feeds, err := s.feeds.Feeds(ctx)
	if err != nil {
		return sum, fmt.Errorf("loading feeds: %w", err)
	}
	sum.FeedsTotal = len(feeds)
	sum.FeedsActive = lo.CountBy(feeds, func(f models.FeedConfig) bool { return f.Active() })
	sum.FeedsInactive = sum.FeedsTotal - sum.FeedsActive

	if sum.DraftsTotal, err = s.store.CountDrafts(ctx, time.Time{}); err != nil {
		return sum, err
	}
	if sum.DraftsLast30, err = s.store.CountDrafts(ctx, s.now().Add(-recentWindow)); err != nil {
		return sum, err
	}

	last, err := s.store.LatestLogTime(ctx, models.LogSuccess)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return sum, err
	default:
		sum.LastSuccessAt = last
	}

	if sum.RecentRuns, err = s.RecentRuns(ctx, defaultLimit); err != nil {
		return sum, err
	}
	if sum.RecentDrafts, err = s.RecentDrafts(ctx, defaultLimit); err != nil {
		return sum, err
	}
	return sum, nil
}

// RecentRuns returns the newest summary entries.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return s.store.ListLogs(ctx, storage.LogFilter{Status: models.LogSummary, Limit: limit})
}

// RecentDrafts returns the newest drafts.
func (s *Service) RecentDrafts(ctx context.Context, limit int) ([]models.Draft, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return s.store.ListDrafts(ctx, limit)
}
