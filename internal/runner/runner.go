// Package runner drives the ingest, rewrite and publish pipeline: it decides
// which feeds are due on each tick and processes their new items.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/feedwright/internal/ai"
	"github.com/hoanghai1803/feedwright/internal/feeds"
	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/publisher"
	"github.com/hoanghai1803/feedwright/internal/schedule"
	"github.com/hoanghai1803/feedwright/internal/settings"
)

var (
	// ErrTickInProgress is returned by Tick while another tick is running.
	ErrTickInProgress = errors.New("a tick is already running")
	// ErrFeedBusy is returned by RunFeed when the feed is being processed.
	ErrFeedBusy = errors.New("feed is already being processed")
	// ErrFeedNotFound is returned by RunFeed for an unknown feed ID.
	ErrFeedNotFound = settings.ErrFeedNotFound
)

// Run log messages.
const (
	msgFeedError = "Erro ao obter itens do feed: "
	msgNoItems   = "Nenhum item novo encontrado para este feed."
	msgSummary   = "Processamento concluído para o feed \"%s\": %d itens novos, %d rascunhos criados, %d erros de IA, %d erros de publicação."
)

// Settings is the configuration the runner reads and stamps.
type Settings interface {
	Feeds(ctx context.Context) ([]models.FeedConfig, error)
	Feed(ctx context.Context, id string) (models.FeedConfig, error)
	ActiveSchedules(ctx context.Context) ([]models.Schedule, error)
	RecordRuns(ctx context.Context, feedRuns, scheduleRuns map[string]time.Time) error
	AISettings(ctx context.Context) (models.AISettings, error)
}

var _ Settings = (*settings.Store)(nil)

// ItemSource returns the unseen items of a feed.
type ItemSource interface {
	NewItems(ctx context.Context, feed models.FeedConfig) ([]models.RawItem, error)
}

// Publisher turns a rewritten article into a draft. It records its own
// success and failure log entries.
type Publisher interface {
	Publish(ctx context.Context, feed models.FeedConfig, a models.Article, res models.AIResult) (int64, error)
}

// EventLogger records pipeline events.
type EventLogger interface {
	Log(ctx context.Context, e models.LogEntry)
}

// Notifier receives a one-line notice when a feed run has errors.
type Notifier interface {
	Notify(msg string)
}

// RewriterFactory builds a rewriter from the current AI settings.
type RewriterFactory func(s models.AISettings) (ai.Rewriter, error)

// Deps are the collaborators of a Runner. Notifier may be nil.
type Deps struct {
	Settings    Settings
	Items       ItemSource
	Publisher   Publisher
	Log         EventLogger
	Notifier    Notifier
	NewRewriter RewriterFactory
}

// Options tunes a Runner.
type Options struct {
	// Concurrency is the number of feeds processed at once. Defaults to 1.
	Concurrency int
	// Location is the timezone schedules are evaluated in. Defaults to
	// time.Local.
	Location *time.Location
}

// FeedReport counts what happened during one feed run.
type FeedReport struct {
	FeedID        string `json:"feed_id"`
	FeedName      string `json:"feed_name"`
	Items         int    `json:"items"`
	Created       int    `json:"created"`
	AIErrors      int    `json:"ai_errors"`
	PublishErrors int    `json:"publish_errors"`
	FeedError     string `json:"feed_error,omitempty"`
	Skipped       bool   `json:"skipped,omitempty"`
	// Interrupted is set when the run stopped before handling every item.
	// Its feed keeps the previous last run so the rest is picked up later.
	Interrupted bool `json:"interrupted,omitempty"`
}

// HasErrors reports whether the run recorded any failure.
func (r FeedReport) HasErrors() bool {
	return r.FeedError != "" || r.AIErrors > 0 || r.PublishErrors > 0
}

// TickReport describes one tick.
type TickReport struct {
	StartedAt         time.Time    `json:"started_at"`
	Feeds             []FeedReport `json:"feeds"`
	SchedulesFired    int          `json:"schedules_fired"`
	DanglingSchedules int          `json:"dangling_schedules"`
}

// Runner executes ticks and manual feed runs.
type Runner struct {
	deps        Deps
	concurrency int
	loc         *time.Location
	now         func() time.Time

	tickMu sync.Mutex

	mu       sync.Mutex // protects inFlight
	inFlight map[string]struct{}
}

// New creates a Runner.
func New(deps Deps, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if deps.NewRewriter == nil {
		deps.NewRewriter = func(s models.AISettings) (ai.Rewriter, error) {
			return ai.NewRewriter(s, ai.Options{})
		}
	}
	return &Runner{
		deps:        deps,
		concurrency: opts.Concurrency,
		loc:         opts.Location,
		now:         time.Now,
		inFlight:    make(map[string]struct{}),
	}
}

// Tick evaluates schedules and feed frequencies and runs every due feed.
// Schedules are evaluated first; a feed selected by any schedule runs once
// and skips its frequency check. Run times are persisted once, after all
// feeds finish; an interrupted feed is not stamped.
func (r *Runner) Tick(ctx context.Context) (TickReport, error) {
	if !r.tickMu.TryLock() {
		return TickReport{}, ErrTickInProgress
	}
	defer r.tickMu.Unlock()

	now := r.now().In(r.loc)
	report := TickReport{StartedAt: now, Feeds: []FeedReport{}}

	all, err := r.deps.Settings.Feeds(ctx)
	if err != nil {
		return report, fmt.Errorf("loading feeds: %w", err)
	}
	schedules, err := r.deps.Settings.ActiveSchedules(ctx)
	if err != nil {
		return report, fmt.Errorf("loading schedules: %w", err)
	}

	byID := lo.KeyBy(all, func(f models.FeedConfig) string { return f.ID })
	scheduleRuns := make(map[string]time.Time)
	feedRuns := make(map[string]time.Time)
	scheduled := make(map[string]bool)
	var due []models.FeedConfig

	for _, s := range schedules {
		if !schedule.IsDue(s, now) {
			continue
		}
		f, ok := byID[s.FeedID]
		if !ok {
			slog.Debug("skipping schedule for unknown feed", "schedule_id", s.ID, "feed_id", s.FeedID)
			report.DanglingSchedules++
			continue
		}
		scheduleRuns[s.ID] = now
		report.SchedulesFired++
		if !scheduled[f.ID] {
			scheduled[f.ID] = true
			due = append(due, f)
		}
	}

	for _, f := range all {
		if scheduled[f.ID] || !schedule.FeedDue(f, now) {
			continue
		}
		feedRuns[f.ID] = now
		due = append(due, f)
	}

	if len(due) == 0 {
		slog.Debug("tick found no due feeds")
		return report, nil
	}

	slog.Info("tick started", "due_feeds", len(due), "schedules_fired", report.SchedulesFired)
	rw := r.rewriter(ctx)

	results := make([]FeedReport, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, f := range due {
		g.Go(func() error {
			if !r.acquire(f.ID) {
				slog.Info("feed busy, skipping", "feed_id", f.ID)
				results[i] = FeedReport{FeedID: f.ID, FeedName: f.DisplayName(), Skipped: true}
				return nil
			}
			defer r.release(f.ID)
			results[i] = r.runFeed(gctx, f, rw)
			return nil
		})
	}
	_ = g.Wait() // feed runs never return errors

	report.Feeds = results
	for _, fr := range results {
		if fr.Interrupted {
			delete(feedRuns, fr.FeedID)
		}
	}

	if err := r.deps.Settings.RecordRuns(context.WithoutCancel(ctx), feedRuns, scheduleRuns); err != nil {
		return report, fmt.Errorf("recording run times: %w", err)
	}

	slog.Info("tick finished", "feeds", len(results),
		"drafts", lo.SumBy(results, func(fr FeedReport) int { return fr.Created }),
	)
	return report, nil
}

// RunFeed processes one feed immediately, whatever its status or
// frequency, and stamps its last run unless the run was interrupted.
func (r *Runner) RunFeed(ctx context.Context, id string) (FeedReport, error) {
	f, err := r.deps.Settings.Feed(ctx, id)
	if err != nil {
		return FeedReport{}, err
	}
	if !r.acquire(f.ID) {
		return FeedReport{}, ErrFeedBusy
	}
	defer r.release(f.ID)

	now := r.now().In(r.loc)
	rep := r.runFeed(ctx, f, r.rewriter(ctx))
	if rep.Interrupted {
		return rep, nil
	}

	if err := r.deps.Settings.RecordRuns(context.WithoutCancel(ctx),
		map[string]time.Time{f.ID: now}, nil,
	); err != nil {
		return rep, fmt.Errorf("recording run time: %w", err)
	}
	return rep, nil
}

// Start calls Tick on every interval boundary of the wall clock, counted
// from midnight in the runner's location, until ctx is done. With a 15
// minute interval ticks land on :00, :15, :30 and :45 whenever the process
// was started.
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	slog.Info("scheduler started", "interval", interval.String())

	timer := time.NewTimer(r.untilBoundary(interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-timer.C:
			if _, err := r.Tick(ctx); err != nil {
				if errors.Is(err, ErrTickInProgress) {
					slog.Warn("previous tick still running, skipping")
				} else {
					slog.Error("tick failed", "error", err)
				}
			}
			timer.Reset(r.untilBoundary(interval))
		}
	}
}

func (r *Runner) untilBoundary(interval time.Duration) time.Duration {
	now := r.now().In(r.loc)
	return nextBoundary(now, interval).Sub(now)
}

// nextBoundary returns the first multiple of interval after midnight that is
// strictly later than now.
func nextBoundary(now time.Time, interval time.Duration) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	elapsed := now.Sub(midnight)
	return midnight.Add(elapsed.Truncate(interval) + interval)
}

// runFeed processes the new items of one feed sequentially. It always ends
// with a summary log entry.
func (r *Runner) runFeed(ctx context.Context, f models.FeedConfig, rw ai.Rewriter) (rep FeedReport) {
	rep = FeedReport{FeedID: f.ID, FeedName: f.DisplayName()}
	logCtx := context.WithoutCancel(ctx)

	defer func() {
		r.deps.Log.Log(logCtx, models.LogEntry{
			FeedID:   f.ID,
			FeedName: rep.FeedName,
			Status:   models.LogSummary,
			Message: fmt.Sprintf(msgSummary, rep.FeedName,
				rep.Items, rep.Created, rep.AIErrors, rep.PublishErrors),
		})
		if rep.HasErrors() {
			r.notify(rep)
		}
	}()

	items, err := r.deps.Items.NewItems(ctx, f)
	if err != nil {
		rep.FeedError = err.Error()
		rep.Interrupted = ctx.Err() != nil
		r.deps.Log.Log(logCtx, models.LogEntry{
			FeedID:   f.ID,
			FeedName: rep.FeedName,
			Status:   models.LogErrorFeed,
			Message:  msgFeedError + err.Error(),
		})
		return rep
	}
	if len(items) == 0 {
		r.deps.Log.Log(logCtx, models.LogEntry{
			FeedID:   f.ID,
			FeedName: rep.FeedName,
			Status:   models.LogNoItems,
			Message:  msgNoItems,
		})
		return rep
	}

	rep.Items = len(items)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			slog.Warn("feed run cancelled", "feed_id", f.ID, "remaining", len(items)-i, "error", err)
			rep.Interrupted = true
			break
		}

		article := feeds.Normalize(item)

		res, err := rw.Rewrite(ctx, article)
		if err != nil && ctx.Err() != nil {
			slog.Warn("feed run cancelled during rewrite", "feed_id", f.ID, "remaining", len(items)-i, "error", err)
			rep.Interrupted = true
			break
		}
		if err != nil {
			rep.AIErrors++
			r.deps.Log.Log(logCtx, models.LogEntry{
				FeedID:        f.ID,
				FeedName:      rep.FeedName,
				TitleOriginal: publisher.StripTags(article.Title),
				Status:        models.LogErrorAI,
				Message:       err.Error(),
			})
			continue
		}

		if _, err := r.deps.Publisher.Publish(ctx, f, article, res); err != nil {
			rep.PublishErrors++
			continue
		}
		rep.Created++
	}
	return rep
}

// rewriter builds a rewriter from the stored AI settings. When that fails
// every item of the run is recorded as an AI error.
func (r *Runner) rewriter(ctx context.Context) ai.Rewriter {
	s, err := r.deps.Settings.AISettings(ctx)
	if err != nil {
		slog.Error("loading AI settings", "error", err)
		return failingRewriter{err: fmt.Errorf("loading AI settings: %w", err)}
	}
	rw, err := r.deps.NewRewriter(s)
	if err != nil {
		slog.Error("building AI rewriter", "provider", s.Provider, "error", err)
		return failingRewriter{err: err}
	}
	return rw
}

func (r *Runner) notify(rep FeedReport) {
	if r.deps.Notifier == nil {
		return
	}
	msg := fmt.Sprintf("feedwright: feed %q: %d erros de IA, %d erros de publicação",
		rep.FeedName, rep.AIErrors, rep.PublishErrors)
	if rep.FeedError != "" {
		msg = fmt.Sprintf("feedwright: feed %q: %s", rep.FeedName, rep.FeedError)
	}
	r.deps.Notifier.Notify(msg)
}

func (r *Runner) acquire(feedID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[feedID]; busy {
		return false
	}
	r.inFlight[feedID] = struct{}{}
	return true
}

func (r *Runner) release(feedID string) {
	r.mu.Lock()
	delete(r.inFlight, feedID)
	r.mu.Unlock()
}

type failingRewriter struct{ err error }

func (f failingRewriter) Rewrite(context.Context, models.Article) (models.AIResult, error) {
	return models.AIResult{}, f.err
}

func (f failingRewriter) TestConnection(context.Context) (ai.Ack, error) {
	return ai.Ack{}, f.err
}
