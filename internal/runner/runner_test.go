package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hoanghai1803/feedwright/internal/ai"
	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/schedule"
	"github.com/hoanghai1803/feedwright/internal/settings"
)

// Wednesday.
var testNow = time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)

type fakeSettings struct {
	mu           sync.Mutex
	feeds        []models.FeedConfig
	schedules    []models.Schedule
	feedRuns     map[string]time.Time
	scheduleRuns map[string]time.Time
	recordCalls  int
}

func (f *fakeSettings) Feeds(context.Context) ([]models.FeedConfig, error) {
	return f.feeds, nil
}

func (f *fakeSettings) Feed(_ context.Context, id string) (models.FeedConfig, error) {
	for _, feed := range f.feeds {
		if feed.ID == id {
			return feed, nil
		}
	}
	return models.FeedConfig{}, settings.ErrFeedNotFound
}

func (f *fakeSettings) ActiveSchedules(context.Context) ([]models.Schedule, error) {
	return f.schedules, nil
}

func (f *fakeSettings) RecordRuns(_ context.Context, feedRuns, scheduleRuns map[string]time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordCalls++
	f.feedRuns = feedRuns
	f.scheduleRuns = scheduleRuns
	return nil
}

func (f *fakeSettings) stamp(feedID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.feedRuns[feedID]
	return ts, ok
}

func (f *fakeSettings) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordCalls
}

func (f *fakeSettings) AISettings(context.Context) (models.AISettings, error) {
	return models.AISettings{Provider: "gemini", Model: "m", APIKey: "k"}, nil
}

type fakeItems struct {
	mu    sync.Mutex
	items map[string][]models.RawItem
	errs  map[string]error
	calls map[string]int
}

func (f *fakeItems) NewItems(_ context.Context, feed models.FeedConfig) ([]models.RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[feed.ID]++
	if err := f.errs[feed.ID]; err != nil {
		return nil, err
	}
	return f.items[feed.ID], nil
}

type fakeRewriter struct {
	failTitles map[string]bool
}

func (f fakeRewriter) Rewrite(_ context.Context, a models.Article) (models.AIResult, error) {
	if f.failTitles[a.Title] {
		return models.AIResult{}, fmt.Errorf("%w: quota", ai.ErrHTTPStatus)
	}
	return models.AIResult{Title: "R: " + a.Title, Content: a.ContentText, Model: "m"}, nil
}

func (fakeRewriter) TestConnection(context.Context) (ai.Ack, error) {
	return ai.Ack{OK: true}, nil
}

// cancellingRewriter cancels the run on its first call and then succeeds.
type cancellingRewriter struct {
	fakeRewriter
	cancel context.CancelFunc
}

func (c cancellingRewriter) Rewrite(ctx context.Context, a models.Article) (models.AIResult, error) {
	c.cancel()
	return c.fakeRewriter.Rewrite(ctx, a)
}

type fakePublisher struct {
	mu         sync.Mutex
	failTitles map[string]bool
	published  []string
}

func (f *fakePublisher) Publish(_ context.Context, _ models.FeedConfig, a models.Article, _ models.AIResult) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTitles[a.Title] {
		return 0, errors.New("too short")
	}
	f.published = append(f.published, a.Title)
	return int64(len(f.published)), nil
}

type fakeLog struct {
	mu      sync.Mutex
	entries []models.LogEntry
}

func (f *fakeLog) Log(_ context.Context, e models.LogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeLog) statuses(feedID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		if e.FeedID == feedID {
			out = append(out, e.Status)
		}
	}
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Notify(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

type harness struct {
	settings  *fakeSettings
	items     *fakeItems
	rewriter  fakeRewriter
	publisher *fakePublisher
	log       *fakeLog
	notifier  *fakeNotifier
}

func newHarness() *harness {
	return &harness{
		settings:  &fakeSettings{},
		items:     &fakeItems{items: map[string][]models.RawItem{}, errs: map[string]error{}},
		rewriter:  fakeRewriter{failTitles: map[string]bool{}},
		publisher: &fakePublisher{failTitles: map[string]bool{}},
		log:       &fakeLog{},
		notifier:  &fakeNotifier{},
	}
}

func (h *harness) runner() *Runner {
	r := New(Deps{
		Settings:  h.settings,
		Items:     h.items,
		Publisher: h.publisher,
		Log:       h.log,
		Notifier:  h.notifier,
		NewRewriter: func(models.AISettings) (ai.Rewriter, error) {
			return h.rewriter, nil
		},
	}, Options{Location: time.UTC})
	r.now = func() time.Time { return testNow }
	return r
}

func activeFeed(id string) models.FeedConfig {
	return models.FeedConfig{
		ID:               id,
		Name:             "Feed " + id,
		URL:              "https://example.com/" + id,
		Status:           models.StatusActive,
		FrequencyMinutes: 60,
		ItemsPerRun:      5,
	}
}

func item(title string) models.RawItem {
	return models.RawItem{
		Title:      title,
		ContentRaw: "<p>Texto original sobre " + title + ".</p>",
		Link:       "https://example.com/" + title,
		GUID:       title,
	}
}

func TestTick_FrequencyFeed(t *testing.T) {
	h := newHarness()
	h.settings.feeds = []models.FeedConfig{activeFeed("a")}
	h.items.items["a"] = []models.RawItem{item("one"), item("two"), item("three")}
	h.rewriter.failTitles["two"] = true
	h.publisher.failTitles["three"] = true

	report, err := h.runner().Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	if len(report.Feeds) != 1 {
		t.Fatalf("len(Feeds) = %d, want 1", len(report.Feeds))
	}
	got := report.Feeds[0]
	if got.Items != 3 || got.Created != 1 || got.AIErrors != 1 || got.PublishErrors != 1 {
		t.Errorf("report = %+v, want 3 items, 1 created, 1 AI error, 1 publish error", got)
	}

	statuses := h.log.statuses("a")
	want := []string{models.LogErrorAI, models.LogSummary}
	if strings.Join(statuses, ",") != strings.Join(want, ",") {
		t.Errorf("statuses = %v, want %v", statuses, want)
	}

	summary := h.log.entries[len(h.log.entries)-1]
	wantMsg := `Processamento concluído para o feed "Feed a": 3 itens novos, 1 rascunhos criados, 1 erros de IA, 1 erros de publicação.`
	if summary.Message != wantMsg {
		t.Errorf("summary = %q, want %q", summary.Message, wantMsg)
	}

	if h.settings.recordCalls != 1 {
		t.Errorf("RecordRuns calls = %d, want 1", h.settings.recordCalls)
	}
	if ts, ok := h.settings.feedRuns["a"]; !ok || !ts.Equal(testNow) {
		t.Errorf("feedRuns[a] = %v, %v; want %v", ts, ok, testNow)
	}
	if len(h.notifier.msgs) != 1 {
		t.Errorf("notifications = %d, want 1", len(h.notifier.msgs))
	}
}

func TestTick_SkipsFeedsNotDue(t *testing.T) {
	recent := testNow.Add(-10 * time.Minute)
	inactive := activeFeed("off")
	inactive.Status = models.StatusInactive
	fresh := activeFeed("fresh")
	fresh.LastRun = &recent

	h := newHarness()
	h.settings.feeds = []models.FeedConfig{inactive, fresh}

	report, err := h.runner().Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if len(report.Feeds) != 0 {
		t.Errorf("ran %d feeds, want 0", len(report.Feeds))
	}
	if len(h.items.calls) != 0 {
		t.Errorf("NewItems calls = %v, want none", h.items.calls)
	}
	if h.settings.recordCalls != 0 {
		t.Errorf("RecordRuns calls = %d, want 0", h.settings.recordCalls)
	}
}

func TestTick_TwoSchedulesOneFeed(t *testing.T) {
	recent := testNow.Add(-time.Minute)
	feed := activeFeed("a")
	feed.LastRun = &recent

	h := newHarness()
	h.settings.feeds = []models.FeedConfig{feed}
	h.settings.schedules = []models.Schedule{
		{ID: "s1", FeedID: "a", TimeOfDay: "08:00", DaysOfWeek: []string{"wed"}, Status: models.StatusActive},
		{ID: "s2", FeedID: "a", TimeOfDay: "08:00", DaysOfWeek: []string{"mon", "wed"}, Status: models.StatusActive},
		{ID: "s3", FeedID: "a", TimeOfDay: "09:00", DaysOfWeek: []string{"wed"}, Status: models.StatusActive},
	}
	h.items.items["a"] = []models.RawItem{item("one")}

	report, err := h.runner().Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	if h.items.calls["a"] != 1 {
		t.Errorf("NewItems calls = %d, want 1", h.items.calls["a"])
	}
	if report.SchedulesFired != 2 {
		t.Errorf("SchedulesFired = %d, want 2", report.SchedulesFired)
	}
	for _, id := range []string{"s1", "s2"} {
		if _, ok := h.settings.scheduleRuns[id]; !ok {
			t.Errorf("schedule %s not stamped", id)
		}
	}
	if _, ok := h.settings.scheduleRuns["s3"]; ok {
		t.Error("schedule s3 stamped, but it was not due")
	}
	if _, ok := h.settings.feedRuns["a"]; ok {
		t.Error("scheduled feed had its own last_run stamped")
	}
}

func TestTick_DanglingSchedule(t *testing.T) {
	h := newHarness()
	h.settings.schedules = []models.Schedule{
		{ID: "s1", FeedID: "gone", TimeOfDay: "08:00", DaysOfWeek: []string{"wed"}, Status: models.StatusActive},
	}

	report, err := h.runner().Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if report.DanglingSchedules != 1 || report.SchedulesFired != 0 {
		t.Errorf("report = %+v, want one dangling schedule and none fired", report)
	}
	if len(h.items.calls) != 0 {
		t.Errorf("NewItems calls = %v, want none", h.items.calls)
	}
}

func TestTick_FeedErrorAndNoItemsEndWithSummary(t *testing.T) {
	h := newHarness()
	h.settings.feeds = []models.FeedConfig{activeFeed("bad"), activeFeed("empty")}
	h.items.errs["bad"] = errors.New("connection refused")

	if _, err := h.runner().Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	tests := []struct {
		feed string
		want []string
	}{
		{"bad", []string{models.LogErrorFeed, models.LogSummary}},
		{"empty", []string{models.LogNoItems, models.LogSummary}},
	}
	for _, tt := range tests {
		t.Run(tt.feed, func(t *testing.T) {
			got := h.log.statuses(tt.feed)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("statuses = %v, want %v", got, tt.want)
			}
		})
	}

	for _, e := range h.log.entries {
		if e.Status == models.LogErrorFeed && e.Message != "Erro ao obter itens do feed: connection refused" {
			t.Errorf("error-feed message = %q", e.Message)
		}
	}

	if len(h.notifier.msgs) != 1 || !strings.Contains(h.notifier.msgs[0], "connection refused") {
		t.Errorf("notifications = %v, want one about the feed error", h.notifier.msgs)
	}
}

func TestTick_InProgress(t *testing.T) {
	h := newHarness()
	r := h.runner()

	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	if _, err := r.Tick(context.Background()); !errors.Is(err, ErrTickInProgress) {
		t.Errorf("Tick() error = %v, want ErrTickInProgress", err)
	}
}

func TestTick_BusyFeedIsSkipped(t *testing.T) {
	h := newHarness()
	h.settings.feeds = []models.FeedConfig{activeFeed("a")}
	r := h.runner()
	r.acquire("a")

	report, err := r.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if len(report.Feeds) != 1 || !report.Feeds[0].Skipped {
		t.Errorf("report = %+v, want feed a skipped", report.Feeds)
	}
	if h.items.calls["a"] != 0 {
		t.Errorf("NewItems calls = %d, want 0", h.items.calls["a"])
	}
}

func TestTick_RewriterUnavailable(t *testing.T) {
	h := newHarness()
	h.settings.feeds = []models.FeedConfig{activeFeed("a")}
	h.items.items["a"] = []models.RawItem{item("one"), item("two")}

	r := h.runner()
	r.deps.NewRewriter = func(models.AISettings) (ai.Rewriter, error) {
		return nil, ai.ErrUnsupportedProvider
	}

	report, err := r.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if report.Feeds[0].AIErrors != 2 {
		t.Errorf("AIErrors = %d, want 2", report.Feeds[0].AIErrors)
	}
	if len(h.publisher.published) != 0 {
		t.Errorf("published = %v, want none", h.publisher.published)
	}
}

func TestTick_ConcurrentFeeds(t *testing.T) {
	h := newHarness()
	for _, id := range []string{"a", "b", "c", "d"} {
		h.settings.feeds = append(h.settings.feeds, activeFeed(id))
		h.items.items[id] = []models.RawItem{item(id + "-1"), item(id + "-2")}
	}

	r := h.runner()
	r.concurrency = 3

	report, err := r.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if len(report.Feeds) != 4 {
		t.Fatalf("len(Feeds) = %d, want 4", len(report.Feeds))
	}
	if len(h.publisher.published) != 8 {
		t.Errorf("published %d drafts, want 8", len(h.publisher.published))
	}
	if len(h.settings.feedRuns) != 4 {
		t.Errorf("feedRuns = %d entries, want 4", len(h.settings.feedRuns))
	}
}

func TestRunFeed(t *testing.T) {
	inactive := activeFeed("a")
	inactive.Status = models.StatusInactive

	h := newHarness()
	h.settings.feeds = []models.FeedConfig{inactive}
	h.items.items["a"] = []models.RawItem{item("one")}

	rep, err := h.runner().RunFeed(context.Background(), "a")
	if err != nil {
		t.Fatalf("RunFeed() error: %v", err)
	}
	if rep.Created != 1 {
		t.Errorf("Created = %d, want 1", rep.Created)
	}
	if ts, ok := h.settings.feedRuns["a"]; !ok || !ts.Equal(testNow) {
		t.Errorf("feedRuns[a] = %v, %v; want %v", ts, ok, testNow)
	}
}

func TestRunFeed_Errors(t *testing.T) {
	h := newHarness()
	h.settings.feeds = []models.FeedConfig{activeFeed("a")}
	r := h.runner()

	if _, err := r.RunFeed(context.Background(), "missing"); !errors.Is(err, ErrFeedNotFound) {
		t.Errorf("RunFeed(missing) error = %v, want ErrFeedNotFound", err)
	}

	r.acquire("a")
	if _, err := r.RunFeed(context.Background(), "a"); !errors.Is(err, ErrFeedBusy) {
		t.Errorf("RunFeed(busy) error = %v, want ErrFeedBusy", err)
	}
}

func TestRunFeed_CancelledStopsItems(t *testing.T) {
	h := newHarness()
	h.settings.feeds = []models.FeedConfig{activeFeed("a")}
	h.items.items["a"] = []models.RawItem{item("one"), item("two")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := h.runner().RunFeed(ctx, "a")
	if err != nil {
		t.Fatalf("RunFeed() error: %v", err)
	}
	if rep.Created != 0 || !rep.Interrupted {
		t.Errorf("report = %+v, want nothing created and the run interrupted", rep)
	}
	if got := h.log.statuses("a"); len(got) == 0 || got[len(got)-1] != models.LogSummary {
		t.Errorf("statuses = %v, want a trailing summary", got)
	}
	if h.settings.calls() != 0 {
		t.Errorf("RecordRuns calls = %d, want 0 for an interrupted run", h.settings.calls())
	}
}

func TestTick_CancelledFeedKeepsLastRun(t *testing.T) {
	h := newHarness()
	h.settings.feeds = []models.FeedConfig{activeFeed("a")}
	h.items.items["a"] = []models.RawItem{item("one"), item("two"), item("three")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.runner().Tick(ctx)
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	got := report.Feeds[0]
	if got.Items != 3 || got.Created != 0 || !got.Interrupted {
		t.Errorf("report = %+v, want 3 items, none created, interrupted", got)
	}
	if ts, ok := h.settings.stamp("a"); ok {
		t.Errorf("feedRuns[a] = %v, want no stamp so the items are fetched again", ts)
	}
}

func TestTick_CancelledMidFeed(t *testing.T) {
	h := newHarness()
	h.settings.feeds = []models.FeedConfig{activeFeed("a")}
	h.items.items["a"] = []models.RawItem{item("one"), item("two"), item("three")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := h.runner()
	r.deps.NewRewriter = func(models.AISettings) (ai.Rewriter, error) {
		return cancellingRewriter{fakeRewriter: h.rewriter, cancel: cancel}, nil
	}

	report, err := r.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	got := report.Feeds[0]
	if got.Created != 1 || got.AIErrors != 0 || !got.Interrupted {
		t.Errorf("report = %+v, want one draft then an interruption", got)
	}
	if _, ok := h.settings.stamp("a"); ok {
		t.Error("interrupted feed had its last_run stamped")
	}
	if statuses := h.log.statuses("a"); strings.Join(statuses, ",") != models.LogSummary {
		t.Errorf("statuses = %v, want only the summary", statuses)
	}
}

func TestNextBoundary(t *testing.T) {
	kathmandu := time.FixedZone("NPT", 5*3600+45*60)

	tests := []struct {
		name     string
		now      time.Time
		interval time.Duration
		want     time.Time
	}{
		{
			name:     "off boundary",
			now:      time.Date(2026, 3, 4, 8, 7, 12, 0, time.UTC),
			interval: 15 * time.Minute,
			want:     time.Date(2026, 3, 4, 8, 15, 0, 0, time.UTC),
		},
		{
			name:     "on boundary moves to the next one",
			now:      time.Date(2026, 3, 4, 8, 15, 0, 0, time.UTC),
			interval: 15 * time.Minute,
			want:     time.Date(2026, 3, 4, 8, 30, 0, 0, time.UTC),
		},
		{
			name:     "crosses midnight",
			now:      time.Date(2026, 3, 4, 23, 50, 0, 0, time.UTC),
			interval: 15 * time.Minute,
			want:     time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "hourly in a zone with a minute offset",
			now:      time.Date(2026, 3, 4, 10, 10, 0, 0, kathmandu),
			interval: time.Hour,
			want:     time.Date(2026, 3, 4, 11, 0, 0, 0, kathmandu),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextBoundary(tt.now, tt.interval)
			if !got.Equal(tt.want) {
				t.Errorf("nextBoundary(%v, %v) = %v, want %v", tt.now, tt.interval, got, tt.want)
			}
		})
	}
}

func TestNextBoundary_FiresDailySchedule(t *testing.T) {
	s := models.Schedule{ID: "s", FeedID: "a", TimeOfDay: "08:15", DaysOfWeek: []string{"wed"}, Status: models.StatusActive}
	now := time.Date(2026, 3, 4, 8, 7, 12, 0, time.UTC)

	fired := 0
	for range 96 {
		now = nextBoundary(now, 15*time.Minute)
		if schedule.IsDue(s, now) {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("08:15 schedule fired %d times over a day of 15 minute ticks, want 1", fired)
	}
}

func TestStart_AlignsFirstTick(t *testing.T) {
	const interval = 300 * time.Millisecond

	h := newHarness()
	h.settings.feeds = []models.FeedConfig{activeFeed("a")}
	r := h.runner()
	r.now = time.Now

	// Start well past a boundary; an unaligned ticker would keep that offset.
	time.Sleep(time.Until(nextBoundary(time.Now().UTC(), interval).Add(150 * time.Millisecond)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx, interval)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.settings.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	ts, ok := h.settings.stamp("a")
	if !ok {
		t.Fatal("no tick ran")
	}
	if offset := ts.Sub(ts.Truncate(interval)); offset > 100*time.Millisecond {
		t.Errorf("first tick ran %v past the %v boundary", offset, interval)
	}
}
