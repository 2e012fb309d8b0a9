// Package settings persists feed configurations, schedules and the AI and
// general settings singletons as JSON documents.
package settings

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hoanghai1803/feedwright/internal/config"
	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/storage"
)

// Document keys.
const (
	keyFeeds     = "feeds"
	keySchedules = "schedules"
	keyAI        = "ai"
	keyGeneral   = "general"
)

var (
	ErrFeedNotFound     = errors.New("feed not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrInvalidFeed is returned when a feed has no usable URL after
	// sanitization.
	ErrInvalidFeed = errors.New("feed url must be an absolute http(s) url")
)

// KV is the document persistence the store is built on. SaveDocuments
// must write all keys atomically.
type KV interface {
	LoadDocument(ctx context.Context, key string) (json.RawMessage, error)
	SaveDocuments(ctx context.Context, docs map[string]any) error
}

var _ KV = (*storage.Store)(nil)

// Store reads and writes settings documents. All writes are serialized by
// a single mutex so concurrent last_run updates cannot overwrite each other.
type Store struct {
	kv         KV
	aiDefaults models.AISettings

	mu sync.Mutex
}

// New creates a Store. aiDefaults supplies provider, model, key and base URL
// when the stored AI settings leave them empty.
func New(kv KV, aiDefaults models.AISettings) *Store {
	return &Store{kv: kv, aiDefaults: aiDefaults}
}

func (s *Store) load(ctx context.Context, key string) (json.RawMessage, error) {
	raw, err := s.kv.LoadDocument(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s settings: %w", key, err)
	}
	return raw, nil
}

func (s *Store) save(ctx context.Context, key string, value any) error {
	if err := s.kv.SaveDocuments(ctx, map[string]any{key: value}); err != nil {
		return fmt.Errorf("saving %s settings: %w", key, err)
	}
	return nil
}

// saveAll writes several documents in one transaction.
func (s *Store) saveAll(ctx context.Context, docs map[string]any) error {
	if err := s.kv.SaveDocuments(ctx, docs); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// --- Feeds ---

// Feeds returns every stored feed, sanitized. Feeds without a usable URL
// are omitted.
func (s *Store) Feeds(ctx context.Context) ([]models.FeedConfig, error) {
	raw, err := s.load(ctx, keyFeeds)
	if err != nil {
		return nil, err
	}
	feeds := decodeFeeds(raw)
	out := feeds[:0]
	taken := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		if f.URL == "" {
			continue
		}
		if f.ID == "" || taken[f.ID] {
			f.ID = newID("feed_", f.URL, taken)
		}
		taken[f.ID] = true
		out = append(out, f)
	}
	return out, nil
}

// Feed returns the feed with the given ID.
func (s *Store) Feed(ctx context.Context, id string) (models.FeedConfig, error) {
	feeds, err := s.Feeds(ctx)
	if err != nil {
		return models.FeedConfig{}, err
	}
	for _, f := range feeds {
		if f.ID == id {
			return f, nil
		}
	}
	return models.FeedConfig{}, ErrFeedNotFound
}

// SaveFeeds replaces the feed list. Rows without a usable URL are dropped,
// missing or duplicate IDs are generated, and a row without last_run keeps
// the value already stored for its ID. It returns the list as stored.
func (s *Store) SaveFeeds(ctx context.Context, feeds []models.FeedConfig) ([]models.FeedConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Feeds(ctx)
	if err != nil {
		return nil, err
	}
	lastRuns := make(map[string]*time.Time, len(existing))
	for _, f := range existing {
		lastRuns[f.ID] = f.LastRun
	}

	out := make([]models.FeedConfig, 0, len(feeds))
	taken := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		f = SanitizeFeed(f)
		if f.URL == "" {
			continue
		}
		if f.ID == "" || taken[f.ID] {
			f.ID = newID("feed_", f.URL, taken)
		}
		taken[f.ID] = true
		if f.LastRun == nil {
			f.LastRun = lastRuns[f.ID]
		}
		out = append(out, f)
	}

	if err := s.save(ctx, keyFeeds, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertFeed replaces the feed with the same ID or appends it. A feed
// without an ID gets a generated one.
func (s *Store) UpsertFeed(ctx context.Context, f models.FeedConfig) (models.FeedConfig, error) {
	f = SanitizeFeed(f)
	if f.URL == "" {
		return models.FeedConfig{}, ErrInvalidFeed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	feeds, err := s.Feeds(ctx)
	if err != nil {
		return models.FeedConfig{}, err
	}

	replaced := false
	for i := range feeds {
		if f.ID != "" && feeds[i].ID == f.ID {
			if f.LastRun == nil {
				f.LastRun = feeds[i].LastRun
			}
			feeds[i] = f
			replaced = true
			break
		}
	}
	if !replaced {
		if f.ID == "" {
			f.ID = newID("feed_", f.URL, feedIDs(feeds))
		}
		feeds = append(feeds, f)
	}

	if err := s.save(ctx, keyFeeds, feeds); err != nil {
		return models.FeedConfig{}, err
	}
	return f, nil
}

// DeleteFeed removes a feed. Schedules pointing at it are left in place.
func (s *Store) DeleteFeed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feeds, err := s.Feeds(ctx)
	if err != nil {
		return err
	}
	out := feeds[:0]
	for _, f := range feeds {
		if f.ID != id {
			out = append(out, f)
		}
	}
	if len(out) == len(feeds) {
		return ErrFeedNotFound
	}
	return s.save(ctx, keyFeeds, out)
}

// --- Schedules ---

// Schedules returns every stored schedule, sanitized.
func (s *Store) Schedules(ctx context.Context) ([]models.Schedule, error) {
	raw, err := s.load(ctx, keySchedules)
	if err != nil {
		return nil, err
	}
	schedules := decodeSchedules(raw)
	taken := make(map[string]bool, len(schedules))
	for i := range schedules {
		if schedules[i].ID == "" || taken[schedules[i].ID] {
			schedules[i].ID = newID("sched_", scheduleSeed(schedules[i]), taken)
		}
		taken[schedules[i].ID] = true
	}
	return schedules, nil
}

// ActiveSchedules returns the active schedules that name a feed.
func (s *Store) ActiveSchedules(ctx context.Context) ([]models.Schedule, error) {
	schedules, err := s.Schedules(ctx)
	if err != nil {
		return nil, err
	}
	out := schedules[:0]
	for _, sc := range schedules {
		if sc.Status == models.StatusActive && sc.FeedID != "" {
			out = append(out, sc)
		}
	}
	return out, nil
}

// SaveSchedules replaces the schedule list with the same ID and last_run
// rules as SaveFeeds.
func (s *Store) SaveSchedules(ctx context.Context, schedules []models.Schedule) ([]models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Schedules(ctx)
	if err != nil {
		return nil, err
	}
	lastRuns := make(map[string]*time.Time, len(existing))
	for _, sc := range existing {
		lastRuns[sc.ID] = sc.LastRun
	}

	out := make([]models.Schedule, 0, len(schedules))
	taken := make(map[string]bool, len(schedules))
	for _, sc := range schedules {
		sc = SanitizeSchedule(sc)
		if sc.ID == "" || taken[sc.ID] {
			sc.ID = newID("sched_", scheduleSeed(sc), taken)
		}
		taken[sc.ID] = true
		if sc.LastRun == nil {
			sc.LastRun = lastRuns[sc.ID]
		}
		out = append(out, sc)
	}

	if err := s.save(ctx, keySchedules, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertSchedule replaces the schedule with the same ID or appends it.
func (s *Store) UpsertSchedule(ctx context.Context, sc models.Schedule) (models.Schedule, error) {
	sc = SanitizeSchedule(sc)

	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := s.Schedules(ctx)
	if err != nil {
		return models.Schedule{}, err
	}

	replaced := false
	for i := range schedules {
		if sc.ID != "" && schedules[i].ID == sc.ID {
			if sc.LastRun == nil {
				sc.LastRun = schedules[i].LastRun
			}
			schedules[i] = sc
			replaced = true
			break
		}
	}
	if !replaced {
		if sc.ID == "" {
			taken := make(map[string]bool, len(schedules))
			for _, e := range schedules {
				taken[e.ID] = true
			}
			sc.ID = newID("sched_", scheduleSeed(sc), taken)
		}
		schedules = append(schedules, sc)
	}

	if err := s.save(ctx, keySchedules, schedules); err != nil {
		return models.Schedule{}, err
	}
	return sc, nil
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := s.Schedules(ctx)
	if err != nil {
		return err
	}
	out := schedules[:0]
	for _, sc := range schedules {
		if sc.ID != id {
			out = append(out, sc)
		}
	}
	if len(out) == len(schedules) {
		return ErrScheduleNotFound
	}
	return s.save(ctx, keySchedules, out)
}

// RecordRuns stamps last_run on the feeds and schedules named in the maps
// and writes both lists in one transaction. IDs that no longer exist are
// ignored.
func (s *Store) RecordRuns(ctx context.Context, feedRuns, scheduleRuns map[string]time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make(map[string]any, 2)

	if len(feedRuns) > 0 {
		feeds, err := s.Feeds(ctx)
		if err != nil {
			return err
		}
		for i, f := range feeds {
			if t, ok := feedRuns[f.ID]; ok {
				t = t.UTC()
				feeds[i].LastRun = &t
			}
		}
		docs[keyFeeds] = feeds
	}

	if len(scheduleRuns) > 0 {
		schedules, err := s.Schedules(ctx)
		if err != nil {
			return err
		}
		for i, sc := range schedules {
			if t, ok := scheduleRuns[sc.ID]; ok {
				t = t.UTC()
				schedules[i].LastRun = &t
			}
		}
		docs[keySchedules] = schedules
	}

	return s.saveAll(ctx, docs)
}

// --- Singletons ---

// AISettings returns the stored AI settings with empty fields filled from
// the configuration defaults. The API key and base URL defaults only apply
// when the stored provider matches the configured one.
func (s *Store) AISettings(ctx context.Context) (models.AISettings, error) {
	raw, err := s.load(ctx, keyAI)
	if err != nil {
		return models.AISettings{}, err
	}
	a := models.AISettings{Temperature: DefaultTemperature}
	if raw != nil {
		a = decodeAI(raw)
	}
	return s.withAIDefaults(a), nil
}

func (s *Store) withAIDefaults(a models.AISettings) models.AISettings {
	def := s.aiDefaults
	if a.Provider == "" {
		a.Provider = def.Provider
	}
	if a.Provider == "" {
		a.Provider = "gemini"
	}
	sameProvider := a.Provider == def.Provider
	if a.Model == "" {
		if sameProvider && def.Model != "" {
			a.Model = def.Model
		} else {
			a.Model = config.DefaultModel(a.Provider)
		}
	}
	if a.APIKey == "" && sameProvider {
		a.APIKey = def.APIKey
	}
	if a.BaseURL == "" && sameProvider {
		a.BaseURL = def.BaseURL
	}
	return a
}

// SaveAISettings stores the AI settings. An empty API key keeps the key
// already stored. It returns the effective settings.
func (s *Store) SaveAISettings(ctx context.Context, a models.AISettings) (models.AISettings, error) {
	a = SanitizeAI(a)

	s.mu.Lock()
	defer s.mu.Unlock()

	if a.APIKey == "" {
		raw, err := s.load(ctx, keyAI)
		if err != nil {
			return models.AISettings{}, err
		}
		if raw != nil {
			a.APIKey = decodeAI(raw).APIKey
		}
	}
	if err := s.save(ctx, keyAI, a); err != nil {
		return models.AISettings{}, err
	}
	return s.withAIDefaults(a), nil
}

// GeneralSettings returns the general settings; seo_metadata defaults to on.
func (s *Store) GeneralSettings(ctx context.Context) (models.GeneralSettings, error) {
	raw, err := s.load(ctx, keyGeneral)
	if err != nil {
		return models.GeneralSettings{}, err
	}
	if raw == nil {
		return models.GeneralSettings{SEOMetadata: true}, nil
	}
	return decodeGeneral(raw), nil
}

func (s *Store) SaveGeneralSettings(ctx context.Context, g models.GeneralSettings) (models.GeneralSettings, error) {
	g = SanitizeGeneral(g)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(ctx, keyGeneral, g); err != nil {
		return models.GeneralSettings{}, err
	}
	return g, nil
}

// --- IDs ---

// newID derives a short ID from seed so regenerated IDs for legacy rows are
// stable across reads. A collision falls back to random bytes.
func newID(prefix, seed string, taken map[string]bool) string {
	sum := sha1.Sum([]byte(seed))
	id := prefix + hex.EncodeToString(sum[:])[:8]
	for taken[id] {
		var b [4]byte
		_, _ = rand.Read(b[:])
		id = prefix + hex.EncodeToString(b[:])
	}
	return id
}

func scheduleSeed(sc models.Schedule) string {
	return sc.FeedID + "|" + sc.TimeOfDay
}

func feedIDs(feeds []models.FeedConfig) map[string]bool {
	taken := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		taken[f.ID] = true
	}
	return taken
}
