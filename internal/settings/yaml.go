package settings

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hoanghai1803/feedwright/internal/models"
)

// ErrInvalidDocument is returned by Import for malformed YAML.
var ErrInvalidDocument = errors.New("invalid import document")

// ImportDocument is the YAML layout accepted by Import:
//
//	feeds:
//	  - id: rpg_news
//	    name: RPG News
//	    url: https://example.com/feed
//	    items_per_run: 3
//	schedules:
//	  - feed_id: rpg_news
//	    time_of_day: "08:00"
//	    days_of_week: [mon, wed, fri]
type ImportDocument struct {
	Feeds     []models.FeedConfig `yaml:"feeds"`
	Schedules []models.Schedule   `yaml:"schedules"`
}

// ImportResult counts what Import wrote.
type ImportResult struct {
	FeedsAdded       int `json:"feeds_added"`
	FeedsUpdated     int `json:"feeds_updated"`
	FeedsSkipped     int `json:"feeds_skipped"`
	SchedulesAdded   int `json:"schedules_added"`
	SchedulesUpdated int `json:"schedules_updated"`
}

// Import reads a YAML document and merges its feeds and schedules into the
// stored lists by ID. Entries without an ID are appended. Feeds without a
// usable URL are skipped.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var doc ImportDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res ImportResult
	docs := make(map[string]any, 2)

	if len(doc.Feeds) > 0 {
		feeds, err := s.Feeds(ctx)
		if err != nil {
			return ImportResult{}, err
		}
		index := make(map[string]int, len(feeds))
		for i, f := range feeds {
			index[f.ID] = i
		}
		for _, f := range doc.Feeds {
			f = SanitizeFeed(f)
			if f.URL == "" {
				res.FeedsSkipped++
				continue
			}
			if i, ok := index[f.ID]; ok && f.ID != "" {
				if f.LastRun == nil {
					f.LastRun = feeds[i].LastRun
				}
				feeds[i] = f
				res.FeedsUpdated++
				continue
			}
			if f.ID == "" {
				f.ID = newID("feed_", f.URL, feedIDs(feeds))
			}
			index[f.ID] = len(feeds)
			feeds = append(feeds, f)
			res.FeedsAdded++
		}
		docs[keyFeeds] = feeds
	}

	if len(doc.Schedules) > 0 {
		schedules, err := s.Schedules(ctx)
		if err != nil {
			return ImportResult{}, err
		}
		index := make(map[string]int, len(schedules))
		taken := make(map[string]bool, len(schedules))
		for i, sc := range schedules {
			index[sc.ID] = i
			taken[sc.ID] = true
		}
		for _, sc := range doc.Schedules {
			sc = SanitizeSchedule(sc)
			if i, ok := index[sc.ID]; ok && sc.ID != "" {
				if sc.LastRun == nil {
					sc.LastRun = schedules[i].LastRun
				}
				schedules[i] = sc
				res.SchedulesUpdated++
				continue
			}
			if sc.ID == "" {
				sc.ID = newID("sched_", scheduleSeed(sc), taken)
			}
			taken[sc.ID] = true
			index[sc.ID] = len(schedules)
			schedules = append(schedules, sc)
			res.SchedulesAdded++
		}
		docs[keySchedules] = schedules
	}

	if err := s.saveAll(ctx, docs); err != nil {
		return ImportResult{}, err
	}
	return res, nil
}
