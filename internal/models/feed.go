package models

import "time"

// Feed and schedule statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// ModeDraft is the only publishing mode. Any other configured mode is
// rewritten to draft during sanitization.
const ModeDraft = "draft"

// FeedConfig describes one syndication feed the pipeline ingests.
type FeedConfig struct {
	ID               string     `json:"id" yaml:"id"`
	Name             string     `json:"name" yaml:"name"`
	URL              string     `json:"url" yaml:"url"`
	Category         int64      `json:"category" yaml:"category"`
	Status           string     `json:"status" yaml:"status"`
	FrequencyMinutes int        `json:"frequency_minutes" yaml:"frequency_minutes"`
	ItemsPerRun      int        `json:"items_per_run" yaml:"items_per_run"`
	Mode             string     `json:"mode" yaml:"mode"`
	LastRun          *time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
}

// Active reports whether the feed takes part in automatic runs.
func (f FeedConfig) Active() bool {
	return f.Status == StatusActive
}

// DisplayName returns the feed name, or its ID when the name is empty.
func (f FeedConfig) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

// Schedule fires a feed at a fixed time of day on selected weekdays.
type Schedule struct {
	ID         string     `json:"id" yaml:"id"`
	FeedID     string     `json:"feed_id" yaml:"feed_id"`
	TimeOfDay  string     `json:"time_of_day" yaml:"time_of_day"`
	DaysOfWeek []string   `json:"days_of_week" yaml:"days_of_week"`
	Status     string     `json:"status" yaml:"status"`
	LastRun    *time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
}
