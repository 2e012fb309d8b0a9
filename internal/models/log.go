package models

import (
	"strings"
	"time"
)

// Run log statuses.
const (
	LogSuccess         = "success"
	LogSummary         = "summary"
	LogNoItems         = "no-items"
	LogErrorFeed       = "error-feed"
	LogErrorAI         = "error-ai"
	LogErrorAITooShort = "error-ai-too-short"
	LogErrorPublish    = "error-publish"
	LogErrorImage      = "error-image"
)

// LogEntry records one pipeline event. Entries are kept newest first.
type LogEntry struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	FeedID         string    `json:"feed_id"`
	FeedName       string    `json:"feed_name"`
	TitleOriginal  string    `json:"title_original"`
	TitleGenerated string    `json:"title_generated"`
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	PostID         *int64    `json:"post_id,omitempty"`
}

// IsError reports whether the entry status is one of the error-* statuses.
func (e LogEntry) IsError() bool {
	return strings.HasPrefix(e.Status, "error-")
}
