package models

import "time"

// RawItem is one feed entry as read from the source, before cleaning.
type RawItem struct {
	FeedID      string    `json:"feed_id"`
	Title       string    `json:"title"`
	ContentRaw  string    `json:"content_raw"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"image_url,omitempty"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
	GUID        string    `json:"guid"`
}

// Article is the normalized, plain-text form of a RawItem.
type Article struct {
	FeedID      string    `json:"feed_id"`
	Title       string    `json:"title"`
	ContentText string    `json:"content_text"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"image_url,omitempty"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
	GUID        string    `json:"guid"`
}

// AIResult is the rewritten article returned by a provider.
type AIResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Summary string `json:"summary"`
	Model   string `json:"model"`
}
