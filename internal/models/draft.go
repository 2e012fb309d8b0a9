package models

import "time"

// DraftStatus is the only status a pipeline-created draft can have.
const DraftStatus = "draft"

// Draft is an unpublished article awaiting editorial review.
type Draft struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	BodyHTML    string    `json:"body_html"`
	AuthorID    int64     `json:"author_id"`
	CategoryID  int64     `json:"category_id"`
	Status      string    `json:"status"`
	FeedID      string    `json:"feed_id"`
	ThumbnailID *int64    `json:"thumbnail_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attachment is a binary file stored alongside a draft, typically its
// featured image.
type Attachment struct {
	ID        int64     `json:"id"`
	DraftID   int64     `json:"draft_id"`
	SourceURL string    `json:"source_url"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Draft metadata keys.
const (
	MetaOriginalLink = "original_link"
	MetaOriginalGUID = "original_guid"
	MetaFeedID       = "feed_id"
	MetaSummary      = "summary"
	MetaModel        = "model"
	MetaHash         = "hash"
	MetaSEODesc      = "seo_metadesc"
	MetaSEOFocusKW   = "seo_focuskw"
	MetaSEOTitle     = "seo_title"
)
