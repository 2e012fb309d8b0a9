package feeds

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/hoanghai1803/feedwright/internal/models"
)

var htmlTagPattern = regexp.MustCompile("<[^>]*>")

// toRawItem converts a gofeed entry. Entries without a date are stamped
// with now so the time filter never drops them.
func toRawItem(feedID string, entry *gofeed.Item, now time.Time) models.RawItem {
	link := strings.TrimSpace(entry.Link)

	guid := strings.TrimSpace(entry.GUID)
	if guid == "" {
		guid = link
	}

	published := now
	switch {
	case entry.PublishedParsed != nil:
		published = *entry.PublishedParsed
	case entry.UpdatedParsed != nil:
		published = *entry.UpdatedParsed
	}

	content := entry.Content
	if strings.TrimSpace(content) == "" {
		content = entry.Description
	}

	return models.RawItem{
		FeedID:      feedID,
		Title:       stripHTML(entry.Title),
		ContentRaw:  strings.TrimSpace(content),
		Link:        link,
		ImageURL:    imageCandidate(entry),
		Tags:        entryTags(entry.Categories),
		PublishedAt: published,
		GUID:        guid,
	}
}

// imageCandidate prefers an image enclosure, then any enclosure, then the
// entry's own image.
func imageCandidate(entry *gofeed.Item) string {
	var first string
	for _, enc := range entry.Enclosures {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}
		u := strings.TrimSpace(enc.URL)
		if strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			return u
		}
		if first == "" {
			first = u
		}
	}
	if first != "" {
		return first
	}
	if entry.Image != nil {
		return strings.TrimSpace(entry.Image.URL)
	}
	return ""
}

func entryTags(categories []string) []string {
	tags := lo.FilterMap(categories, func(c string, _ int) (string, bool) {
		c = strings.TrimSpace(c)
		return c, c != ""
	})
	return lo.Uniq(tags)
}

// stripHTML removes HTML tags from s, unescapes HTML entities and trims.
func stripHTML(s string) string {
	clean := htmlTagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(clean))
}
