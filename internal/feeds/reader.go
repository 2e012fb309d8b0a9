// Package feeds reads syndication feeds and normalizes their entries into
// plain-text articles ready for rewriting.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hoanghai1803/feedwright/internal/models"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "feedwright/1.0 (+https://github.com/hoanghai1803/feedwright)"
	rateLimitDelay   = 1 * time.Second

	// bufferFactor is how many entries per accepted item are read so that
	// the time filter and dedup still leave enough candidates.
	bufferFactor = 3
)

// ErrFetch wraps every failure to retrieve or parse a feed.
var ErrFetch = errors.New("fetching feed")

// DedupChecker reports whether a draft already carries the given metadata.
type DedupChecker interface {
	DraftExistsByMeta(ctx context.Context, key, value string) (bool, error)
}

// Options configures a Reader.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// ExtractFullText fetches the linked page with readability when an
	// entry carries neither content nor description.
	ExtractFullText bool
	// Now is the clock used for entries without a date. Defaults to
	// time.Now.
	Now func() time.Time
}

// Reader fetches feeds over a shared HTTP client with per-domain rate
// limiting.
type Reader struct {
	client  *http.Client
	dedup   DedupChecker
	opts    Options
	limiter map[string]time.Time // per-domain last request time
	mu      sync.Mutex           // protects limiter
}

// NewReader creates a Reader. dedup may be nil, in which case no entry is
// treated as already published.
func NewReader(dedup DedupChecker, opts Options) *Reader {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reader{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &userAgentTransport{
				base:      http.DefaultTransport,
				userAgent: opts.UserAgent,
			},
		},
		dedup:   dedup,
		opts:    opts,
		limiter: make(map[string]time.Time),
	}
}

// userAgentTransport sets the User-Agent on every request and a feed Accept
// header unless the caller chose one.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")
	}
	return t.base.RoundTrip(req)
}

// NewItems returns up to feed.ItemsPerRun entries that were published after
// the feed's last run and have not been turned into a draft yet, in feed
// order. Fetch and parse failures wrap ErrFetch.
func (r *Reader) NewItems(ctx context.Context, feed models.FeedConfig) ([]models.RawItem, error) {
	if feed.URL == "" {
		return nil, fmt.Errorf("%w: feed %q has no url", ErrFetch, feed.ID)
	}

	if err := r.waitForRateLimit(ctx, extractDomain(feed.URL)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	fp := gofeed.NewParser()
	fp.Client = r.client

	parsed, err := fp.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrFetch, feed.URL, err)
	}

	maxItems := max(1, feed.ItemsPerRun)
	entries := parsed.Items
	if limit := maxItems * bufferFactor; len(entries) > limit {
		entries = entries[:limit]
	}

	var items []models.RawItem
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		item := toRawItem(feed.ID, entry, r.opts.Now())

		if feed.LastRun != nil && !item.PublishedAt.After(*feed.LastRun) {
			continue
		}

		seen, err := r.alreadyPublished(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("checking duplicates for %q: %w", item.Link, err)
		}
		if seen {
			slog.Debug("skipping entry already drafted", "feed_id", feed.ID, "guid", item.GUID, "link", item.Link)
			continue
		}

		if item.ContentRaw == "" && item.Link != "" && r.opts.ExtractFullText {
			item.ContentRaw = r.extract(ctx, item.Link)
		}

		items = append(items, item)
		if len(items) >= maxItems {
			break
		}
	}

	slog.Info("read feed",
		"feed_id", feed.ID,
		"entries", len(parsed.Items),
		"new_items", len(items),
	)
	return items, nil
}

// alreadyPublished reports whether a draft exists for the entry's guid or
// link. Entries with neither are never considered duplicates.
func (r *Reader) alreadyPublished(ctx context.Context, item models.RawItem) (bool, error) {
	if r.dedup == nil {
		return false, nil
	}
	if item.GUID != "" {
		ok, err := r.dedup.DraftExistsByMeta(ctx, models.MetaOriginalGUID, item.GUID)
		if err != nil || ok {
			return ok, err
		}
	}
	if item.Link != "" {
		return r.dedup.DraftExistsByMeta(ctx, models.MetaOriginalLink, item.Link)
	}
	return false, nil
}

// waitForRateLimit enforces a minimum delay between requests to the same
// domain. It returns early with the context error if ctx is done.
func (r *Reader) waitForRateLimit(ctx context.Context, domain string) error {
	r.mu.Lock()
	var wait time.Duration
	if last, ok := r.limiter[domain]; ok {
		if elapsed := time.Since(last); elapsed < rateLimitDelay {
			wait = rateLimitDelay - elapsed
		}
	}
	r.limiter[domain] = time.Now().Add(wait)
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// extractDomain parses a URL and returns its hostname. If parsing fails, it
// returns the raw URL as a fallback key.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
