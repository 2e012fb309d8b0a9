package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// maxPageBytes caps how much of an article page is read for extraction.
const maxPageBytes = 5 << 20

var errNotHTML = errors.New("page is not html")

// extract returns the readable text of the page at link, or "" on failure.
// Failures only cost the fallback text, so they are logged at debug level.
func (r *Reader) extract(ctx context.Context, link string) string {
	if err := r.waitForRateLimit(ctx, extractDomain(link)); err != nil {
		return ""
	}
	text, err := r.readablePage(ctx, link)
	if err != nil {
		slog.Debug("full text extraction failed", "url", link, "error", err)
		return ""
	}
	return text
}

// readablePage downloads link with the reader's client and runs readability
// over it.
func (r *Reader) readablePage(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parsing page url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("building page request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching page: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if !strings.Contains(mt, "html") {
			return "", fmt.Errorf("%w: %s", errNotHTML, mt)
		}
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}
