package publisher

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultImageTimeout = 20 * time.Second
	maxImageBytes       = 10 << 20
)

type image struct {
	data     []byte
	mimeType string
}

// imageFetcher downloads featured images.
type imageFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func newImageFetcher(opts Options) *imageFetcher {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.ImageTimeout
		if timeout <= 0 {
			timeout = defaultImageTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &imageFetcher{
		client:    client,
		userAgent: opts.UserAgent,
		maxBytes:  maxImageBytes,
	}
}

// fetch downloads an image. Responses that are not image/* or exceed the
// size cap are rejected.
func (f *imageFetcher) fetch(ctx context.Context, rawURL string) (image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return image{}, fmt.Errorf("invalid image url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return image{}, fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return image{}, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return image{}, fmt.Errorf("downloading image: HTTP %d", resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return image{}, fmt.Errorf("image too large: %d bytes", resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return image{}, fmt.Errorf("reading image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return image{}, fmt.Errorf("image too large: more than %d bytes", f.maxBytes)
	}

	mimeType := mediaType(resp.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mediaType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return image{}, fmt.Errorf("unexpected content type %q", mimeType)
	}

	return image{data: data, mimeType: mimeType}, nil
}

func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}
