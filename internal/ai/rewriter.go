// Package ai rewrites articles through a language model provider and parses
// the structured result.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hoanghai1803/feedwright/internal/models"
)

// Generation limits.
const (
	rewriteMaxTokens   = 2048
	testTemperature    = 0.1
	testMaxTokens      = 128
	defaultRewriteWait = 30 * time.Second
	defaultTestWait    = 20 * time.Second
)

// Rewriter turns a normalized article into a rewritten draft.
type Rewriter interface {
	Rewrite(ctx context.Context, a models.Article) (models.AIResult, error)
	TestConnection(ctx context.Context) (Ack, error)
}

// Options holds transport settings shared by all providers.
type Options struct {
	// HTTPClient is used for every provider call. Defaults to a client
	// without a timeout; per-call deadlines come from the timeouts below.
	HTTPClient     *http.Client
	RewriteTimeout time.Duration
	TestTimeout    time.Duration
}

// generation holds the sampling parameters for one call.
type generation struct {
	Temperature float64
	MaxTokens   int
}

// completer sends one prompt to a provider and returns the raw model text.
type completer interface {
	complete(ctx context.Context, prompt string, g generation) (string, error)
}

// NewRewriter selects the provider named in s. Missing credentials are not
// an error here: every call then fails with ErrConfigIncomplete so the
// caller can record it per item.
func NewRewriter(s models.AISettings, opts Options) (Rewriter, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.RewriteTimeout <= 0 {
		opts.RewriteTimeout = defaultRewriteWait
	}
	if opts.TestTimeout <= 0 {
		opts.TestTimeout = defaultTestWait
	}

	key := strings.TrimSpace(s.APIKey)
	model := strings.TrimSpace(s.Model)
	needsKey := true

	var c completer
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", "gemini":
		c = newGemini(opts.HTTPClient, s.BaseURL, key, model)
	case "openai":
		c = newOpenAI(opts.HTTPClient, s.BaseURL, key, model)
	case "anthropic":
		c = newAnthropic(opts.HTTPClient, s.BaseURL, key, model)
	case "ollama":
		oc, err := newOllama(opts.HTTPClient, s.BaseURL, model)
		if err != nil {
			return nil, err
		}
		c = oc
		needsKey = false
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, s.Provider)
	}

	return &rewriter{
		completer:   c,
		model:       model,
		configured:  model != "" && (key != "" || !needsKey),
		temperature: s.Temperature,
		basePrompt:  s.BasePrompt,
		opts:        opts,
	}, nil
}

// rewriter implements Rewriter on top of a provider completer.
type rewriter struct {
	completer
	model       string
	configured  bool
	temperature float64
	basePrompt  string
	opts        Options
}

var _ Rewriter = (*rewriter)(nil)

func (r *rewriter) Rewrite(ctx context.Context, a models.Article) (models.AIResult, error) {
	if !r.configured {
		return models.AIResult{}, ErrConfigIncomplete
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.RewriteTimeout)
	defer cancel()

	start := time.Now()
	text, err := r.complete(ctx, RewritePrompt(r.basePrompt, a), generation{
		Temperature: r.temperature,
		MaxTokens:   rewriteMaxTokens,
	})
	if err != nil {
		return models.AIResult{}, err
	}
	slog.Debug("article rewritten", "model", r.model, "link", a.Link, "duration", time.Since(start))

	return parseRewrite(text, r.model)
}

func (r *rewriter) TestConnection(ctx context.Context) (Ack, error) {
	if !r.configured {
		return Ack{}, ErrConfigIncomplete
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.TestTimeout)
	defer cancel()

	text, err := r.complete(ctx, connectionTestPrompt, generation{
		Temperature: testTemperature,
		MaxTokens:   testMaxTokens,
	})
	if err != nil {
		return Ack{}, err
	}
	return parseAck(text)
}
