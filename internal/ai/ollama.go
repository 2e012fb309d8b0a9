package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const ollamaBaseURL = "http://localhost:11434"

// ollama runs the prompt on a local Ollama server. No API key is needed.
type ollama struct {
	client *api.Client
	model  string
}

func newOllama(httpClient *http.Client, baseURL, model string) (*ollama, error) {
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama base url %q", baseURL)
	}
	return &ollama{
		client: api.NewClient(u, httpClient),
		model:  model,
	}, nil
}

func (o *ollama) complete(ctx context.Context, prompt string, gen generation) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": gen.Temperature,
			"num_predict": gen.MaxTokens,
		},
	}

	slog.Debug("calling Ollama API", "model", o.model)

	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return "", &StatusError{Provider: "ollama", Code: se.StatusCode, Body: se.ErrorMessage}
		}
		return "", fmt.Errorf("%w: ollama generate: %w", ErrTransport, err)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: ollama", ErrEmptyText)
	}
	return text, nil
}
