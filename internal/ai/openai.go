package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAI talks to any OpenAI-compatible chat completions server. Set a base
// URL to point it at a local server (LM Studio, llama.cpp, Ollama's /v1
// endpoint); leave it empty for api.openai.com.
type openAI struct {
	client *openai.Client
	model  string
}

func newOpenAI(httpClient *http.Client, baseURL, apiKey, model string) *openAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = httpClient
	return &openAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *openAI) complete(ctx context.Context, prompt string, gen generation) (string, error) {
	slog.Debug("calling OpenAI API", "model", o.model)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(gen.Temperature),
		MaxTokens:   gen.MaxTokens,
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices for model %q", ErrEmptyText, o.model)
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: openai", ErrEmptyText)
	}
	return text, nil
}

// mapOpenAIError sorts client errors into the package sentinels.
func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "openai", Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &StatusError{Provider: "openai", Code: reqErr.HTTPStatusCode, Body: body}
	}
	return fmt.Errorf("%w: openai chat completion: %w", ErrTransport, err)
}
