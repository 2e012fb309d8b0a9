package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// maxErrorBody bounds how much of a failed response is kept in errors.
const maxErrorBody = 2048

// gemini calls the generateContent endpoint of the Gemini API.
type gemini struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func newGemini(client *http.Client, baseURL, apiKey, model string) *gemini {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &gemini{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig geminiGeneration `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGeneration struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *gemini) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
}

func (g *gemini) complete(ctx context.Context, prompt string, gen generation) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGeneration{
			Temperature:     gen.Temperature,
			MaxOutputTokens: gen.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("calling Gemini API", "model", g.model)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %w", ErrTransport, redactKey(err, g.apiKey))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: reading response body: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Provider: "gemini", Code: resp.StatusCode, Body: truncate(string(respBody), maxErrorBody)}
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("%w: gemini: %w", ErrResponseDecode, err)
	}

	if len(apiResp.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", ErrEmptyText)
	}
	var texts []string
	for _, p := range apiResp.Candidates[0].Content.Parts {
		if p.Text != nil {
			texts = append(texts, *p.Text)
		}
	}
	text := strings.Join(texts, "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: gemini", ErrEmptyText)
	}
	return text, nil
}

// redactKey hides the API key that url.Error embeds in its message.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED")
	msg = strings.ReplaceAll(msg, key, "REDACTED")
	if msg == err.Error() {
		return err
	}
	return errors.New(msg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
