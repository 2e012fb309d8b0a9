package ai

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/hoanghai1803/feedwright/internal/models"
)

var (
	paragraphMarkup = regexp.MustCompile(`(?i)<p[\s>]`)
	headingMarkup   = regexp.MustCompile(`(?i)<h[1-6][\s>]`)
	lineBreak       = regexp.MustCompile(`\r\n|\r|\n`)
)

// extractJSON pulls the JSON object out of a model reply. Replies often
// wrap it in ```json fences or lead with a sentence of prose; both are cut
// away, keeping the text from the first '{' to the last '}'.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if after, found := cutPrefixFold(s, "```json"); found {
		s = trimClosingFence(after)
	} else if after, found := strings.CutPrefix(s, "```"); found {
		s = trimClosingFence(after)
	}

	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}
	open, closing := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if open >= 0 && closing > open {
		return s[open : closing+1]
	}
	return s
}

func trimClosingFence(s string) string {
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// rewriteResult is the document the model is asked to return.
type rewriteResult struct {
	Title   any `json:"title"`
	Content any `json:"content"`
	Summary any `json:"summary"`
}

// parseRewrite decodes the model text into an AIResult. Plain-text content
// is wrapped into paragraphs.
func parseRewrite(text, model string) (models.AIResult, error) {
	var res rewriteResult
	if err := json.Unmarshal([]byte(extractJSON(text)), &res); err != nil {
		return models.AIResult{}, fmt.Errorf("%w: %w", ErrResultDecode, err)
	}

	title := stringField(res.Title)
	content := stringField(res.Content)
	if title == "" && content == "" {
		return models.AIResult{}, ErrMissingFields
	}

	if content != "" && !paragraphMarkup.MatchString(content) && !headingMarkup.MatchString(content) {
		content = textToParagraphs(content)
	}

	return models.AIResult{
		Title:   title,
		Content: content,
		Summary: stringField(res.Summary),
		Model:   model,
	}, nil
}

// stringField renders a loosely typed JSON value as text.
func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	}
	return ""
}

// Ack is a provider's answer to a connection test.
type Ack struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// parseAck accepts only {"ok": true, ...}.
func parseAck(text string) (Ack, error) {
	var raw struct {
		OK      any    `json:"ok"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil {
		return Ack{}, fmt.Errorf("%w: %w", ErrResultDecode, err)
	}
	if ok, _ := raw.OK.(bool); !ok {
		return Ack{}, fmt.Errorf("%w: ok is not true", ErrResultDecode)
	}
	return Ack{OK: true, Message: raw.Message}, nil
}

// textToParagraphs wraps every non-blank line in an escaped <p> element.
func textToParagraphs(text string) string {
	var parts []string
	for _, line := range lineBreak.Split(text, -1) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts = append(parts, "<p>"+html.EscapeString(line)+"</p>")
	}
	return strings.Join(parts, "\n\n")
}
