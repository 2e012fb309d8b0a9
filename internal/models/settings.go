package models

// AISettings configures the rewriting provider. It is a process-wide
// singleton persisted by the settings store.
type AISettings struct {
	Provider    string  `json:"provider"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	BasePrompt  string  `json:"base_prompt"`
	BaseURL     string  `json:"base_url,omitempty"`
}

// GeneralSettings holds editorial defaults applied to every draft.
type GeneralSettings struct {
	DefaultAuthorID int64 `json:"default_author_id"`
	SEOMetadata     bool  `json:"seo_metadata"`
}
