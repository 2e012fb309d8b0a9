package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestConfig is a helper that writes a TOML config file to a temp directory
// and returns its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
[server]
host = "0.0.0.0"
port = 9090

[scheduler]
tick_interval_minutes = 5
concurrency = 3
timezone = "UTC"

[http]
feed_timeout_seconds = 10
user_agent = "test-agent"

[ai]
provider = "openai"
api_key = "sk-test-key-123"
model = "gpt-4o"
base_url = "http://localhost:1234/v1"

[feeds]
extract_full_text = true

[telegram]
bot_token = "123:abc"
admin_chat_id = 42

[log]
level = "debug"
format = "json"
`
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("Server = %+v, want 0.0.0.0:9090", cfg.Server)
	}
	if cfg.Scheduler.Concurrency != 3 {
		t.Errorf("Scheduler.Concurrency = %d, want 3", cfg.Scheduler.Concurrency)
	}
	if cfg.TickInterval() != 5*time.Minute {
		t.Errorf("TickInterval() = %v, want 5m", cfg.TickInterval())
	}
	if cfg.Location().String() != "UTC" {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
	if cfg.HTTP.FeedTimeout() != 10*time.Second {
		t.Errorf("FeedTimeout() = %v, want 10s", cfg.HTTP.FeedTimeout())
	}
	if cfg.HTTP.AITimeout() != 30*time.Second {
		t.Errorf("AITimeout() = %v, want default 30s", cfg.HTTP.AITimeout())
	}
	if cfg.HTTP.UserAgent != "test-agent" {
		t.Errorf("HTTP.UserAgent = %q, want %q", cfg.HTTP.UserAgent, "test-agent")
	}
	if cfg.AI.Provider != "openai" || cfg.AI.Model != "gpt-4o" {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.AI.BaseURL != "http://localhost:1234/v1" {
		t.Errorf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if !cfg.Feeds.ExtractFullText {
		t.Error("Feeds.ExtractFullText = false, want true")
	}
	if cfg.Telegram.AdminChatID != 42 {
		t.Errorf("Telegram.AdminChatID = %d, want 42", cfg.Telegram.AdminChatID)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestLoad_MissingFile_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not created at %q: %v", path, err)
	}

	if cfg.AI.Provider != "gemini" {
		t.Errorf("AI.Provider = %q, want %q", cfg.AI.Provider, "gemini")
	}
	if cfg.AI.Model != "gemini-1.5-flash" {
		t.Errorf("AI.Model = %q, want %q", cfg.AI.Model, "gemini-1.5-flash")
	}
	if cfg.Scheduler.TickIntervalMinutes != 15 {
		t.Errorf("Scheduler.TickIntervalMinutes = %d, want 15", cfg.Scheduler.TickIntervalMinutes)
	}
	if cfg.Scheduler.Timezone != "America/Sao_Paulo" {
		t.Errorf("Scheduler.Timezone = %q, want America/Sao_Paulo", cfg.Scheduler.Timezone)
	}
	if cfg.HTTP.ImageTimeout() != 20*time.Second {
		t.Errorf("ImageTimeout() = %v, want 20s", cfg.HTTP.ImageTimeout())
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
[ai]
api_key = "sk-test"

[scheduler]
timezone = "UTC"
`
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Scheduler.Concurrency != 1 {
		t.Errorf("Scheduler.Concurrency = %d, want default 1", cfg.Scheduler.Concurrency)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
}

func TestLoad_ModelDefaultsPerProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"gemini", "gemini-1.5-flash"},
		{"openai", "gpt-4o-mini"},
		{"anthropic", "claude-haiku-4-5"},
		{"ollama", "llama3.1"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			path := writeTestConfig(t, "[ai]\nprovider = \""+tt.provider+"\"\n[scheduler]\ntimezone = \"UTC\"\n")
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.AI.Model != tt.want {
				t.Errorf("AI.Model = %q, want %q", cfg.AI.Model, tt.want)
			}
			if DefaultModel(tt.provider) != tt.want {
				t.Errorf("DefaultModel(%q) = %q, want %q", tt.provider, DefaultModel(tt.provider), tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		env      map[string]string
		want     string
	}{
		{
			name:     "generic key",
			provider: "gemini",
			env:      map[string]string{"AI_API_KEY": "from-env-generic"},
			want:     "from-env-generic",
		},
		{
			name:     "gemini key",
			provider: "gemini",
			env:      map[string]string{"GEMINI_API_KEY": "from-env-gemini"},
			want:     "from-env-gemini",
		},
		{
			name:     "openai key",
			provider: "openai",
			env:      map[string]string{"OPENAI_API_KEY": "from-env-openai"},
			want:     "from-env-openai",
		},
		{
			name:     "provider key ignored for other provider",
			provider: "anthropic",
			env:      map[string]string{"OPENAI_API_KEY": "from-env-openai"},
			want:     "from-config",
		},
		{
			name:     "generic key takes precedence",
			provider: "anthropic",
			env: map[string]string{
				"ANTHROPIC_API_KEY": "from-env-anthropic",
				"AI_API_KEY":        "from-env-generic",
			},
			want: "from-env-generic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeTestConfig(t, `
[ai]
provider = "`+tt.provider+`"
api_key = "from-config"

[scheduler]
timezone = "UTC"
`)
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.AI.APIKey != tt.want {
				t.Errorf("AI.APIKey = %q, want %q", cfg.AI.APIKey, tt.want)
			}
		})
	}
}

func TestLoad_EnvTimezoneAndTelegram(t *testing.T) {
	t.Setenv("FEEDWRIGHT_TIMEZONE", "Europe/Lisbon")
	t.Setenv("TELEGRAM_BOT_TOKEN", "999:xyz")

	cfg, err := Load(writeTestConfig(t, "[scheduler]\ntimezone = \"UTC\"\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Location().String() != "Europe/Lisbon" {
		t.Errorf("Location() = %v, want Europe/Lisbon", cfg.Location())
	}
	if cfg.Telegram.BotToken != "999:xyz" {
		t.Errorf("Telegram.BotToken = %q", cfg.Telegram.BotToken)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", "[ai]\nprovider = \"mistral\""},
		{"port zero", "[server]\nport = 0"},
		{"port too high", "[server]\nport = 70000"},
		{"tick interval zero", "[scheduler]\ntick_interval_minutes = 0"},
		{"concurrency negative", "[scheduler]\nconcurrency = -2"},
		{"timeout zero", "[http]\nai_timeout_seconds = 0"},
		{"bad timezone", "[scheduler]\ntimezone = \"Mars/Olympus\""},
		{"bad log level", "[log]\nlevel = \"loud\""},
		{"bad log format", "[log]\nformat = \"xml\""},
		{"broken toml", "[server\nport = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load() expected error for %s, got nil", tt.name)
			}
		})
	}
}

func TestLoad_EmptyAPIKey_NoError(t *testing.T) {
	path := writeTestConfig(t, "[ai]\nprovider = \"gemini\"\napi_key = \"\"\n[scheduler]\ntimezone = \"UTC\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v (empty api_key should warn, not fail)", path, err)
	}
	if cfg.AI.APIKey != "" {
		t.Errorf("AI.APIKey = %q, want empty string", cfg.AI.APIKey)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
