// Package config loads the feedwright TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // Schedules need named zones on hosts without a zoneinfo database.

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	HTTP      HTTPConfig      `toml:"http"`
	AI        AIConfig        `toml:"ai"`
	Feeds     FeedsConfig     `toml:"feeds"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Log       LogConfig       `toml:"log"`

	location *time.Location
}

// ServerConfig holds HTTP admin API settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SchedulerConfig controls the in-process tick trigger and the run pool.
type SchedulerConfig struct {
	TickIntervalMinutes int    `toml:"tick_interval_minutes"`
	Concurrency         int    `toml:"concurrency"`
	Timezone            string `toml:"timezone"`
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	FeedTimeoutSeconds  int    `toml:"feed_timeout_seconds"`
	AITimeoutSeconds    int    `toml:"ai_timeout_seconds"`
	ImageTimeoutSeconds int    `toml:"image_timeout_seconds"`
	UserAgent           string `toml:"user_agent"`
}

// AIConfig holds the provider defaults used until AI settings are saved
// through the admin API.
type AIConfig struct {
	Provider string `toml:"provider"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
}

// FeedsConfig holds feed reader settings.
type FeedsConfig struct {
	ExtractFullText bool `toml:"extract_full_text"`
}

// TelegramConfig enables admin notifications when both fields are set.
type TelegramConfig struct {
	BotToken    string `toml:"bot_token"`
	AdminChatID int64  `toml:"admin_chat_id"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Supported AI providers.
var providers = []string{"gemini", "openai", "anthropic", "ollama"}

// defaultModels maps each provider to the model used when none is set.
var defaultModels = map[string]string{
	"gemini":    "gemini-1.5-flash",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-haiku-4-5",
	"ollama":    "llama3.1",
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

const defaultConfigContent = `[server]
host = "localhost"
port = 8080

[scheduler]
tick_interval_minutes = 15
concurrency = 1                   # feeds processed in parallel per tick
timezone = "America/Sao_Paulo"    # schedules are evaluated in this zone

[http]
feed_timeout_seconds = 30
ai_timeout_seconds = 30
image_timeout_seconds = 20
user_agent = "feedwright/1.0 (+https://github.com/hoanghai1803/feedwright)"

[ai]
provider = "gemini"               # "gemini", "openai", "anthropic" or "ollama"
api_key = ""                      # Your API key (or set AI_API_KEY env var)
model = "gemini-1.5-flash"
base_url = ""                     # Optional endpoint override

[feeds]
extract_full_text = false         # fetch the article page when a feed item has no body

[telegram]
bot_token = ""                    # Optional: notify an admin chat about failed runs
admin_chat_id = 0

[log]
level = "info"                    # debug, info, warn, error
format = "text"                   # text or json
`

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate explicitly-set values before applying defaults, so that
	// "concurrency = 0" is an error rather than silently becoming 1.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	if md.IsDefined("scheduler", "tick_interval_minutes") && cfg.Scheduler.TickIntervalMinutes < 1 {
		return fmt.Errorf("invalid scheduler.tick_interval_minutes %d: must be >= 1", cfg.Scheduler.TickIntervalMinutes)
	}
	if md.IsDefined("scheduler", "concurrency") && cfg.Scheduler.Concurrency < 1 {
		return fmt.Errorf("invalid scheduler.concurrency %d: must be >= 1", cfg.Scheduler.Concurrency)
	}
	timeouts := map[string]int{
		"feed_timeout_seconds":  cfg.HTTP.FeedTimeoutSeconds,
		"ai_timeout_seconds":    cfg.HTTP.AITimeoutSeconds,
		"image_timeout_seconds": cfg.HTTP.ImageTimeoutSeconds,
	}
	for key, v := range timeouts {
		if md.IsDefined("http", key) && v < 1 {
			return fmt.Errorf("invalid http.%s %d: must be >= 1", key, v)
		}
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Scheduler.TickIntervalMinutes == 0 {
		cfg.Scheduler.TickIntervalMinutes = 15
	}
	if cfg.Scheduler.Concurrency == 0 {
		cfg.Scheduler.Concurrency = 1
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "America/Sao_Paulo"
	}
	if cfg.HTTP.FeedTimeoutSeconds == 0 {
		cfg.HTTP.FeedTimeoutSeconds = 30
	}
	if cfg.HTTP.AITimeoutSeconds == 0 {
		cfg.HTTP.AITimeoutSeconds = 30
	}
	if cfg.HTTP.ImageTimeoutSeconds == 0 {
		cfg.HTTP.ImageTimeoutSeconds = 20
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = "feedwright/1.0 (+https://github.com/hoanghai1803/feedwright)"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModels[cfg.AI.Provider]
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
//
// Priority for ai.api_key:
//  1. AI_API_KEY (generic, highest)
//  2. GEMINI_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY, matching the provider
func applyEnvOverrides(cfg *Config) {
	switch cfg.AI.Provider {
	case "gemini":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	case "anthropic":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	case "ollama":
		if v := os.Getenv("OLLAMA_HOST"); v != "" {
			cfg.AI.BaseURL = v
		}
	}

	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("FEEDWRIGHT_TIMEZONE"); v != "" {
		cfg.Scheduler.Timezone = v
	}
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	if _, ok := defaultModels[cfg.AI.Provider]; !ok {
		return fmt.Errorf("invalid ai.provider %q: must be one of %s", cfg.AI.Provider, strings.Join(providers, ", "))
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	cfg.location = loc

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q: must be \"text\" or \"json\"", cfg.Log.Format)
	}

	if cfg.AI.APIKey == "" && cfg.AI.Provider != "ollama" {
		slog.Warn("ai.api_key is empty: set it in the config file, via AI_API_KEY, or through the settings API")
	}

	return nil
}

// Location returns the time zone schedules are evaluated in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// TickInterval returns the period of the in-process tick trigger.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickIntervalMinutes) * time.Minute
}

// FeedTimeout returns the timeout for fetching one feed document.
func (h HTTPConfig) FeedTimeout() time.Duration {
	return time.Duration(h.FeedTimeoutSeconds) * time.Second
}

// AITimeout returns the timeout for one rewrite call.
func (h HTTPConfig) AITimeout() time.Duration {
	return time.Duration(h.AITimeoutSeconds) * time.Second
}

// ImageTimeout returns the timeout for downloading a featured image.
func (h HTTPConfig) ImageTimeout() time.Duration {
	return time.Duration(h.ImageTimeoutSeconds) * time.Second
}

// ParseLevel converts a level name from the config file to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log.level %q: must be debug, info, warn or error", s)
}
