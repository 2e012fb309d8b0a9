package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hoanghai1803/feedwright/internal/ai"
	"github.com/hoanghai1803/feedwright/internal/config"
	"github.com/hoanghai1803/feedwright/internal/feeds"
	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/notify"
	"github.com/hoanghai1803/feedwright/internal/publisher"
	"github.com/hoanghai1803/feedwright/internal/runlog"
	"github.com/hoanghai1803/feedwright/internal/runner"
	"github.com/hoanghai1803/feedwright/internal/settings"
	"github.com/hoanghai1803/feedwright/internal/stats"
	"github.com/hoanghai1803/feedwright/internal/storage"
)

// app holds the wired components shared by every command.
type app struct {
	cfg         *config.Config
	store       *storage.Store
	settings    *settings.Store
	logs        *runlog.Logger
	stats       *stats.Service
	runner      *runner.Runner
	newRewriter runner.RewriterFactory
}

// setupLogging installs the default slog handler described by cfg.
func setupLogging(cfg config.LogConfig) error {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// newApp loads the configuration, opens the database and wires the
// pipeline. The caller must call close.
func newApp(ctx context.Context, opts globalOptions) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, filepath.Join(opts.DataDir, "feedwright.db"))
	if err != nil {
		return nil, err
	}
	if v, err := store.SchemaVersion(ctx); err == nil {
		slog.Debug("database ready", "schema_version", v)
	}

	st := settings.New(store, models.AISettings{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
	})
	logs := runlog.New(store)

	reporter, err := notify.Connect(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID)
	if err != nil {
		// Notifications are optional; the pipeline runs without them.
		slog.Warn("telegram notifications disabled", "error", err)
	}

	aiOpts := ai.Options{RewriteTimeout: cfg.HTTP.AITimeout()}
	newRewriter := func(s models.AISettings) (ai.Rewriter, error) {
		return ai.NewRewriter(s, aiOpts)
	}

	reader := feeds.NewReader(store, feeds.Options{
		Timeout:         cfg.HTTP.FeedTimeout(),
		UserAgent:       cfg.HTTP.UserAgent,
		ExtractFullText: cfg.Feeds.ExtractFullText,
	})
	pub := publisher.New(store, st, logs, publisher.Options{
		ImageTimeout: cfg.HTTP.ImageTimeout(),
		UserAgent:    cfg.HTTP.UserAgent,
	})

	deps := runner.Deps{
		Settings:    st,
		Items:       reader,
		Publisher:   pub,
		Log:         logs,
		NewRewriter: newRewriter,
	}
	if reporter != nil {
		deps.Notifier = reporter
	}
	rn := runner.New(deps, runner.Options{
		Concurrency: cfg.Scheduler.Concurrency,
		Location:    cfg.Location(),
	})

	return &app{
		cfg:         cfg,
		store:       store,
		settings:    st,
		logs:        logs,
		stats:       stats.New(st, store),
		runner:      rn,
		newRewriter: newRewriter,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		slog.Error("closing database", "error", err)
	}
}
