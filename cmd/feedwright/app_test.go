package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoanghai1803/feedwright/internal/config"
)

func TestNewApp_CreatesConfigAndDatabase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	a, err := newApp(context.Background(), globalOptions{
		Config:  filepath.Join(dir, "config.toml"),
		DataDir: filepath.Join(dir, "data"),
	})
	if err != nil {
		t.Fatalf("newApp() error: %v", err)
	}
	defer a.close()

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("default config not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "feedwright.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}

	report, err := a.runner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if len(report.Feeds) != 0 {
		t.Errorf("fresh install ran %d feeds, want 0", len(report.Feeds))
	}
}

func TestSetupLogging_RejectsUnknownLevel(t *testing.T) {
	if err := setupLogging(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("setupLogging() accepted an unknown level")
	}
}

// slowScheduler keeps working for a while after its context is cancelled,
// like a tick writing its final log entries.
type slowScheduler struct {
	finished atomic.Bool
}

func (s *slowScheduler) Start(ctx context.Context, _ time.Duration) {
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	s.finished.Store(true)
}

func TestStartScheduler_StopWaits(t *testing.T) {
	s := &slowScheduler{}
	stop := startScheduler(context.Background(), s, time.Minute)
	stop()

	if !s.finished.Load() {
		t.Error("stop returned before the scheduler finished")
	}
}
