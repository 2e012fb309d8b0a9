// Command feedwright ingests RSS feeds, rewrites new items with an AI
// provider and stores the results as drafts for editorial review.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/hoanghai1803/feedwright/internal/api"
)

type globalOptions struct {
	Config  string `short:"c" long:"config" env:"FEEDWRIGHT_CONFIG" default:"config.toml" description:"Path to the TOML config file"`
	DataDir string `long:"data-dir" env:"FEEDWRIGHT_DATA_DIR" default:"./data" description:"Directory holding the SQLite database"`
}

var global globalOptions

func main() {
	parser := flags.NewParser(&global, flags.Default)
	parser.ShortDescription = "RSS to AI-rewritten drafts"

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"serve", "Run the admin API and the tick scheduler", "", &serveCommand{}},
		{"tick", "Run one tick and exit", "", &tickCommand{}},
		{"run-feed", "Process one feed now", "Processes a feed regardless of its status and frequency, then stamps its last run.", &runFeedCommand{}},
		{"test-ai", "Check the configured AI provider", "", &testAICommand{}},
		{"import", "Import feeds and schedules from YAML", "", &importCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		// flags.Default prints parse and command errors to stderr.
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type serveCommand struct{}

func (c *serveCommand) Execute([]string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.close()

	router := api.NewRouter(api.Services{
		Settings:    a.settings,
		Drafts:      a.store,
		DB:          a.store,
		Runner:      a.runner,
		Logs:        a.logs,
		Stats:       a.stats,
		NewRewriter: a.newRewriter,
	})

	addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Registered after a.close, so the scheduler and any tick in flight
	// finish before the database is closed.
	defer startScheduler(ctx, a.runner, a.cfg.TickInterval())()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

type scheduler interface {
	Start(ctx context.Context, interval time.Duration)
}

// startScheduler runs s in the background. The returned func cancels it and
// waits for Start to return.
func startScheduler(ctx context.Context, s scheduler, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx, interval)
	}()
	return func() {
		cancel()
		<-done
	}
}

type tickCommand struct{}

func (c *tickCommand) Execute([]string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.runner.Tick(ctx)
	if err != nil {
		return err
	}
	return printJSON(report)
}

type runFeedCommand struct {
	ID string `long:"id" required:"true" description:"Feed ID"`
}

func (c *runFeedCommand) Execute([]string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.runner.RunFeed(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("running feed %q: %w", c.ID, err)
	}
	return printJSON(report)
}

type testAICommand struct{}

func (c *testAICommand) Execute([]string) error {
	ctx := context.Background()
	a, err := newApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.close()
	s, err := a.settings.AISettings(ctx)
	if err != nil {
		return err
	}
	rw, err := a.newRewriter(s)
	if err != nil {
		return err
	}
	ack, err := rw.TestConnection(ctx)
	if err != nil {
		return fmt.Errorf("testing %s connection: %w", s.Provider, err)
	}
	return printJSON(ack)
}

type importCommand struct {
	File string `short:"f" long:"file" required:"true" description:"YAML file with feeds and schedules"`
}

func (c *importCommand) Execute([]string) error {
	ctx := context.Background()
	a, err := newApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.close()

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	res, err := a.settings.Import(ctx, f)
	if err != nil {
		return err
	}
	return printJSON(res)
}
