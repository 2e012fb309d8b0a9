package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/feedwright/internal/ai"
	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/runlog"
	"github.com/hoanghai1803/feedwright/internal/runner"
	"github.com/hoanghai1803/feedwright/internal/settings"
	"github.com/hoanghai1803/feedwright/internal/storage"
)

// testEnv wires the real settings store, run log and runner over an
// in-memory database. Feed items and AI calls are faked.
type testEnv struct {
	store    *storage.Store
	settings *settings.Store
	logs     *runlog.Logger
	runner   *runner.Runner
	items    *stubItems
}

// newTestEnv opens a migrated in-memory store that is closed when the test
// completes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.Open(context.Background(), storage.MemoryPath)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	st := settings.New(store, models.AISettings{Provider: "gemini", APIKey: "env-key-123456"})
	logs := runlog.New(store)
	items := &stubItems{}

	rn := runner.New(runner.Deps{
		Settings:    st,
		Items:       items,
		Publisher:   stubPublisher{},
		Log:         logs,
		NewRewriter: stubRewriterFactory,
	}, runner.Options{})

	return &testEnv{store: store, settings: st, logs: logs, runner: rn, items: items}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type stubItems struct {
	items []models.RawItem
	// When set, NewItems signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func (s *stubItems) NewItems(context.Context, models.FeedConfig) ([]models.RawItem, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.items, nil
}

type stubPublisher struct{}

func (stubPublisher) Publish(context.Context, models.FeedConfig, models.Article, models.AIResult) (int64, error) {
	return 1, nil
}

type stubRewriter struct{ provider string }

func (stubRewriter) Rewrite(_ context.Context, a models.Article) (models.AIResult, error) {
	return models.AIResult{Title: a.Title, Content: a.ContentText}, nil
}

func (s stubRewriter) TestConnection(context.Context) (ai.Ack, error) {
	return ai.Ack{OK: true, Message: "Conexão com " + s.provider + " OK."}, nil
}

func stubRewriterFactory(a models.AISettings) (ai.Rewriter, error) {
	return stubRewriter{provider: a.Provider}, nil
}
