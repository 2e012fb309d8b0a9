package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/runner"
)

func TestUpsertAndGetFeeds(t *testing.T) {
	env := newTestEnv(t)

	body := `{"name":"RPG News","url":"https://example.com/feed","items_per_run":50,"status":"active"}`
	r := httptest.NewRequest(http.MethodPost, "/api/feeds", strings.NewReader(body))
	w := httptest.NewRecorder()
	UpsertFeed(env.settings).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var created models.FeedConfig
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.ID == "" {
		t.Error("created feed has no ID")
	}
	if created.ItemsPerRun != 20 {
		t.Errorf("items_per_run = %d, want clamped to 20", created.ItemsPerRun)
	}

	w = httptest.NewRecorder()
	GetFeeds(env.settings).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/feeds", nil))

	var feeds []models.FeedConfig
	if err := json.NewDecoder(w.Body).Decode(&feeds); err != nil {
		t.Fatalf("decoding feeds: %v", err)
	}
	if len(feeds) != 1 || feeds[0].ID != created.ID {
		t.Errorf("feeds = %+v, want the created feed", feeds)
	}
}

func TestUpsertFeed_Invalid(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"missing url", `{"name":"No URL"}`},
		{"non http url", `{"name":"FTP","url":"ftp://example.com/feed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/feeds", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			UpsertFeed(env.settings).ServeHTTP(w, r)

			if w.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestReplaceFeeds_DropsInvalidRows(t *testing.T) {
	env := newTestEnv(t)

	body := `[{"id":"a","url":"https://example.com/a"},{"id":"b","url":"not a url"}]`
	r := httptest.NewRequest(http.MethodPut, "/api/feeds", strings.NewReader(body))
	w := httptest.NewRecorder()
	ReplaceFeeds(env.settings).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var saved []models.FeedConfig
	if err := json.NewDecoder(w.Body).Decode(&saved); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(saved) != 1 || saved[0].ID != "a" {
		t.Errorf("saved = %+v, want only feed a", saved)
	}
}

func TestDeleteFeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.settings.UpsertFeed(ctx, models.FeedConfig{ID: "a", URL: "https://example.com/a"}); err != nil {
		t.Fatalf("UpsertFeed() error: %v", err)
	}

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"existing", "a", http.StatusNoContent},
		{"already deleted", "a", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/feeds/"+tt.id, nil), "id", tt.id)
			w := httptest.NewRecorder()
			DeleteFeed(env.settings).ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Errorf("got status %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRunFeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.settings.UpsertFeed(ctx, models.FeedConfig{
		ID: "a", Name: "A", URL: "https://example.com/a", Status: models.StatusInactive,
	}); err != nil {
		t.Fatalf("UpsertFeed() error: %v", err)
	}
	env.items.items = []models.RawItem{{Title: "Um", ContentRaw: "<p>Texto.</p>", Link: "https://example.com/1"}}

	t.Run("runs and stamps", func(t *testing.T) {
		r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/feeds/a/run", nil), "id", "a")
		w := httptest.NewRecorder()
		RunFeed(env.runner).ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
		}
		var rep runner.FeedReport
		if err := json.NewDecoder(w.Body).Decode(&rep); err != nil {
			t.Fatalf("decoding report: %v", err)
		}
		if rep.Created != 1 {
			t.Errorf("created = %d, want 1", rep.Created)
		}

		feed, err := env.settings.Feed(ctx, "a")
		if err != nil {
			t.Fatalf("Feed() error: %v", err)
		}
		if feed.LastRun == nil {
			t.Error("last_run not stamped after manual run")
		}
	})

	t.Run("unknown feed", func(t *testing.T) {
		r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/feeds/zzz/run", nil), "id", "zzz")
		w := httptest.NewRecorder()
		RunFeed(env.runner).ServeHTTP(w, r)

		if w.Code != http.StatusNotFound {
			t.Errorf("got status %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
