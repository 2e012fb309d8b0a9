package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/runner"
	"github.com/hoanghai1803/feedwright/internal/settings"
)

// GetFeeds handles GET /api/feeds.
func GetFeeds(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feeds, err := st.Feeds(r.Context())
		if err != nil {
			slog.Error("failed to load feeds", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load feeds")
			return
		}
		writeJSON(w, http.StatusOK, feeds)
	}
}

// ReplaceFeeds handles PUT /api/feeds. The body is the full feed list;
// rows without a valid URL are dropped and the stored list is returned.
func ReplaceFeeds(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body []models.FeedConfig
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		saved, err := st.SaveFeeds(r.Context(), body)
		if err != nil {
			slog.Error("failed to save feeds", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save feeds")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// UpsertFeed handles POST /api/feeds. A body without an ID creates a feed;
// one with a known ID replaces it.
func UpsertFeed(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body models.FeedConfig
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		saved, err := st.UpsertFeed(r.Context(), body)
		if err != nil {
			if errors.Is(err, settings.ErrInvalidFeed) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.Error("failed to save feed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save feed")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// DeleteFeed handles DELETE /api/feeds/{id}.
func DeleteFeed(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := st.DeleteFeed(r.Context(), id); err != nil {
			if errors.Is(err, settings.ErrFeedNotFound) {
				writeError(w, http.StatusNotFound, "Feed not found")
				return
			}
			slog.Error("failed to delete feed", "feed_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to delete feed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RunFeed handles POST /api/feeds/{id}/run. It processes the feed
// synchronously and returns the run report.
func RunFeed(rn *runner.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		report, err := rn.RunFeed(r.Context(), id)
		switch {
		case errors.Is(err, runner.ErrFeedNotFound):
			writeError(w, http.StatusNotFound, "Feed not found")
		case errors.Is(err, runner.ErrFeedBusy):
			writeError(w, http.StatusConflict, "Feed is already being processed")
		case err != nil:
			slog.Error("manual feed run failed", "feed_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Feed run failed")
		default:
			writeJSON(w, http.StatusOK, report)
		}
	}
}
