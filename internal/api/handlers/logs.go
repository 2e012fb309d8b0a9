package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/feedwright/internal/runlog"
)

// GetLogs handles GET /api/logs?feed_id=&status=&limit=.
func GetLogs(logger *runlog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", runlog.DefaultLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		q := r.URL.Query()
		entries, err := logger.List(r.Context(), runlog.Filter{
			FeedID: q.Get("feed_id"),
			Status: q.Get("status"),
			Limit:  min(limit, runlog.MaxEntries),
		})
		if err != nil {
			slog.Error("failed to list logs", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list logs")
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// ClearLogs handles DELETE /api/logs.
func ClearLogs(logger *runlog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := logger.Clear(r.Context()); err != nil {
			slog.Error("failed to clear logs", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to clear logs")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
