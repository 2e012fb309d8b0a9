package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/feedwright/internal/runner"
	"github.com/hoanghai1803/feedwright/internal/settings"
)

// Tick handles POST /api/tick. It runs one tick synchronously and answers
// 409 when another tick is in progress.
func Tick(rn *runner.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := rn.Tick(r.Context())
		if err != nil {
			if errors.Is(err, runner.ErrTickInProgress) {
				writeError(w, http.StatusConflict, "A tick is already running")
				return
			}
			slog.Error("manual tick failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Tick failed")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// ImportSettings handles POST /api/import. The body is a YAML document with
// feeds and schedules that are merged into the stored settings.
func ImportSettings(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

		res, err := st.Import(r.Context(), body)
		if err != nil {
			if errors.Is(err, settings.ErrInvalidDocument) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.Error("failed to import settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to import settings")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
