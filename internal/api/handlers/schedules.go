package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/settings"
)

// GetSchedules handles GET /api/schedules.
func GetSchedules(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schedules, err := st.Schedules(r.Context())
		if err != nil {
			slog.Error("failed to load schedules", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load schedules")
			return
		}
		writeJSON(w, http.StatusOK, schedules)
	}
}

// ReplaceSchedules handles PUT /api/schedules.
func ReplaceSchedules(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body []models.Schedule
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		saved, err := st.SaveSchedules(r.Context(), body)
		if err != nil {
			slog.Error("failed to save schedules", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save schedules")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// UpsertSchedule handles POST /api/schedules.
func UpsertSchedule(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body models.Schedule
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		saved, err := st.UpsertSchedule(r.Context(), body)
		if err != nil {
			slog.Error("failed to save schedule", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save schedule")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// DeleteSchedule handles DELETE /api/schedules/{id}.
func DeleteSchedule(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := st.DeleteSchedule(r.Context(), id); err != nil {
			if errors.Is(err, settings.ErrScheduleNotFound) {
				writeError(w, http.StatusNotFound, "Schedule not found")
				return
			}
			slog.Error("failed to delete schedule", "schedule_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to delete schedule")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
