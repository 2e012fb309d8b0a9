package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hoanghai1803/feedwright/internal/ai"
	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/runner"
	"github.com/hoanghai1803/feedwright/internal/settings"
)

const maskPrefix = "****"

// maskKey hides all but the last four characters of an API key.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return maskPrefix
	}
	return maskPrefix + key[len(key)-4:]
}

func maskedAI(a models.AISettings) models.AISettings {
	a.APIKey = maskKey(a.APIKey)
	return a
}

// GetAISettings handles GET /api/settings/ai. The API key is masked.
func GetAISettings(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := st.AISettings(r.Context())
		if err != nil {
			slog.Error("failed to load AI settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load AI settings")
			return
		}
		writeJSON(w, http.StatusOK, maskedAI(a))
	}
}

// UpdateAISettings handles PUT /api/settings/ai. An empty or still masked
// api_key keeps the stored key.
func UpdateAISettings(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body models.AISettings
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.HasPrefix(body.APIKey, maskPrefix) {
			body.APIKey = ""
		}

		saved, err := st.SaveAISettings(r.Context(), body)
		if err != nil {
			slog.Error("failed to save AI settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save AI settings")
			return
		}
		writeJSON(w, http.StatusOK, maskedAI(saved))
	}
}

// TestAIConnection handles POST /api/settings/ai/test. Provider failures are
// reported in the body with ok=false, not as HTTP errors.
func TestAIConnection(st *settings.Store, newRewriter runner.RewriterFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ack, err := testConnection(r.Context(), st, newRewriter)
		if err != nil {
			slog.Warn("AI connection test failed", "error", err)
			writeJSON(w, http.StatusOK, ai.Ack{OK: false, Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, ack)
	}
}

func testConnection(ctx context.Context, st *settings.Store, newRewriter runner.RewriterFactory) (ai.Ack, error) {
	a, err := st.AISettings(ctx)
	if err != nil {
		return ai.Ack{}, err
	}
	rw, err := newRewriter(a)
	if err != nil {
		return ai.Ack{}, err
	}
	ack, err := rw.TestConnection(ctx)
	if err != nil {
		return ai.Ack{}, err
	}
	if !ack.OK && ack.Message == "" {
		return ack, errors.New("provider did not confirm the connection")
	}
	return ack, nil
}

// GetGeneralSettings handles GET /api/settings/general.
func GetGeneralSettings(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := st.GeneralSettings(r.Context())
		if err != nil {
			slog.Error("failed to load general settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load general settings")
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

// UpdateGeneralSettings handles PUT /api/settings/general.
func UpdateGeneralSettings(st *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body models.GeneralSettings
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		saved, err := st.SaveGeneralSettings(r.Context(), body)
		if err != nil {
			slog.Error("failed to save general settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save general settings")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}
