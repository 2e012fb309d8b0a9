package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/feedwright/internal/stats"
)

// GetStats handles GET /api/stats.
func GetStats(svc *stats.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := svc.Summary(r.Context())
		if err != nil {
			slog.Error("failed to compute stats", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to compute stats")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}
