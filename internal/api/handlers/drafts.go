package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hoanghai1803/feedwright/internal/models"
	"github.com/hoanghai1803/feedwright/internal/storage"
)

const maxDraftsPage = 100

// DraftReader is the read side of the draft store.
type DraftReader interface {
	ListDrafts(ctx context.Context, limit int) ([]models.Draft, error)
	SearchDrafts(ctx context.Context, query string, limit int) ([]models.Draft, error)
	GetDraft(ctx context.Context, id int64) (*models.Draft, error)
	DraftMeta(ctx context.Context, draftID int64) (map[string]string, error)
	GetAttachment(ctx context.Context, id int64) (*models.Attachment, error)
}

var _ DraftReader = (*storage.Store)(nil)

// draftDetail is a draft together with its provenance and SEO metadata.
type draftDetail struct {
	models.Draft
	Meta map[string]string `json:"meta"`
}

// GetDrafts handles GET /api/drafts?limit=&q=. With q set, drafts are
// searched by title and body instead of listed newest first.
func GetDrafts(store DraftReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 10)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit = min(limit, maxDraftsPage)

		var drafts []models.Draft
		if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
			drafts, err = store.SearchDrafts(r.Context(), q, limit)
		} else {
			drafts, err = store.ListDrafts(r.Context(), limit)
		}
		if err != nil {
			slog.Error("failed to list drafts", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list drafts")
			return
		}
		writeJSON(w, http.StatusOK, drafts)
	}
}

// GetDraft handles GET /api/drafts/{id}.
func GetDraft(store DraftReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := draftID(w, r)
		if !ok {
			return
		}

		d, err := store.GetDraft(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Draft not found")
			return
		}
		if err != nil {
			slog.Error("failed to get draft", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get draft")
			return
		}

		meta, err := store.DraftMeta(r.Context(), id)
		if err != nil {
			slog.Error("failed to get draft meta", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get draft")
			return
		}
		writeJSON(w, http.StatusOK, draftDetail{Draft: *d, Meta: meta})
	}
}

// GetDraftThumbnail handles GET /api/drafts/{id}/thumbnail, serving the
// stored featured image bytes.
func GetDraftThumbnail(store DraftReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := draftID(w, r)
		if !ok {
			return
		}

		d, err := store.GetDraft(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Draft not found")
			return
		}
		if err != nil {
			slog.Error("failed to get draft", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get thumbnail")
			return
		}
		if d.ThumbnailID == nil {
			writeError(w, http.StatusNotFound, "Draft has no thumbnail")
			return
		}

		att, err := store.GetAttachment(r.Context(), *d.ThumbnailID)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Draft has no thumbnail")
			return
		}
		if err != nil {
			slog.Error("failed to get attachment", "id", *d.ThumbnailID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get thumbnail")
			return
		}

		w.Header().Set("Content-Type", att.MimeType)
		w.Header().Set("Content-Length", strconv.Itoa(len(att.Data)))
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(att.Data)
	}
}

func draftID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw, err := pathParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid draft ID")
		return 0, false
	}
	return id, true
}
