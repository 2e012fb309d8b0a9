// Package publisher turns rewritten articles into drafts, with tracking and
// SEO metadata and an optional featured image.
package publisher

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hoanghai1803/feedwright/internal/models"
)

var (
	// ErrTooShort is returned when the rewritten body has less than
	// MinLengthRatio of the original word count.
	ErrTooShort = errors.New("rewritten text too short compared to the original")
	// ErrCreate wraps a failure to store the draft.
	ErrCreate = errors.New("creating draft")
)

// Log messages recorded by Publish.
const (
	msgTooShort     = "Texto gerado pela IA muito curto em relação ao conteúdo original. Post não criado."
	msgCreateFailed = "Falha ao criar post: "
	msgCreated      = "Post criado como rascunho."
	msgImageFailed  = "Falha ao baixar imagem destacada: "
)

// DraftStore persists drafts, their metadata and attachments.
type DraftStore interface {
	CreateDraft(ctx context.Context, d *models.Draft) (int64, error)
	SetDraftMeta(ctx context.Context, draftID int64, key, value string) error
	HasThumbnail(ctx context.Context, draftID int64) (bool, error)
	CreateAttachment(ctx context.Context, a *models.Attachment) (int64, error)
	SetThumbnail(ctx context.Context, draftID, attachmentID int64) error
}

// GeneralSettings supplies the editorial defaults.
type GeneralSettings interface {
	GeneralSettings(ctx context.Context) (models.GeneralSettings, error)
}

// EventLogger records pipeline events.
type EventLogger interface {
	Log(ctx context.Context, e models.LogEntry)
}

// Options configures a Publisher.
type Options struct {
	ImageTimeout time.Duration
	UserAgent    string
	// HTTPClient overrides the client used for image downloads.
	HTTPClient *http.Client
}

// Publisher creates drafts. It never publishes: every draft is stored with
// status "draft".
type Publisher struct {
	store    DraftStore
	settings GeneralSettings
	log      EventLogger
	images   *imageFetcher
}

// New creates a Publisher.
func New(store DraftStore, settings GeneralSettings, log EventLogger, opts Options) *Publisher {
	return &Publisher{
		store:    store,
		settings: settings,
		log:      log,
		images:   newImageFetcher(opts),
	}
}

// Publish stores a draft for the article and returns its ID. It rejects a
// rewrite that is much shorter than the source with ErrTooShort and wraps
// storage failures in ErrCreate; both are logged. A failed image download is
// logged but does not fail the publish. Log entries are written even after
// ctx is cancelled.
func (p *Publisher) Publish(ctx context.Context, feed models.FeedConfig, a models.Article, res models.AIResult) (int64, error) {
	logCtx := context.WithoutCancel(ctx)
	originalTitle := StripTags(a.Title)
	title := StripTags(res.Title)
	if title == "" {
		title = originalTitle
	}

	entry := models.LogEntry{
		FeedID:         feed.ID,
		FeedName:       feed.DisplayName(),
		TitleOriginal:  originalTitle,
		TitleGenerated: title,
	}

	if isTooShort(a.ContentText, res.Content) {
		entry.Status = models.LogErrorAITooShort
		entry.Message = msgTooShort
		p.log.Log(logCtx, entry)
		return 0, ErrTooShort
	}

	general, err := p.settings.GeneralSettings(ctx)
	if err != nil {
		slog.Warn("loading general settings, using defaults", "error", err)
		general = models.GeneralSettings{SEOMetadata: true}
	}

	draft := &models.Draft{
		Title:    title,
		Slug:     Slug(title),
		BodyHTML: buildBody(a, res),
		AuthorID: general.DefaultAuthorID,
		Status:   models.DraftStatus,
		FeedID:   feed.ID,
	}
	if feed.Category > 0 {
		draft.CategoryID = feed.Category
	}

	id, err := p.store.CreateDraft(ctx, draft)
	if err != nil {
		entry.Status = models.LogErrorPublish
		entry.Message = msgCreateFailed + err.Error()
		p.log.Log(logCtx, entry)
		return 0, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	p.writeMeta(ctx, id, feed, a, res, title, general.SEOMetadata)

	if a.ImageURL != "" {
		p.attachImage(ctx, id, feed, a.ImageURL)
	}

	entry.Status = models.LogSuccess
	entry.Message = msgCreated
	entry.PostID = &id
	p.log.Log(logCtx, entry)
	return id, nil
}

type metaPair struct{ key, value string }

// writeMeta stores tracking and SEO metadata. Failures are logged only: the
// draft already exists.
func (p *Publisher) writeMeta(ctx context.Context, id int64, feed models.FeedConfig, a models.Article, res models.AIResult, title string, seo bool) {
	summary := StripTags(res.Summary)

	meta := []metaPair{
		{models.MetaOriginalLink, a.Link},
		{models.MetaOriginalGUID, a.GUID},
		{models.MetaFeedID, feed.ID},
		{models.MetaSummary, summary},
		{models.MetaModel, res.Model},
		{models.MetaHash, contentHash(title, a.Link, a.GUID)},
	}
	if seo {
		meta = append(meta,
			metaPair{models.MetaSEODesc, summary},
			metaPair{models.MetaSEOFocusKW, FocusKeyphrase(title)},
			metaPair{models.MetaSEOTitle, SEOTitle(title)},
		)
	}

	for _, m := range meta {
		if m.value == "" {
			continue
		}
		if err := p.store.SetDraftMeta(ctx, id, m.key, m.value); err != nil {
			slog.Error("storing draft metadata", "draft_id", id, "key", m.key, "error", err)
		}
	}
}

// attachImage downloads the featured image and sets it as the thumbnail
// unless the draft already has one.
func (p *Publisher) attachImage(ctx context.Context, id int64, feed models.FeedConfig, imageURL string) {
	has, err := p.store.HasThumbnail(ctx, id)
	if err != nil {
		slog.Warn("checking draft thumbnail", "draft_id", id, "error", err)
		return
	}
	if has {
		return
	}

	err = p.storeImage(ctx, id, imageURL)
	if err == nil {
		return
	}

	slog.Warn("featured image failed", "draft_id", id, "url", imageURL, "error", err)
	p.log.Log(context.WithoutCancel(ctx), models.LogEntry{
		FeedID:   feed.ID,
		FeedName: feed.DisplayName(),
		Status:   models.LogErrorImage,
		Message:  msgImageFailed + err.Error(),
		PostID:   &id,
	})
}

func (p *Publisher) storeImage(ctx context.Context, id int64, imageURL string) error {
	img, err := p.images.fetch(ctx, imageURL)
	if err != nil {
		return err
	}
	attID, err := p.store.CreateAttachment(ctx, &models.Attachment{
		DraftID:   id,
		SourceURL: imageURL,
		MimeType:  img.mimeType,
		Size:      int64(len(img.data)),
		Data:      img.data,
	})
	if err != nil {
		return fmt.Errorf("storing attachment: %w", err)
	}
	if err := p.store.SetThumbnail(ctx, id, attID); err != nil {
		return fmt.Errorf("setting thumbnail: %w", err)
	}
	return nil
}

// contentHash fingerprints a draft by title, link and guid.
func contentHash(title, link, guid string) string {
	sum := sha1.Sum([]byte(title + "|" + link + "|" + guid))
	return hex.EncodeToString(sum[:])
}
