package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hoanghai1803/feedwright/internal/api/handlers"
	"github.com/hoanghai1803/feedwright/internal/runlog"
	"github.com/hoanghai1803/feedwright/internal/runner"
	"github.com/hoanghai1803/feedwright/internal/settings"
	"github.com/hoanghai1803/feedwright/internal/stats"
)

// Services groups what the admin API exposes.
type Services struct {
	Settings    *settings.Store
	Drafts      handlers.DraftReader
	DB          handlers.Pinger
	Runner      *runner.Runner
	Logs        *runlog.Logger
	Stats       *stats.Service
	NewRewriter runner.RewriterFactory
}

// NewRouter creates and configures the HTTP router with all admin API
// routes.
func NewRouter(svc Services) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(exposeRequestID)
	r.Use(RequestLogger)
	r.Use(Recovery)
	r.Use(CORS)

	r.Get("/healthz", handlers.Health(svc.DB))

	r.Route("/api", func(api chi.Router) {
		api.Get("/feeds", handlers.GetFeeds(svc.Settings))
		api.Put("/feeds", handlers.ReplaceFeeds(svc.Settings))
		api.Post("/feeds", handlers.UpsertFeed(svc.Settings))
		api.Delete("/feeds/{id}", handlers.DeleteFeed(svc.Settings))
		api.Post("/feeds/{id}/run", handlers.RunFeed(svc.Runner))

		api.Get("/schedules", handlers.GetSchedules(svc.Settings))
		api.Put("/schedules", handlers.ReplaceSchedules(svc.Settings))
		api.Post("/schedules", handlers.UpsertSchedule(svc.Settings))
		api.Delete("/schedules/{id}", handlers.DeleteSchedule(svc.Settings))

		api.Get("/settings/ai", handlers.GetAISettings(svc.Settings))
		api.Put("/settings/ai", handlers.UpdateAISettings(svc.Settings))
		api.Post("/settings/ai/test", handlers.TestAIConnection(svc.Settings, svc.NewRewriter))
		api.Get("/settings/general", handlers.GetGeneralSettings(svc.Settings))
		api.Put("/settings/general", handlers.UpdateGeneralSettings(svc.Settings))

		api.Get("/logs", handlers.GetLogs(svc.Logs))
		api.Delete("/logs", handlers.ClearLogs(svc.Logs))

		api.Get("/stats", handlers.GetStats(svc.Stats))
		api.Get("/drafts", handlers.GetDrafts(svc.Drafts))
		api.Get("/drafts/{id}", handlers.GetDraft(svc.Drafts))
		api.Get("/drafts/{id}/thumbnail", handlers.GetDraftThumbnail(svc.Drafts))

		api.Post("/tick", handlers.Tick(svc.Runner))
		api.Post("/import", handlers.ImportSettings(svc.Settings))
	})

	return r
}
