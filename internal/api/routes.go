package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured. metrics may be
// nil, in which case /metrics is not mounted.
func NewRouter(h *Handler, hub *Hub, metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))
			r.Get("/problems", h.ListProblems)
			r.Get("/stats", h.Stats)
			r.Get("/stats/stream", hub.ServeStream)
			r.Get("/goal", h.GetGoal)
			r.Put("/goal", h.SetGoal)
			r.Put("/preferences", h.UpdatePreferences)
			r.Put("/progress/{id}", h.UpdateProgress)
			r.Get("/export", h.Export)
			r.Post("/export/backup", h.Backup)
			r.Post("/import", h.Import)
			r.Get("/sync-log", h.SyncLog)
		})
	})

	return r
}
