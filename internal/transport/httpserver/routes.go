package httpserver

import (
	"net/http"
	"time"

	"club-planner-go/internal/config"
	"club-planner-go/internal/transport/httpserver/handler"
	authmw "club-planner-go/internal/transport/httpserver/middleware"
	"club-planner-go/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg config.Config, handlers *handler.Handlers, profiles authmw.ProfileSaver, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(authmw.NewCORS(cfg.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		// Calendar clients fetch the feed without credentials.
		r.Get("/groups/{group_id}/calendar.ics", handlers.CalendarFeed)

		auth := authmw.NewIdentity(cfg.Auth, profiles, log)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Get("/auth/me", handlers.AuthMe)

			r.Post("/series", handlers.CreateSeries)
			r.Put("/series/{id}", handlers.EditSeries)
			r.Delete("/series/{id}", handlers.DeleteSeries)

			r.Get("/occurrences", handlers.ListOccurrences)
			r.Post("/occurrences", handlers.CreateOccurrence)
			r.Get("/occurrences/{id}", handlers.GetOccurrence)
			r.Put("/occurrences/{id}", handlers.EditOccurrence)
			r.Delete("/occurrences/{id}", handlers.DeleteOccurrence)

			r.Delete("/groups/{group_id}/future", handlers.DeleteGroupFuture)
		})
	})

	return r
}
