package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/autopodbor/intake-bot/internal/api"
	"github.com/autopodbor/intake-bot/internal/middleware"
	"github.com/autopodbor/intake-bot/internal/telegram"
)

// httpRoutes holds the handlers served by the HTTP listener. admin and
// webhook may be nil.
type httpRoutes struct {
	health      *api.HealthHandler
	admin       *api.AdminHandler
	adminKey    string
	webhook     *telegram.WebhookHandler
	webhookPath string
}

func newRouter(routes httpRoutes) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Logger)
		r.Route("/api", func(r chi.Router) {
			routes.health.RegisterHealth(r)
			if routes.admin != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireAPIKey(routes.adminKey))
					routes.admin.RegisterRoutes(r)
				})
			}
		})
	})

	// The webhook path carries the secret, so it stays out of the access log.
	if routes.webhook != nil {
		r.Post(routes.webhook.Pattern(routes.webhookPath), routes.webhook.ServeHTTP)
	}

	return r
}
