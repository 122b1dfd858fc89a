package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autopodbor/intake-bot/internal/store"
)

const healthCheckTimeout = 3 * time.Second

// Counter reports a live count, such as active sessions.
type Counter func() int

// StatsSource reports runtime counters of a component.
type StatsSource interface {
	Stats() map[string]any
}

// HealthHandler reports the state of the bot and its dependencies.
type HealthHandler struct {
	journal  store.Journal
	sessions Counter
	sync     StatsSource
}

// NewHealthHandler creates a health handler. journal and sync may be nil.
func NewHealthHandler(journal store.Journal, sessions Counter, sync StatsSource) *HealthHandler {
	return &HealthHandler{journal: journal, sessions: sessions, sync: sync}
}

// Health returns the health status of the bot and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if h.journal == nil {
		checks["journal"] = "disabled"
	} else if err := h.journal.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "Health check failed", "error", err)
		status["status"] = "degraded"
		checks["journal"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["journal"] = "ok"
	}

	if h.sessions != nil {
		status["sessions"] = h.sessions()
	}
	if h.sync == nil {
		checks["sheet_sync"] = "disabled"
	} else {
		checks["sheet_sync"] = "ok"
		status["sheet_sync"] = h.sync.Stats()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
