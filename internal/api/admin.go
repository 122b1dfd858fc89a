package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autopodbor/intake-bot/internal/domain"
	"github.com/autopodbor/intake-bot/internal/identity"
	"github.com/autopodbor/intake-bot/internal/session"
	"github.com/autopodbor/intake-bot/internal/store"
)

// AdminHandler exposes the dispatch journal and lets operators drop stuck
// conversations.
type AdminHandler struct {
	journal  store.Journal
	sessions *session.Store
}

// NewAdminHandler creates an admin handler. journal may be nil.
func NewAdminHandler(journal store.Journal, sessions *session.Store) *AdminHandler {
	return &AdminHandler{journal: journal, sessions: sessions}
}

type dispatchResponse struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Phone      string    `json:"phone,omitempty"`
	Payload    string    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDispatchResponse(rec domain.DispatchRecord) dispatchResponse {
	return dispatchResponse{
		ID:         rec.ID,
		Status:     string(rec.Status),
		HTTPStatus: rec.HTTPStatus,
		Error:      rec.Error,
		DurationMS: rec.Duration.Milliseconds(),
		Phone:      rec.Phone,
		Payload:    rec.PayloadJSON,
		CreatedAt:  rec.CreatedAt.UTC(),
	}
}

// ListDispatches returns the latest sync attempts for one identity key.
func (h *AdminHandler) ListDispatches(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		Error(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	key := chi.URLParam(r, "identity")
	if !identity.IsValidKey(key) {
		Error(w, http.StatusBadRequest, "invalid identity key")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recs, err := h.journal.ListDispatches(r.Context(), key, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list dispatches", "identity_key", key, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list dispatches")
		return
	}

	out := make([]dispatchResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDispatchResponse(rec))
	}
	JSON(w, http.StatusOK, map[string]any{
		"identity_key": key,
		"dispatches":   out,
	})
}

// Stats returns journal totals by status.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		Error(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	stats, err := h.journal.DispatchStats(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load dispatch stats", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	resp := map[string]any{
		"total":     stats.Total,
		"delivered": stats.Delivered,
		"failed":    stats.Failed,
		"dropped":   stats.Dropped,
	}
	if stats.LastAt != nil {
		resp["last_at"] = stats.LastAt.UTC()
	}
	JSON(w, http.StatusOK, resp)
}

// ResetSession forgets the in-memory conversation of one identity key. The
// next message from that user starts from idle.
func (h *AdminHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "identity")
	if !identity.IsValidKey(key) {
		Error(w, http.StatusBadRequest, "invalid identity key")
		return
	}
	if h.sessions.Get(key) == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	h.sessions.Delete(key)
	slog.InfoContext(r.Context(), "Session reset by admin", "identity_key", key)
	JSON(w, http.StatusOK, map[string]any{"identity_key": key, "reset": true})
}

// RegisterRoutes mounts the admin routes on r.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dispatches/{identity}", h.ListDispatches)
	r.Get("/stats", h.Stats)
	r.Delete("/sessions/{identity}", h.ResetSession)
}
