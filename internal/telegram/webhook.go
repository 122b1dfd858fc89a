package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/autopodbor/intake-bot/internal/identity"
)

// SecretParam is the route parameter holding the webhook secret.
const SecretParam = "secret"

const maxUpdateSize = 1 << 20

// WebhookHandler accepts updates pushed by Telegram.
type WebhookHandler struct {
	router *Router
	secret string
}

// NewWebhookHandler creates a handler. A non-empty secret must match the
// {secret} path segment of the request.
func NewWebhookHandler(rt *Router, secret string) *WebhookHandler {
	return &WebhookHandler{router: rt, secret: secret}
}

// ServeHTTP decodes one update and queues it. Telegram retries on non-2xx,
// so malformed bodies are acknowledged and dropped.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := chi.URLParam(r, SecretParam)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			slog.WarnContext(r.Context(), "Webhook request rejected", "remote_ip", identity.IPFromRequest(r))
			w.WriteHeader(http.StatusNotFound)
			return
		}
	}

	var u tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateSize)).Decode(&u); err != nil {
		slog.WarnContext(r.Context(), "Malformed webhook update", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.router.Route(r.Context(), u); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Pattern returns the route pattern to mount for the public webhook URL.
func (h *WebhookHandler) Pattern(path string) string {
	path = "/" + strings.Trim(path, "/")
	if h.secret == "" {
		return path
	}
	return strings.TrimSuffix(path, "/") + "/{" + SecretParam + "}"
}

// RegisterWebhook points Telegram at publicURL, appending the secret when set.
func RegisterWebhook(bot Bot, publicURL, secret string) error {
	link := strings.TrimSuffix(publicURL, "/")
	if secret != "" {
		link += "/" + secret
	}
	cfg, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}
	if _, err := bot.Request(cfg); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook switches the bot back to long polling.
func DeleteWebhook(bot Bot) error {
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
