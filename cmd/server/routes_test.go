package main

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopodbor/intake-bot/internal/api"
	"github.com/autopodbor/intake-bot/internal/conversation"
	"github.com/autopodbor/intake-bot/internal/domain"
	"github.com/autopodbor/intake-bot/internal/session"
	"github.com/autopodbor/intake-bot/internal/telegram"
)

type nopBot struct{}

func (nopBot) Send(tgbotapi.Chattable) (tgbotapi.Message, error) { return tgbotapi.Message{}, nil }

func (nopBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type nopHandler struct{}

func (nopHandler) Handle(context.Context, conversation.Event, conversation.Responder) (domain.State, error) {
	return domain.StateIdle, nil
}

const webhookUpdate = `{"update_id":1,"message":{"message_id":3,"date":0,` +
	`"chat":{"id":5,"type":"private"},"from":{"id":42,"is_bot":false,"first_name":"Иван"},"text":"Москва"}}`

// captureAccessLog redirects chi's request logger for the duration of the test.
func captureAccessLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := chiMiddleware.DefaultLogger
	chiMiddleware.DefaultLogger = chiMiddleware.RequestLogger(&chiMiddleware.DefaultLogFormatter{
		Logger:  log.New(&buf, "", 0),
		NoColor: true,
	})
	t.Cleanup(func() { chiMiddleware.DefaultLogger = prev })
	return &buf
}

func TestWebhookSecretStaysOutOfAccessLog(t *testing.T) {
	logs := captureAccessLog(t)

	mb := conversation.NewMailbox(0, nil)
	hook := telegram.NewWebhookHandler(telegram.NewRouter(nopBot{}, nopHandler{}, mb, nil), "s3cr3t-token")
	r := newRouter(httpRoutes{
		health:      api.NewHealthHandler(nil, nil, nil),
		webhook:     hook,
		webhookPath: "/tg",
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tg/s3cr3t-token", strings.NewReader(webhookUpdate)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, mb.Close(context.Background()))
	assert.NotContains(t, logs.String(), "s3cr3t-token")
	assert.Contains(t, logs.String(), "/api/health", "regular API requests are still logged")
}

func TestAdminRoutesRequireKey(t *testing.T) {
	captureAccessLog(t)

	r := newRouter(httpRoutes{
		health:   api.NewHealthHandler(nil, nil, nil),
		admin:    api.NewAdminHandler(nil, session.NewStore()),
		adminKey: "admin-key",
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("X-Admin-Key", "admin-key")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "journal disabled")
}
