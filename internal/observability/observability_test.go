package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/autopodbor/intake-bot/internal/config"
	"github.com/autopodbor/intake-bot/internal/identity"
)

func TestHandlerAddsConversationFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &config.Config{Env: "production"}))

	ctx := identity.WithChatID(identity.WithState(identity.WithKey(context.Background(), "42"), "brand"), 1001)
	logger.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "42", rec["identity_key"])
	assert.Equal(t, "brand", rec["state"])
	assert.Equal(t, float64(1001), rec["chat_id"])
	assert.NotContains(t, rec, "trace_id")
}

func TestHandlerAddsTraceIDs(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &config.Config{Env: "production"}))
	logger.With("component", "test").InfoContext(ctx, "traced")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, "test", rec["component"])
}

func TestDevelopmentLogsDebugText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &config.Config{Env: "development"}))
	logger.Debug("details", "k", "v")
	assert.Contains(t, buf.String(), "msg=details")
	assert.Contains(t, buf.String(), "k=v")
}

func TestSetupTelemetryDisabled(t *testing.T) {
	t.Parallel()

	tel, err := SetupTelemetry(context.Background(), config.OTelConfig{})
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, parseHeaders(" a = 1 ,b=x=y,broken,=v"))
	assert.Empty(t, parseHeaders(""))
}
