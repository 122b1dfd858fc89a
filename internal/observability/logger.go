// Package observability configures structured logging and optional OTLP
// export of traces and logs.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"

	"github.com/autopodbor/intake-bot/internal/config"
	"github.com/autopodbor/intake-bot/internal/identity"
)

// SetupLogger installs the process-wide slog logger. Production logs are
// JSON, or go to the OTLP log pipeline when telemetry is configured;
// development logs are human-readable text at debug level.
func SetupLogger(cfg *config.Config) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, cfg)))
}

// NewHandler builds the handler SetupLogger installs, writing to w.
func NewHandler(w io.Writer, cfg *config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsDevelopment() {
		opts.Level = slog.LevelDebug
	}

	switch {
	case cfg.IsProduction() && cfg.OTel.Enabled():
		return NewContextHandler(otelslog.NewHandler(
			cfg.OTel.ServiceName,
			otelslog.WithLoggerProvider(global.GetLoggerProvider()),
		))
	case cfg.IsDevelopment():
		return NewContextHandler(slog.NewTextHandler(w, opts))
	default:
		return NewContextHandler(slog.NewJSONHandler(w, opts))
	}
}

// ContextHandler adds trace ids and conversation fields found in the record
// context.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if key := identity.KeyFromContext(ctx); key != "" {
		r.AddAttrs(slog.String("identity_key", key))
	}
	if state := identity.StateFromContext(ctx); state != "" {
		r.AddAttrs(slog.String("state", state))
	}
	if chatID := identity.ChatIDFromContext(ctx); chatID != 0 {
		r.AddAttrs(slog.Int64("chat_id", chatID))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
