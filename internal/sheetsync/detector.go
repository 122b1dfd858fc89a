package sheetsync

import (
	"context"
	"log/slog"

	"github.com/autopodbor/intake-bot/internal/domain"
)

// Dispatcher hands a payload to the remote store. Implementations must not
// block and must not report delivery failures to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, p domain.Payload)
}

// ChangeDetector suppresses dispatches of payloads identical to the last one
// sent for the same session.
type ChangeDetector struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewChangeDetector returns a detector dispatching through d. A nil d turns
// every MaybeSync into a no-op.
func NewChangeDetector(d Dispatcher, logger *slog.Logger) *ChangeDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeDetector{dispatcher: d, logger: logger}
}

// Enabled reports whether a dispatcher is configured.
func (c *ChangeDetector) Enabled() bool {
	return c != nil && c.dispatcher != nil
}

// MaybeSync dispatches the current session payload if it differs from the
// last one dispatched. LastSynced is updated before the dispatch is issued,
// regardless of how delivery turns out. It reports whether a dispatch was
// issued.
func (c *ChangeDetector) MaybeSync(ctx context.Context, s *domain.Session) bool {
	if !c.Enabled() || s == nil {
		return false
	}
	if s.Phone == "" && s.IdentityKey == "" {
		return false
	}

	payload := BuildPayload(s)
	if payload.IsEmpty() {
		return false
	}
	if s.LastSynced != nil && *s.LastSynced == payload {
		c.logger.DebugContext(ctx, "sheet sync skipped, payload unchanged")
		return false
	}

	snapshot := payload
	s.LastSynced = &snapshot
	c.dispatcher.Dispatch(ctx, payload)
	return true
}
