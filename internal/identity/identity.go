// Package identity derives conversation identity keys and carries them
// through request contexts.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

type contextKey int

const (
	identityKey contextKey = iota
	stateKey
	chatIDKey
)

var keyPattern = regexp.MustCompile(`^-?[0-9]{1,20}$`)

// FromUserID returns the identity key for a platform user id. Zero means the
// sender is unknown and yields "".
func FromUserID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// IsValidKey reports whether key has the shape produced by FromUserID.
func IsValidKey(key string) bool {
	return keyPattern.MatchString(strings.TrimSpace(key))
}

// WithKey returns a context carrying the conversation identity key.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, identityKey, key)
}

// KeyFromContext extracts the identity key from ctx.
func KeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(identityKey).(string); ok {
		return v
	}
	return ""
}

// WithState records the conversation state current when the event arrived.
func WithState(ctx context.Context, state string) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

// StateFromContext extracts the conversation state from ctx.
func StateFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(stateKey).(string); ok {
		return v
	}
	return ""
}

// WithChatID records the chat the event belongs to.
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, chatIDKey, chatID)
}

// ChatIDFromContext extracts the chat id from ctx, 0 when absent.
func ChatIDFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(chatIDKey).(int64); ok {
		return v
	}
	return 0
}

// IPFromRequest returns a normalized remote IP for request logging.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
