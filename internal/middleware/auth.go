// Package middleware provides HTTP middleware for the admin API.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/autopodbor/intake-bot/internal/identity"
)

// APIKeyHeader carries the admin key. "Authorization: Bearer <key>" is
// accepted as well.
const APIKeyHeader = "X-Admin-Key"

// RequireAPIKey rejects requests that do not present key. An empty key
// rejects everything.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(APIKeyHeader)
			if presented == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					presented = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if key == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				slog.WarnContext(r.Context(), "Admin request rejected",
					"path", r.URL.Path,
					"remote_ip", identity.IPFromRequest(r))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
