package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// HeaderName carries the admin API key on every authenticated request.
const HeaderName = "X-API-Key"

// Middleware gates admin routes behind a shared API key. The comparison is
// constant time so the key cannot be probed byte by byte.
type Middleware struct {
	apiKey string
}

func NewMiddleware(apiKey string) *Middleware {
	return &Middleware{apiKey: apiKey}
}

// Middleware returns HTTP middleware enforcing the API key. With no key
// configured every request is refused, never waved through.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.apiKey == "" {
			slog.WarnContext(r.Context(), "Admin API key not configured, refusing request",
				"method", r.Method,
				"path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"admin API key not configured"}`))
			return
		}

		key := r.Header.Get(HeaderName)
		if key == "" {
			// Fall back to a bearer token for clients that cannot set
			// custom headers.
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				key = strings.TrimPrefix(h, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) != 1 {
			slog.WarnContext(r.Context(), "Rejected unauthenticated request",
				"method", r.Method,
				"path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid or missing API key"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
