package http

import (
	"net/http"
	"strings"
)

const (
	swaggerCSP = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"
	apiCSP     = "default-src 'none'"
)

// SecurityHeaders adds security-related headers to all responses. Auth
// responses carry tokens and reset secrets, so they are never cached.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		switch {
		case strings.HasPrefix(r.URL.Path, "/swagger/"):
			h.Set("Content-Security-Policy", swaggerCSP)
		case strings.HasPrefix(r.URL.Path, "/api/auth/"):
			h.Set("Content-Security-Policy", apiCSP)
			h.Set("Cache-Control", "no-store")
		default:
			h.Set("Content-Security-Policy", apiCSP)
		}

		next.ServeHTTP(w, r)
	})
}
