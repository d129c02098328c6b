package ratelimit

import (
	"context"
	"net/http"

	"github.com/redmonkez12/wheels-api/internal/httputil"
	"github.com/redmonkez12/wheels-api/internal/logging"
)

// Checker is the per-IP budget used by Middleware. *Limiter implements it.
type Checker interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
}

var _ Checker = (*Limiter)(nil)

// Middleware rejects requests with 429 once the client IP used its budget for
// purpose. Redis failures are logged and the request is let through.
func Middleware(checker Checker, purpose string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.GetLoggerFromContext(r.Context())
			ip := httputil.ClientIP(r)

			exceeded, err := checker.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
			if err != nil {
				logger.Error("failed to check IP rate limit", "purpose", purpose, "error", err.Error())
			} else if exceeded {
				logger.Warn("IP rate limit exceeded", "purpose", purpose, "ip", ip)
				httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
				return
			}

			if err := checker.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
				logger.Error("failed to record IP request", "purpose", purpose, "error", err.Error())
			}

			next.ServeHTTP(w, r)
		})
	}
}
