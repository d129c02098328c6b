package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Purposes share the per-IP budget only with requests of the same purpose
const (
	PurposeSignup          = "signup"
	PurposeLogin           = "login"
	PurposeForgotPassword  = "forgot_password"
	PurposeVerifyResetCode = "verify_reset_code"
)

// Limiter is a fixed-window request counter per IP and purpose, stored in Redis
type Limiter struct {
	client      redis.Cmdable
	maxRequests int
	window      time.Duration
}

func NewLimiter(client redis.Cmdable, maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		client:      client,
		maxRequests: maxRequests,
		window:      window,
	}
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("rate_limit:ip:%s:%s", purpose, ip)
}

// CheckIPRateLimitWithPurpose reports whether ip already used its budget for
// purpose in the current window
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	return count >= l.maxRequests, nil
}

// RecordIPRequestWithPurpose counts one request. The window starts with the
// first request and is not extended by later ones.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(ip, purpose)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return nil
}
