package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter applies a fixed-window rate limit backed by Redis, keyed by
// client IP and, when authenticated, user ID. A nil client disables the
// limiter entirely, which is how single-node deployments run.
type RateLimiter struct {
	cache  *redis.Client
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewRateLimiter constructs a RateLimiter with the given limit per window.
func NewRateLimiter(cache *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		cache:  cache,
		limit:  limit,
		window: window,
		logger: logger.With("component", "ratelimit"),
	}
}

// Limit enforces the rate limit. When Redis is unreachable the request is
// let through; an unavailable limiter must not take down logins.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	if rl.cache == nil || rl.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := fmt.Sprintf("ratelimit:%s", ClientIP(r.Context()))
		if userID, ok := GetUserID(r.Context()); ok && userID != "" {
			key = fmt.Sprintf("ratelimit:%s:%s", ClientIP(r.Context()), userID)
		}

		count, err := rl.cache.Incr(r.Context(), key).Result()
		if err != nil {
			rl.logger.Warn("rate limiter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			if err := rl.cache.Expire(r.Context(), key, rl.window).Err(); err != nil {
				rl.logger.Warn("rate limiter expire failed", "error", err)
			}
		}

		if count > int64(rl.limit) {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
			w.Header().Set("X-RateLimit-Remaining", "0")
			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", rl.limit-int(count)))
		next.ServeHTTP(w, r)
	})
}
