package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apierrors "github.com/hrygo/conceptlens/server/internal/errors"
)

// RateLimiter provides per-key rate limiting.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	limit  rate.Limit
	burst  int
}

// NewRateLimiter creates a rate limiter of 10 requests per second with a
// burst of 20 for every key.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithLimit(rate.Every(time.Second/10), 20)
}

// NewRateLimiterWithLimit creates a rate limiter with a custom rate and burst.
func NewRateLimiterWithLimit(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limits: make(map[string]*rate.Limiter),
		limit:  limit,
		burst:  burst,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[key]; ok {
		return limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limits[key] = limiter
	return limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait waits for a request to be allowed.
// Returns error if the context is cancelled or rate limit exceeded.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}

// KeyFunc selects the rate limit bucket of a request.
type KeyFunc func(c echo.Context) string

// OwnerOrIP keys requests by the X-Owner-ID header or the owner_id query
// parameter, falling back to the client IP.
func OwnerOrIP(c echo.Context) string {
	if owner := c.Request().Header.Get("X-Owner-ID"); owner != "" {
		return "owner:" + owner
	}
	if owner := c.QueryParam("owner_id"); owner != "" {
		return "owner:" + owner
	}
	return "ip:" + c.RealIP()
}

// RateLimit rejects requests over the limit of their bucket with 429.
func RateLimit(rl *RateLimiter, key KeyFunc) echo.MiddlewareFunc {
	if key == nil {
		key = OwnerOrIP
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(key(c)) {
				return apierrors.RateLimitExceeded("too many requests")
			}
			return next(c)
		}
	}
}
