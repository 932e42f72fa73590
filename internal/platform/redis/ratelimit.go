package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/phrazzld/taskd/internal/ratelimit"
)

// windowLayout names one minute window, e.g. 202512051630.
const windowLayout = "200601021504"

// RateLimiter implements ratelimit.Limiter with one INCR counter per client
// per minute window.
type RateLimiter struct {
	rdb   redis.UniversalClient
	limit int
	now   func() time.Time
}

var _ ratelimit.Limiter = (*RateLimiter)(nil)

// NewRateLimiter creates a limiter allowing limit requests per client per minute.
func NewRateLimiter(rdb redis.UniversalClient, limit int) *RateLimiter {
	if rdb == nil {
		// ALLOW-PANIC
		panic("redis client cannot be nil")
	}
	return &RateLimiter{rdb: rdb, limit: limit, now: time.Now}
}

// Allow implements ratelimit.Limiter.
func (l *RateLimiter) Allow(ctx context.Context, clientID string) (*ratelimit.Result, error) {
	now := l.now()
	key := rateLimitKey(clientID, now)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit increment failed: %w", err)
	}
	// Expire only on the first hit so old windows clean themselves up.
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, 2*ratelimit.Window).Err(); err != nil {
			return nil, fmt.Errorf("rate limit expire failed: %w", err)
		}
	}

	return ratelimit.NewResult(l.limit, count, now), nil
}

func rateLimitKey(clientID string, now time.Time) string {
	return fmt.Sprintf("rl:%s:%s", clientID, ratelimit.WindowStart(now).UTC().Format(windowLayout))
}
