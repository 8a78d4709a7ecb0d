package security

import (
	"fmt"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles the admission endpoints with a Redis fixed window,
// keyed by the authenticated user when present and the client IP otherwise.
type RateLimiter struct {
	redis  *redis.Client
	window time.Duration
	limit  int
}

func NewRateLimiter(redisClient *redis.Client, window time.Duration, limit int) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 30
	}
	return &RateLimiter{redis: redisClient, window: window, limit: limit}
}

// Middleware is bound per-route on the cave endpoints. Redis failures fail
// open: throttling is protective, not load-bearing.
func (r *RateLimiter) Middleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if r.redis == nil {
			return e.Next()
		}

		key := "cave:ratelimit:"
		if e.Auth != nil {
			key += "user:" + e.Auth.Id
		} else {
			key += "ip:" + e.RealIP()
		}

		ctx := e.Request.Context()

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, r.window)
		}
		if count > int64(r.limit) {
			return apis.NewTooManyRequestsError(
				fmt.Sprintf("Rate limit exceeded, retry within %s", r.window), nil)
		}

		return e.Next()
	}
}
