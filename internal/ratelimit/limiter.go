package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimited indicates the caller exceeded its window quota.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter is a fixed-window counter backed by Redis. One INCR per check; the
// key expires with the window so idle callers cost nothing.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewLimiter constructs a limiter allowing limit events per window.
func NewLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow consumes one slot for the key. Returns ErrLimited when exhausted.
// Redis failures propagate so the caller decides its degradation policy.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return err
		}
	}
	if count > int64(l.limit) {
		return ErrLimited
	}
	return nil
}
