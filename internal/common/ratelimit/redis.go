package ratelimit

import (
	"context"
	"time"
)

// WindowCounter is the Redis operation RedisWindow needs; implemented by internal/redis.Client
type WindowCounter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
}

// RedisWindow is a fixed-window limiter whose counters live in Redis, so every
// instance shares the same window per key. Expired windows are removed by Redis TTLs.
type RedisWindow struct {
	counter   WindowCounter
	keyPrefix string
	now       func() time.Time
}

// NewRedisWindow creates a Redis-backed limiter
func NewRedisWindow(counter WindowCounter, keyPrefix string) *RedisWindow {
	if keyPrefix == "" {
		keyPrefix = "rate_limit:"
	}
	return &RedisWindow{
		counter:   counter,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// Check counts one request for key. Requests over the limit still increment the
// counter; they are rejected until the window key expires.
func (r *RedisWindow) Check(ctx context.Context, key string, window time.Duration, maxRequests int) (Result, error) {
	count, ttl, err := r.counter.IncrementWindow(ctx, r.keyPrefix+key, window)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Limit:     maxRequests,
		Allowed:   count <= maxRequests,
		Remaining: remaining(maxRequests, count),
		ResetAt:   r.now().Add(ttl),
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}
	return result, nil
}

var _ Checker = (*RedisWindow)(nil)
