package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache defines the interface for cache operations
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
	Stats() Stats
}

// Stats counts lookups since the cache was created
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// GetOrCompute implements cache-aside: the cached value is returned when present and
// unexpired, otherwise fn is called and its result stored under key for ttl.
// Errors from fn are returned as-is and nothing is cached.
func GetOrCompute[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if cached, found := c.Get(ctx, key); found {
		if value, ok := decode[T](cached); ok {
			return value, nil
		}
	}

	value, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		return value, fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return value, nil
}

// decode converts a cached value back to T. Local entries are stored as-is;
// Redis entries come back as raw JSON.
func decode[T any](cached interface{}) (T, bool) {
	if value, ok := cached.(T); ok {
		return value, true
	}

	var value T
	raw, ok := cached.(json.RawMessage)
	if !ok {
		return value, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false
	}
	return value, true
}
