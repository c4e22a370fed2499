package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a single Check
type Result struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
	ResetAt    time.Time     `json:"reset_at"`
}

// Checker counts a request against key and reports whether it fits in the window
type Checker interface {
	Check(ctx context.Context, key string, window time.Duration, maxRequests int) (Result, error)
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}
