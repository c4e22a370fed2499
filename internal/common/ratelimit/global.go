package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// GlobalLimiter is a process-wide token bucket applied regardless of caller identity
type GlobalLimiter struct {
	limiter *rate.Limiter
	enabled bool
}

// NewGlobalLimiter allows requestsPerSecond on average with bursts up to burst.
// A non-positive rate disables the limiter.
func NewGlobalLimiter(requestsPerSecond float64, burst int) *GlobalLimiter {
	if requestsPerSecond <= 0 {
		return &GlobalLimiter{}
	}
	if burst <= 0 {
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &GlobalLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		enabled: true,
	}
}

// Allow reports whether a request may proceed now
func (g *GlobalLimiter) Allow() bool {
	if !g.enabled {
		return true
	}
	return g.limiter.Allow()
}

// Wait blocks until a request may proceed or ctx is done
func (g *GlobalLimiter) Wait(ctx context.Context) error {
	if !g.enabled {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// Stats returns limiter state for diagnostics
func (g *GlobalLimiter) Stats() map[string]interface{} {
	if !g.enabled {
		return map[string]interface{}{"enabled": false}
	}
	return map[string]interface{}{
		"enabled":          true,
		"limit":            float64(g.limiter.Limit()),
		"burst":            g.limiter.Burst(),
		"available_tokens": g.limiter.Tokens(),
	}
}
