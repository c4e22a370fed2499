// Package ratelimit applies the shared limiters to HTTP routes.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	httputil "clinic-console/internal/common/http"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/common/ratelimit"
	"clinic-console/internal/metrics"
)

// Limiter guards routes with a keyed fixed-window Checker
type Limiter struct {
	checker ratelimit.Checker
	config  *Config
	metrics *metrics.Metrics
	logger  logging.Logger
}

type Config struct {
	DefaultLimit  int           `json:"default_limit"`
	DefaultWindow time.Duration `json:"default_window"`
	Enabled       bool          `json:"enabled"`
}

// Rule is the limit applied to one group of routes
type Rule struct {
	Scope  string
	Limit  int
	Window time.Duration
	Key    KeyFunc
}

// KeyFunc extracts the rate-limit key from a request; an empty key skips limiting
type KeyFunc func(*http.Request) string

func NewLimiter(checker ratelimit.Checker, config *Config, m *metrics.Metrics) *Limiter {
	if config == nil {
		config = &Config{
			DefaultLimit:  100,
			DefaultWindow: time.Minute,
			Enabled:       true,
		}
	}

	return &Limiter{
		checker: checker,
		config:  config,
		metrics: m,
		logger:  logging.Component("ratelimit"),
	}
}

// Check counts a request for key under rule limits, falling back to the defaults for zero values
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Result, error) {
	if limit <= 0 {
		limit = l.config.DefaultLimit
	}
	if window <= 0 {
		window = l.config.DefaultWindow
	}

	if !l.config.Enabled {
		return ratelimit.Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   time.Now().Add(window),
		}, nil
	}

	return l.checker.Check(ctx, key, window, limit)
}

// Middleware rejects requests over the rule's limit with 429. Checker errors fail open.
func (l *Limiter) Middleware(rule Rule) func(http.Handler) http.Handler {
	keyFunc := rule.Key
	if keyFunc == nil {
		keyFunc = IPBasedKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if rule.Scope != "" {
				key = rule.Scope + ":" + key
			}

			result, err := l.Check(r.Context(), key, rule.Limit, rule.Window)
			if err != nil {
				l.logger.Warn("rate limit check failed, allowing request",
					logging.String("key", key), logging.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				l.metrics.RateLimited(rule.Scope)
				l.logger.Info("rate limit exceeded",
					logging.String("key", key),
					logging.Duration("retry_after", result.RetryAfter))
				httputil.WriteRateLimited(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GlobalMiddleware applies a process-wide throttle before any keyed limit
func GlobalMiddleware(limiter *ratelimit.GlobalLimiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				m.RateLimited("global")
				httputil.WriteRateLimited(w, time.Second)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPBasedKey keys by client address
func IPBasedKey(r *http.Request) string {
	return httputil.ClientIP(r)
}

// EndpointBasedKey keys by method and path
func EndpointBasedKey(r *http.Request) string {
	return r.Method + ":" + r.URL.Path
}
