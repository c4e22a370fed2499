// Package ratelimit provides the request-coordination limiters shared by the HTTP layer.
//
// # Fixed Window
//
// FixedWindow counts requests per key inside a window that starts with the first
// request for that key:
//
//	limiter := ratelimit.NewFixedWindow()
//	defer limiter.Stop()
//
//	result := limiter.Check(ctx, "login:10.0.0.7", time.Minute, 10)
//	if !result.Allowed {
//		// reject, retry after result.RetryAfter
//	}
//
// Windows do not slide: a client can send up to twice the limit in a short span
// straddling a window boundary. State is one counter per key, and a sweep removes
// closed windows. The sweep stops rescheduling itself once no keys remain.
//
// RedisWindow implements the same contract on a Redis counter so that several
// instances share one window per key.
//
// # Global Throttle
//
// GlobalLimiter is a token bucket (golang.org/x/time/rate) used as a process-wide
// cap in front of ingestion endpoints, independent of any key.
//
// # Thread Safety
//
// All limiters are safe for concurrent use.
package ratelimit
