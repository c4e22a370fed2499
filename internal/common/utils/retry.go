package utils

import (
	"context"
	"time"

	"clinic-console/internal/common/logging"
)

// RetryPolicy configures bounded exponential backoff.
//
// The delay before attempt n+1 (n >= 1) is BaseDelay * 2^(n-1). There is no jitter
// and no cap; MaxAttempts bounds the total wait. Every failure is treated as
// transient: callers only wrap operations whose errors are all worth retrying.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts including the first one
	MaxAttempts int

	// BaseDelay is the delay before the second attempt
	BaseDelay time.Duration

	// Operation names the wrapped call in log lines
	Operation string

	// Logger receives one Warn per non-final failure and one Error for the terminal failure.
	// Defaults to the global logger.
	Logger logging.Logger

	// OnRetry is invoked after a non-final failure, before sleeping
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns the policy used for external store writes
func DefaultRetryPolicy(operation string) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		Operation:   operation,
	}
}

// BackoffDelay returns the delay slept before the given attempt (attempt >= 2)
func (p RetryPolicy) BackoffDelay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt-2))
}

// sleep is replaced in tests
var sleep = time.Sleep

// Retry runs op until it succeeds or MaxAttempts attempts have failed, returning the
// error of the final attempt. ctx is handed to op but never stops the loop: once
// started, Retry runs to success or terminal failure. Callers that need a bound
// pass a ctx with a deadline, which op sees and fails on.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	logger := policy.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Field{Key: "operation", Value: policy.Operation})

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := policy.BackoffDelay(attempt + 1)
		logger.Warn("Operation failed, retrying",
			logging.Field{Key: "attempt", Value: attempt},
			logging.Field{Key: "max_attempts", Value: maxAttempts},
			logging.Field{Key: "delay_ms", Value: delay.Milliseconds()},
			logging.Err(err),
		)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}

		sleep(delay)
	}

	logger.Error("Operation failed after all attempts", lastErr, logging.Field{Key: "attempts", Value: maxAttempts})
	return zero, lastErr
}

// RetryDo is Retry for operations without a result
func RetryDo(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
