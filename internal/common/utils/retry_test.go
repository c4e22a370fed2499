package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-console/internal/common/logging"
)

// recordSleeps replaces the sleeper for the duration of a test
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	previous := sleep
	sleep = func(d time.Duration) {
		delays = append(delays, d)
	}
	t.Cleanup(func() { sleep = previous })
	return &delays
}

func testPolicy(maxAttempts int, base time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		Operation:   "test",
		Logger:      logging.NewNopLogger(),
	}
}

func TestRetry_SucceedsFirstTime(t *testing.T) {
	delays := recordSleeps(t)
	attempts := 0

	result, err := Retry(context.Background(), testPolicy(3, 100*time.Millisecond), func(ctx context.Context) (string, error) {
		attempts++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *delays)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	delays := recordSleeps(t)
	attempts := 0

	result, err := Retry(context.Background(), testPolicy(5, 10*time.Millisecond), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("temporary error")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *delays)
}

func TestRetry_AlwaysFailingAttemptsExactlyMaxAttempts(t *testing.T) {
	delays := recordSleeps(t)
	attempts := 0
	var lastErr error

	_, err := Retry(context.Background(), testPolicy(4, 100*time.Millisecond), func(ctx context.Context) (struct{}, error) {
		attempts++
		lastErr = errors.New("failure " + string(rune('0'+attempts)))
		return struct{}{}, lastErr
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Same(t, lastErr, err, "the final attempt's error is surfaced unchanged")
	// delay before attempt k is base * 2^(k-2)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, *delays)
}

func TestRetry_ReportsEachNonFinalFailure(t *testing.T) {
	recordSleeps(t)
	var reported []int

	policy := testPolicy(3, time.Millisecond)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		reported = append(reported, attempt)
	}

	err := RetryDo(context.Background(), policy, func(ctx context.Context) error {
		return errors.New("down")
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, reported)
}

func TestRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	recordSleeps(t)
	attempts := 0

	err := RetryDo(context.Background(), testPolicy(0, time.Millisecond), func(ctx context.Context) error {
		attempts++
		return errors.New("down")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_CancelledContextDoesNotStopAttempts(t *testing.T) {
	delays := recordSleeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	var lastErr error

	err := RetryDo(ctx, testPolicy(3, 100*time.Millisecond), func(ctx context.Context) error {
		attempts++
		cancel()
		lastErr = errors.New("down")
		return lastErr
	})

	assert.Equal(t, 3, attempts)
	assert.Same(t, lastErr, err, "the final attempt's error is surfaced, not the cancellation")
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *delays)
}

func TestBackoffDelay(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 50 * time.Millisecond}

	assert.Equal(t, time.Duration(0), policy.BackoffDelay(1))
	assert.Equal(t, 50*time.Millisecond, policy.BackoffDelay(2))
	assert.Equal(t, 100*time.Millisecond, policy.BackoffDelay(3))
	assert.Equal(t, 400*time.Millisecond, policy.BackoffDelay(5))
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy("save_call_log")

	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, "save_call_log", policy.Operation)
}
