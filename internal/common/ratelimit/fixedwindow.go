package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

type windowEntry struct {
	count   int
	resetAt time.Time
}

// FixedWindow is an in-memory fixed-window counter keyed by arbitrary strings
type FixedWindow struct {
	mu            sync.Mutex
	entries       map[string]*windowEntry
	now           func() time.Time
	sweepInterval time.Duration
	sweepTimer    *time.Timer
	stopped       bool
}

// Option configures a FixedWindow
type Option func(*FixedWindow)

// WithClock replaces time.Now, used by tests to move time without sleeping
func WithClock(now func() time.Time) Option {
	return func(f *FixedWindow) {
		f.now = now
	}
}

// WithSweepInterval sets how often closed windows are removed
func WithSweepInterval(interval time.Duration) Option {
	return func(f *FixedWindow) {
		if interval > 0 {
			f.sweepInterval = interval
		}
	}
}

// NewFixedWindow creates an empty limiter. No timer runs until the first key is seen.
func NewFixedWindow(opts ...Option) *FixedWindow {
	f := &FixedWindow{
		entries:       make(map[string]*windowEntry),
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Check counts one request for key. The first request, or the first one at or after
// the previous window's reset, opens a new window [now, now+window).
func (f *FixedWindow) Check(ctx context.Context, key string, window time.Duration, maxRequests int) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	entry, ok := f.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(window)}
		f.entries[key] = entry
		f.scheduleSweep()
	}

	result := Result{
		Limit:   maxRequests,
		ResetAt: entry.resetAt,
	}

	if entry.count >= maxRequests {
		result.RetryAfter = entry.resetAt.Sub(now)
		return result, nil
	}

	entry.count++
	result.Allowed = true
	result.Remaining = remaining(maxRequests, entry.count)
	return result, nil
}

// Len returns the number of tracked keys, including closed windows not yet swept
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Stop cancels the pending sweep. Later Checks still work but never schedule a sweep.
func (f *FixedWindow) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true
	if f.sweepTimer != nil {
		f.sweepTimer.Stop()
		f.sweepTimer = nil
	}
}

// scheduleSweep arms the sweep timer if none is pending. Caller holds f.mu.
func (f *FixedWindow) scheduleSweep() {
	if f.sweepTimer != nil || f.stopped {
		return
	}
	f.sweepTimer = time.AfterFunc(f.sweepInterval, f.sweep)
}

// sweep removes closed windows and re-arms itself only while keys remain
func (f *FixedWindow) sweep() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sweepTimer != nil {
		f.sweepTimer.Stop()
		f.sweepTimer = nil
	}
	now := f.now()
	for key, entry := range f.entries {
		if !now.Before(entry.resetAt) {
			delete(f.entries, key)
		}
	}

	if len(f.entries) > 0 {
		f.scheduleSweep()
	}
}

var _ Checker = (*FixedWindow)(nil)
