// Package locks provides the mutual exclusion used by scheduled jobs. With
// Redis configured, locks are Redlock mutexes from go-redsync/redsync/v4 so a
// job runs on one instance at a time; without Redis a process-local lock is used.
package locks

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"clinic-console/internal/common/errors"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// ErrNotAcquired is returned when another holder has the lock
var ErrNotAcquired = stderrors.New("lock held elsewhere")

// Locker runs fn while holding key. When the lock is taken it returns
// ErrNotAcquired without calling fn.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// RedsyncLocker is a Locker shared by every instance pointing at the same Redis
type RedsyncLocker struct {
	rs     *redsync.Redsync
	prefix string
}

func NewRedsyncLocker(client *redis.Client) (*RedsyncLocker, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	return &RedsyncLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: "lock:",
	}, nil
}

func (l *RedsyncLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(l.prefix+key, redsync.WithExpiry(ttl), redsync.WithTries(1))

	if err := mutex.TryLockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Taken and unreachable quorum look the same to a single-try caller
		return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go l.extend(runCtx, mutex, ttl, cancel, done)

	err := fn(runCtx)

	cancel()
	<-done

	unlockCtx, unlockCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer unlockCancel()
	mutex.UnlockContext(unlockCtx)

	return err
}

// extend keeps the lock alive at a third of its expiry. Losing the lock
// cancels the job's context.
func (l *RedsyncLocker) extend(ctx context.Context, mutex *redsync.Mutex, ttl time.Duration, lost context.CancelFunc, done chan<- struct{}) {
	defer close(done)

	interval := ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			ok, err := mutex.ExtendContext(extendCtx)
			cancel()
			if err != nil || !ok {
				lost()
				return
			}
		}
	}
}

// LocalLocker serializes holders within one process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return ErrNotAcquired
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return fn(ctx)
}
