// Package jobs runs the periodic maintenance of the console on a cron schedule.
package jobs

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"clinic-console/internal/common/logging"
	"clinic-console/internal/locks"

	"github.com/robfig/cron/v3"
)

const (
	// LoginAttemptRetention is how long login attempts are kept
	LoginAttemptRetention = 24 * time.Hour

	purgeLockKey = "jobs:purge"
	purgeLockTTL = 5 * time.Minute
)

// TokenPurger removes expired refresh tokens (auth.TokenService)
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// AttemptPurger removes old login attempts (storage.LoginAttemptStore)
type AttemptPurger interface {
	DeleteLoginAttemptsBefore(ctx context.Context, before time.Time) (int64, error)
}

// PurgeResult reports what one run removed
type PurgeResult struct {
	Tokens   int64
	Attempts int64
}

// Purge deletes expired refresh tokens and login attempts older than
// LoginAttemptRetention
func Purge(ctx context.Context, tokens TokenPurger, attempts AttemptPurger, now time.Time) (PurgeResult, error) {
	var result PurgeResult

	n, err := tokens.PurgeExpired(ctx)
	if err != nil {
		return result, err
	}
	result.Tokens = n

	n, err = attempts.DeleteLoginAttemptsBefore(ctx, now.Add(-LoginAttemptRetention))
	if err != nil {
		return result, err
	}
	result.Attempts = n

	return result, nil
}

// Scheduler runs Purge on a cron schedule, holding a lock so only one
// instance purges per tick
type Scheduler struct {
	cron     *cron.Cron
	locker   locks.Locker
	tokens   TokenPurger
	attempts AttemptPurger
	logger   logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	lastRun PurgeResult
	runs    int
}

func NewScheduler(locker locks.Locker, tokens TokenPurger, attempts AttemptPurger) *Scheduler {
	if locker == nil {
		locker = locks.NewLocalLocker()
	}
	return &Scheduler{
		cron:     cron.New(),
		locker:   locker,
		tokens:   tokens,
		attempts: attempts,
		logger:   logging.Component("jobs"),
		now:      time.Now,
	}
}

// Start registers the purge job with a standard 5-field cron spec and starts
// the scheduler
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Purge job scheduled", logging.String("schedule", spec))
	return nil
}

// Stop waits for a running job to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce purges under the lock. It returns false when another holder had it.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	err := s.locker.WithLock(ctx, purgeLockKey, purgeLockTTL, func(ctx context.Context) error {
		result, err := Purge(ctx, s.tokens, s.attempts, s.now())
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.lastRun = result
		s.runs++
		s.mu.Unlock()

		s.logger.Info("Purge completed",
			logging.Field{Key: "tokens_removed", Value: result.Tokens},
			logging.Field{Key: "attempts_removed", Value: result.Attempts},
		)
		return nil
	})

	switch {
	case err == nil:
		return true
	case stderrors.Is(err, locks.ErrNotAcquired):
		s.logger.Debug("Purge skipped, lock held by another instance")
	default:
		s.logger.Error("Purge failed", err)
	}
	return false
}

// Stats returns the number of completed runs and the last result
func (s *Scheduler) Stats() (int, PurgeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastRun
}
