package auth

import (
	"context"
	"time"

	"clinic-console/internal/circuitbreaker"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/storage"
)

const (
	// MaxLoginFailures within LoginFailureWindow locks an identifier
	MaxLoginFailures   = 5
	LoginFailureWindow = 15 * time.Minute
)

// LoginDecision is the outcome of LoginGuard.CheckAllowed
type LoginDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LoginGuard throttles password guessing per identifier using the login
// attempt log. It fails open when the log cannot be read.
type LoginGuard struct {
	store   storage.LoginAttemptStore
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
	now     func() time.Time
}

func NewLoginGuard(store storage.LoginAttemptStore, breaker *circuitbreaker.Breaker) *LoginGuard {
	logger := logging.Component("login_guard")
	if breaker == nil {
		breaker = circuitbreaker.New("login_attempts", circuitbreaker.StoreConfig, logger)
	}
	return &LoginGuard{
		store:   store,
		breaker: breaker,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckAllowed locks the identifier while MaxLoginFailures or more failures
// fall inside the window. RetryAfter is when the oldest of them leaves it.
func (g *LoginGuard) CheckAllowed(ctx context.Context, identifier string) LoginDecision {
	now := g.now()

	var failures []time.Time
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		failures, err = g.store.ListFailedLoginAttempts(ctx, identifier, now.Add(-LoginFailureWindow))
		return err
	})
	if err != nil {
		g.logger.Error("Login attempt lookup failed, allowing attempt", err,
			logging.String("identifier", identifier))
		return LoginDecision{Allowed: true}
	}

	if len(failures) < MaxLoginFailures {
		return LoginDecision{Allowed: true}
	}

	retryAfter := failures[0].Add(LoginFailureWindow).Sub(now)
	if retryAfter <= 0 {
		return LoginDecision{Allowed: true}
	}
	return LoginDecision{Allowed: false, RetryAfter: retryAfter}
}

// RecordAttempt logs the attempt. A success clears earlier failures.
func (g *LoginGuard) RecordAttempt(ctx context.Context, identifier string, success bool) {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := g.store.RecordLoginAttempt(ctx, &storage.LoginAttempt{
			Identifier:  identifier,
			Success:     success,
			AttemptedAt: g.now(),
		}); err != nil {
			return err
		}
		if success {
			return g.store.ClearLoginFailures(ctx, identifier)
		}
		return nil
	})
	if err != nil {
		g.logger.Error("Failed to record login attempt", err,
			logging.String("identifier", identifier),
			logging.Bool("success", success))
	}
}
