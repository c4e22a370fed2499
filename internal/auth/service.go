package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"clinic-console/internal/common/errors"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.AuthError("invalid username or password")

// LockedError is returned by Login while the login guard refuses attempts
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed login attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// Service combines the token service with the user store and login guard
type Service struct {
	tokens *TokenService
	users  storage.UserStore
	guard  *LoginGuard
	logger logging.Logger
}

func NewService(tokens *TokenService, users storage.UserStore, guard *LoginGuard) *Service {
	return &Service{
		tokens: tokens,
		users:  users,
		guard:  guard,
		logger: logging.Component("auth"),
	}
}

func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Login checks the guard, verifies the password and issues a token pair.
// Unknown users, wrong passwords and inactive accounts are indistinguishable.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, *storage.User, error) {
	if decision := s.guard.CheckAllowed(ctx, username); !decision.Allowed {
		return nil, nil, &LockedError{RetryAfter: decision.RetryAfter}
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return nil, nil, errors.TransientError("failed to load user", err)
	}

	if user == nil || !user.Active ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.guard.RecordAttempt(ctx, username, false)
		s.logger.WithContext(ctx).Warn("Login failed", logging.String("username", username))
		return nil, nil, ErrInvalidCredentials
	}

	s.guard.RecordAttempt(ctx, username, true)

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.WithContext(ctx).Info("User logged in",
		logging.String("user_id", user.ID),
		logging.String("clinic_id", user.ClinicID))
	return pair, user, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, *storage.User, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}

func (s *Service) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return s.tokens.RevokeAllUserTokens(ctx, userID)
}

// EnsureAdmin creates the bootstrap master account when the user table is
// empty. It is a no-op otherwise.
func (s *Service) EnsureAdmin(ctx context.Context, username, password, clinicID string) (bool, error) {
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if username == "" || password == "" {
		return false, errors.ConfigError("no users exist and ADMIN_USERNAME/ADMIN_PASSWORD are not set")
	}

	admin := &storage.User{
		Username: username,
		Name:     "Administrator",
		Role:     storage.RoleMaster,
		ClinicID: clinicID,
		Active:   true,
	}
	if err := s.users.CreateUser(ctx, admin, password); err != nil {
		return false, err
	}
	s.logger.Info("Created bootstrap admin user", logging.String("username", username))
	return true, nil
}
