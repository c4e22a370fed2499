// Package auth issues and verifies credentials for the console API.
//
// Access tokens are HS256 JWTs that expire 15 minutes after issuance. Refresh
// tokens are opaque random strings persisted (as a SHA-256 hash) for 7 days and
// rotated on every use: a refresh token is consumed before the new pair is
// issued, so it can be exchanged at most once.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"time"

	"clinic-console/internal/common/errors"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/common/utils"
	"clinic-console/internal/config"
	"clinic-console/internal/metrics"
	"clinic-console/internal/storage"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// refreshTokenBytes of entropy back every refresh token
	refreshTokenBytes = 48

	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidRefreshToken is the only outcome callers see for an unknown,
	// expired, consumed or revoked refresh token
	ErrInvalidRefreshToken = errors.AuthError("invalid or expired refresh token")

	ErrInvalidAccessToken = errors.AuthError("invalid or expired access token")
)

// AccessPayload is the user data embedded in an access token
type AccessPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	ClinicID string `json:"clinicId"`
}

// PayloadFor builds the access token payload for a stored user
func PayloadFor(u *storage.User) AccessPayload {
	return AccessPayload{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		ClinicID: u.ClinicID,
	}
}

// Claims is the decoded form of an access token. The user id is
// Claims.AccessPayload.ID; Claims.RegisteredClaims.ID is the unused jti.
type Claims struct {
	AccessPayload
	jwt.RegisteredClaims
}

// RefreshSubject is what a valid refresh token is bound to
type RefreshSubject struct {
	UserID   string `json:"userId"`
	ClinicID string `json:"clinicId"`
}

// TokenPair is returned by login and refresh
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int `json:"expiresIn"`
}

type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	tokens     storage.RefreshTokenStore
	users      storage.UserStore
	metrics    *metrics.Metrics
	logger     logging.Logger
	now        func() time.Time
}

type Option func(*TokenService)

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *TokenService) { s.metrics = m }
}

func NewTokenService(secret string, tokens storage.RefreshTokenStore, users storage.UserStore, opts ...Option) *TokenService {
	s := &TokenService{
		secret:     []byte(secret),
		accessTTL:  config.AccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		tokens:     tokens,
		users:      users,
		logger:     logging.Component("auth"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessTTL is the fixed access token lifetime
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// GenerateAccessToken signs payload with iat set to now and exp exactly
// accessTTL later
func (s *TokenService) GenerateAccessToken(payload AccessPayload) (string, error) {
	issued := s.now().Truncate(time.Second)
	claims := Claims{
		AccessPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign access token", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature and expiry. Tokens signed with anything
// other than HMAC are rejected.
func (s *TokenService) ParseAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// HashToken is the storage key of a refresh token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateRefreshToken creates and persists a refresh token bound to the user
// and clinic. Only the hash is stored.
func (s *TokenService) GenerateRefreshToken(ctx context.Context, userID, clinicID string) (string, error) {
	token, err := utils.GenerateRandomToken(refreshTokenBytes)
	if err != nil {
		return "", errors.InternalError("failed to generate refresh token", err)
	}

	now := s.now()
	record := &storage.RefreshToken{
		TokenHash: HashToken(token),
		UserID:    userID,
		ClinicID:  clinicID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return "", errors.TransientError("failed to store refresh token", err)
	}
	return token, nil
}

// ValidateRefreshToken reports who the token belongs to without consuming it
func (s *TokenService) ValidateRefreshToken(ctx context.Context, token string) (*RefreshSubject, error) {
	if token == "" {
		return nil, ErrInvalidRefreshToken
	}

	record, err := s.tokens.GetRefreshToken(ctx, HashToken(token))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, errors.TransientError("failed to look up refresh token", err)
	}
	if record.Expired(s.now()) {
		return nil, ErrInvalidRefreshToken
	}
	return &RefreshSubject{UserID: record.UserID, ClinicID: record.ClinicID}, nil
}

// RevokeRefreshToken deletes the token; unknown tokens are ignored
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.tokens.DeleteRefreshToken(ctx, HashToken(token)); err != nil {
		return errors.TransientError("failed to revoke refresh token", err)
	}
	return nil
}

// RevokeAllUserTokens logs the user out of every session
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) (int64, error) {
	n, err := s.tokens.DeleteUserRefreshTokens(ctx, userID)
	if err != nil {
		return 0, errors.TransientError("failed to revoke user tokens", err)
	}
	s.logger.Info("Revoked all refresh tokens",
		logging.String("user_id", userID),
		logging.Field{Key: "count", Value: n},
	)
	return n, nil
}

// IssuePair creates an access token and a fresh refresh token for user
func (s *TokenService) IssuePair(ctx context.Context, user *storage.User) (*TokenPair, error) {
	access, err := s.GenerateAccessToken(PayloadFor(user))
	if err != nil {
		return nil, err
	}
	refresh, err := s.GenerateRefreshToken(ctx, user.ID, user.ClinicID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL / time.Second),
	}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed first; if anything later fails the caller has to log in again.
func (s *TokenService) Refresh(ctx context.Context, token string) (*TokenPair, *storage.User, error) {
	pair, user, err := s.refresh(ctx, token)
	s.metrics.TokenRefreshed(err == nil)
	return pair, user, err
}

func (s *TokenService) refresh(ctx context.Context, token string) (*TokenPair, *storage.User, error) {
	if token == "" {
		return nil, nil, ErrInvalidRefreshToken
	}

	record, err := s.tokens.ConsumeRefreshToken(ctx, HashToken(token))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrInvalidRefreshToken
		}
		return nil, nil, errors.TransientError("failed to consume refresh token", err)
	}
	if record.Expired(s.now()) {
		return nil, nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrInvalidRefreshToken
		}
		return nil, nil, errors.TransientError("failed to load user", err)
	}
	if !user.Active {
		s.logger.Warn("Refresh attempted for inactive user", logging.String("user_id", user.ID))
		return nil, nil, ErrInvalidRefreshToken
	}

	access, err := s.GenerateAccessToken(PayloadFor(user))
	if err != nil {
		return nil, nil, err
	}
	refresh, err := s.GenerateRefreshToken(ctx, record.UserID, record.ClinicID)
	if err != nil {
		return nil, nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL / time.Second),
	}, user, nil
}

// PurgeExpired physically removes refresh tokens past their expiry
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpiredRefreshTokens(ctx, s.now())
}
