package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

type Storage interface {
	// Connection management
	Close() error
	Health(ctx context.Context) error

	UserStore
	RefreshTokenStore
	LoginAttemptStore
	PatientStore
	CallLogStore
}

type UserStore interface {
	// CreateUser hashes password with bcrypt and stores the user
	CreateUser(ctx context.Context, user *User, password string) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	SetUserActive(ctx context.Context, id string, active bool) error
	CountUsers(ctx context.Context) (int, error)
}

// RefreshTokenStore persists refresh tokens by the SHA-256 hash of the token string
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, token *RefreshToken) error
	// GetRefreshToken returns the record without modifying it
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// ConsumeRefreshToken deletes and returns the record in one step. Of several
	// concurrent calls for the same hash at most one gets the record.
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// DeleteRefreshToken is a no-op when the hash is unknown
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type LoginAttemptStore interface {
	RecordLoginAttempt(ctx context.Context, attempt *LoginAttempt) error
	// ListFailedLoginAttempts returns failure times at or after since, oldest first
	ListFailedLoginAttempts(ctx context.Context, identifier string, since time.Time) ([]time.Time, error)
	ClearLoginFailures(ctx context.Context, identifier string) error
	DeleteLoginAttemptsBefore(ctx context.Context, before time.Time) (int64, error)
}

type PatientStore interface {
	// FindPatientByPhone matches on the digits-only phone number
	FindPatientByPhone(ctx context.Context, phone string) (*Patient, error)
	CreatePatient(ctx context.Context, patient *Patient) error
}

type CallLogStore interface {
	SaveCallLog(ctx context.Context, log *CallLog) error
	ListRecentCallLogs(ctx context.Context, limit int) ([]*CallLog, error)
}

type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
	GetType() string
}
