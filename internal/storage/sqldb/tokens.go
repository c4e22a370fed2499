package sqldb

import (
	"context"
	"fmt"
	"time"

	"clinic-console/internal/storage"
)

// Refresh token operations

func (a *Adapter) CreateRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = a.now()
	}
	_, err := a.exec(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, clinic_id, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		token.TokenHash, token.UserID, token.ClinicID, toMillis(token.ExpiresAt), toMillis(token.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (a *Adapter) GetRefreshToken(ctx context.Context, tokenHash string) (*storage.RefreshToken, error) {
	row := a.queryRow(ctx,
		`SELECT token_hash, user_id, clinic_id, expires_at, created_at FROM refresh_tokens WHERE token_hash = ?`,
		tokenHash)
	return scanToken(row)
}

// ConsumeRefreshToken relies on DELETE ... RETURNING so the row is claimed by a
// single statement.
func (a *Adapter) ConsumeRefreshToken(ctx context.Context, tokenHash string) (*storage.RefreshToken, error) {
	row := a.queryRow(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = ? RETURNING token_hash, user_id, clinic_id, expires_at, created_at`,
		tokenHash)
	return scanToken(row)
}

func (a *Adapter) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := a.exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = ?`, tokenHash)
	return err
}

func (a *Adapter) DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	res, err := a.exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (a *Adapter) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanToken(row scanner) (*storage.RefreshToken, error) {
	var (
		t                storage.RefreshToken
		expires, created int64
	)
	if err := row.Scan(&t.TokenHash, &t.UserID, &t.ClinicID, &expires, &created); err != nil {
		return nil, notFound(err)
	}
	t.ExpiresAt = fromMillis(expires)
	t.CreatedAt = fromMillis(created)
	return &t, nil
}
