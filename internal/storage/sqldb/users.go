package sqldb

import (
	"context"
	"fmt"

	"clinic-console/internal/storage"

	"github.com/lucsky/cuid"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, username, email, name, role, clinic_id, password_hash, active, created_at, updated_at`

// User operations

func (a *Adapter) CreateUser(ctx context.Context, user *storage.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if user.ID == "" {
		user.ID = cuid.New()
	}
	now := a.now()
	user.PasswordHash = string(hash)
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = a.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.Name, user.Role, user.ClinicID,
		user.PasswordHash, boolToInt(user.Active), toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (a *Adapter) GetUserByID(ctx context.Context, id string) (*storage.User, error) {
	row := a.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (a *Adapter) GetUserByUsername(ctx context.Context, username string) (*storage.User, error) {
	row := a.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (a *Adapter) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := a.exec(ctx, `UPDATE users SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), toMillis(a.now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (a *Adapter) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := a.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanUser(row scanner) (*storage.User, error) {
	var (
		u                storage.User
		active           int
		created, updated int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.Role, &u.ClinicID,
		&u.PasswordHash, &active, &created, &updated)
	if err != nil {
		return nil, notFound(err)
	}
	u.Active = active != 0
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}
