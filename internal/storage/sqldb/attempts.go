package sqldb

import (
	"context"
	"time"

	"clinic-console/internal/storage"
)

// Login attempt operations

func (a *Adapter) RecordLoginAttempt(ctx context.Context, attempt *storage.LoginAttempt) error {
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = a.now()
	}
	_, err := a.exec(ctx,
		`INSERT INTO login_attempts (identifier, success, attempted_at) VALUES (?, ?, ?)`,
		attempt.Identifier, boolToInt(attempt.Success), toMillis(attempt.AttemptedAt))
	return err
}

func (a *Adapter) ListFailedLoginAttempts(ctx context.Context, identifier string, since time.Time) ([]time.Time, error) {
	rows, err := a.query(ctx,
		`SELECT attempted_at FROM login_attempts WHERE identifier = ? AND success = 0 AND attempted_at >= ? ORDER BY attempted_at ASC`,
		identifier, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, err
		}
		times = append(times, fromMillis(ms))
	}
	return times, rows.Err()
}

func (a *Adapter) ClearLoginFailures(ctx context.Context, identifier string) error {
	_, err := a.exec(ctx, `DELETE FROM login_attempts WHERE identifier = ? AND success = 0`, identifier)
	return err
}

func (a *Adapter) DeleteLoginAttemptsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := a.exec(ctx, `DELETE FROM login_attempts WHERE attempted_at < ?`, toMillis(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
