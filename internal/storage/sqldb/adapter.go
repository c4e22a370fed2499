// Package sqldb implements storage.Storage on database/sql for SQLite and PostgreSQL.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-console/internal/storage"
)

// Dialect captures the differences between the supported databases
type Dialect int

const (
	// DialectSQLite uses ? placeholders
	DialectSQLite Dialect = iota
	// DialectPostgres uses $n placeholders
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Adapter is the shared SQL implementation of storage.Storage
type Adapter struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps an open database, applies the schema and returns the adapter
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Adapter, error) {
	a := &Adapter{
		db:      db,
		dialect: dialect,
		now:     time.Now,
	}

	if err := a.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return a, nil
}

// DB returns the underlying handle
func (a *Adapter) DB() *sql.DB {
	return a.db
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL. Queries in this package
// never contain a literal question mark.
func (a *Adapter) rebind(query string) string {
	if a.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (a *Adapter) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return a.db.ExecContext(ctx, a.rebind(query), args...)
}

func (a *Adapter) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return a.db.QueryRowContext(ctx, a.rebind(query), args...)
}

func (a *Adapter) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return a.db.QueryContext(ctx, a.rebind(query), args...)
}

// notFound maps sql.ErrNoRows to storage.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ storage.Storage = (*Adapter)(nil)
