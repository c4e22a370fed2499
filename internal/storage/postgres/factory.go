// Package postgres registers the PostgreSQL storage backend, driven by pgx
// through its database/sql adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinic-console/internal/storage"
	"clinic-console/internal/storage/sqldb"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	switch c := config.(type) {
	case *Config:
		return Open(c)
	case storage.GenericConfig:
		pgConfig, err := fromGeneric(c)
		if err != nil {
			return nil, err
		}
		return Open(pgConfig)
	default:
		return nil, fmt.Errorf("invalid config type for PostgreSQL storage")
	}
}

func (f *Factory) GetType() string {
	return "postgres"
}

// Open connects with pgx, configures the pool and applies the schema
func Open(config *Config) (*sqldb.Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	db, err := sql.Open("pgx", config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter, err := sqldb.New(ctx, db, sqldb.DialectPostgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	return adapter, nil
}

func init() {
	storage.Register(&Factory{})
}
