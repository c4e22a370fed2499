// Package sqlite registers the SQLite storage backend (mattn/go-sqlite3).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"clinic-console/internal/storage"
	"clinic-console/internal/storage/sqldb"

	_ "github.com/mattn/go-sqlite3"
)

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	switch c := config.(type) {
	case *Config:
		return Open(c)
	case storage.GenericConfig:
		return Open(&Config{DatabasePath: c["path"]})
	default:
		return nil, fmt.Errorf("invalid config type for SQLite storage")
	}
}

func (f *Factory) GetType() string {
	return "sqlite"
}

// Open connects to the database file and applies the schema
func Open(config *Config) (*sqldb.Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is a separate database
	if strings.Contains(config.DatabasePath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter, err := sqldb.New(ctx, db, sqldb.DialectSQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return adapter, nil
}

func init() {
	storage.Register(&Factory{})
}
