package storage_test

import (
	"testing"

	"clinic-console/internal/common/errors"
	"clinic-console/internal/config"
	"clinic-console/internal/storage"
	"clinic-console/internal/storage/postgres"
	"clinic-console/internal/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredBackends(t *testing.T) {
	assert.Equal(t, []string{"postgres", "sqlite"}, storage.DefaultRegistry.Types())
}

func TestNewStorage_SQLite(t *testing.T) {
	store, err := storage.NewStorage(&config.Config{DatabaseType: "sqlite", DatabasePath: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	n, err := store.CountUsers(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewStorage_UnknownType(t *testing.T) {
	_, err := storage.NewStorage(&config.Config{DatabaseType: "oracle"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	assert.ErrorContains(t, err, "available: postgres, sqlite")
}

func TestRegistry_OpenRequiresRegisteredBackend(t *testing.T) {
	r := storage.NewRegistry()
	_, err := r.Open(storage.GenericConfig{"type": "sqlite", "path": ":memory:"})
	assert.ErrorContains(t, err, `database type "sqlite" has no backend`)
}

func TestRegistry_PostgresqlAlias(t *testing.T) {
	r := storage.NewRegistry()
	r.Register(&postgres.Factory{})

	// the alias resolves to the postgres backend, whose config check then fails
	_, err := r.Open(storage.GenericConfig{"type": "postgresql", "port": "not-a-port"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid PostgreSQL port")
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	r := storage.NewRegistry()
	r.Register(&sqlite.Factory{})
	assert.Panics(t, func() { r.Register(&sqlite.Factory{}) })
}
