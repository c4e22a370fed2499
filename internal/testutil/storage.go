// Package testutil holds fixtures shared by package tests: an in-memory SQL
// store, a miniredis-backed client, seeded users and patients, and mocks.
package testutil

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"clinic-console/internal/storage"
	"clinic-console/internal/storage/sqldb"
	"clinic-console/internal/storage/sqlite"
)

// DefaultPassword is the password of every fixture user
const DefaultPassword = "correct-horse-battery"

// NewSQLiteStorage opens an in-memory database with the schema applied. It is
// closed when the test ends.
func NewSQLiteStorage(t testing.TB) *sqldb.Adapter {
	t.Helper()
	store, err := sqlite.Open(&sqlite.Config{DatabasePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// NewRedis starts a miniredis server and returns it with a connected client
func NewRedis(t testing.TB) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

// CreateUser stores an active user with DefaultPassword in clinic c1
func CreateUser(t testing.TB, store storage.UserStore, username, role string) *storage.User {
	t.Helper()
	user := &storage.User{
		Username: username,
		Email:    username + "@clinic.test",
		Name:     username,
		Role:     role,
		ClinicID: "c1",
		Active:   true,
	}
	require.NoError(t, store.CreateUser(context.Background(), user, DefaultPassword))
	return user
}

// CreatePatient stores a patient; phone should be digits only, as lookups use
// the normalized caller number
func CreatePatient(t testing.TB, store storage.PatientStore, name, phone string) *storage.Patient {
	t.Helper()
	patient := &storage.Patient{ClinicID: "c1", Name: name, Phone: phone}
	require.NoError(t, store.CreatePatient(context.Background(), patient))
	return patient
}
