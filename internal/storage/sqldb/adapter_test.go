package sqldb_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"clinic-console/internal/storage"
	"clinic-console/internal/storage/sqldb"
	"clinic-console/internal/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAdapter(t *testing.T) *sqldb.Adapter {
	t.Helper()
	adapter, err := sqlite.Open(&sqlite.Config{DatabasePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func createUser(t *testing.T, a *sqldb.Adapter, username string) *storage.User {
	t.Helper()
	user := &storage.User{
		Username: username,
		Email:    username + "@clinic.test",
		Name:     "Test " + username,
		Role:     storage.RoleStaff,
		ClinicID: "clinic-1",
		Active:   true,
	}
	require.NoError(t, a.CreateUser(context.Background(), user, "s3cret-pass"))
	return user
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	user := createUser(t, a, "alice")
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))

	byName, err := a.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
	assert.Equal(t, "clinic-1", byName.ClinicID)
	assert.True(t, byName.Active)

	require.NoError(t, a.SetUserActive(ctx, user.ID, false))
	byID, err := a.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, byID.Active)

	_, err = a.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, a.SetUserActive(ctx, "missing", true), storage.ErrNotFound)

	n, err := a.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dup := &storage.User{Username: "alice", Role: storage.RoleStaff, ClinicID: "clinic-1"}
	assert.Error(t, a.CreateUser(ctx, dup, "another"))
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	now := time.Now()

	token := &storage.RefreshToken{
		TokenHash: "hash-1",
		UserID:    "user-1",
		ClinicID:  "clinic-1",
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, a.CreateRefreshToken(ctx, token))

	got, err := a.GetRefreshToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, token.ExpiresAt.UnixMilli(), got.ExpiresAt.UnixMilli())

	// Reading does not consume
	_, err = a.GetRefreshToken(ctx, "hash-1")
	require.NoError(t, err)

	consumed, err := a.ConsumeRefreshToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "clinic-1", consumed.ClinicID)

	_, err = a.ConsumeRefreshToken(ctx, "hash-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = a.GetRefreshToken(ctx, "hash-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, a.DeleteRefreshToken(ctx, "never-existed"))
}

func TestConsumeRefreshToken_SingleWinner(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	require.NoError(t, a.CreateRefreshToken(ctx, &storage.RefreshToken{
		TokenHash: "contended",
		UserID:    "user-1",
		ClinicID:  "clinic-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.ConsumeRefreshToken(ctx, "contended"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestDeleteUserAndExpiredRefreshTokens(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	now := time.Now()

	tokens := []*storage.RefreshToken{
		{TokenHash: "a1", UserID: "a", ClinicID: "c", ExpiresAt: now.Add(time.Hour)},
		{TokenHash: "a2", UserID: "a", ClinicID: "c", ExpiresAt: now.Add(-time.Minute)},
		{TokenHash: "b1", UserID: "b", ClinicID: "c", ExpiresAt: now.Add(-time.Minute)},
		{TokenHash: "b2", UserID: "b", ClinicID: "c", ExpiresAt: now.Add(time.Hour)},
	}
	for _, tok := range tokens {
		require.NoError(t, a.CreateRefreshToken(ctx, tok))
	}

	n, err := a.DeleteUserRefreshTokens(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = a.DeleteExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = a.GetRefreshToken(ctx, "b2")
	assert.NoError(t, err)
}

func TestLoginAttempts(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	base := time.Now().Add(-30 * time.Minute)

	for i := 0; i < 4; i++ {
		require.NoError(t, a.RecordLoginAttempt(ctx, &storage.LoginAttempt{
			Identifier:  "bob",
			AttemptedAt: base.Add(time.Duration(i) * 10 * time.Minute),
		}))
	}
	require.NoError(t, a.RecordLoginAttempt(ctx, &storage.LoginAttempt{
		Identifier:  "bob",
		Success:     true,
		AttemptedAt: base.Add(5 * time.Minute),
	}))

	since := base.Add(15 * time.Minute)
	failures, err := a.ListFailedLoginAttempts(ctx, "bob", since)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.True(t, failures[0].Before(failures[1]))
	assert.Equal(t, base.Add(20*time.Minute).UnixMilli(), failures[0].UnixMilli())

	require.NoError(t, a.ClearLoginFailures(ctx, "bob"))
	failures, err = a.ListFailedLoginAttempts(ctx, "bob", base)
	require.NoError(t, err)
	assert.Empty(t, failures)

	n, err := a.DeleteLoginAttemptsBefore(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPatientsAndCallLogs(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	_, err := a.FindPatientByPhone(ctx, "01012345678")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	patient := &storage.Patient{ClinicID: "clinic-1", Name: "Kim", Phone: "01012345678"}
	require.NoError(t, a.CreatePatient(ctx, patient))
	assert.NotEmpty(t, patient.ID)

	found, err := a.FindPatientByPhone(ctx, "01012345678")
	require.NoError(t, err)
	assert.Equal(t, patient.ID, found.ID)
	assert.Equal(t, "Kim", found.Name)

	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, a.SaveCallLog(ctx, &storage.CallLog{
			EventType:    "INCOMING_CALL",
			CallerNumber: "01012345678",
			PatientID:    patient.ID,
			OccurredAt:   now,
			ReceivedAt:   now.Add(time.Duration(i) * time.Second),
		}))
	}

	logs, err := a.ListRecentCallLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].ReceivedAt.After(logs[1].ReceivedAt))
	assert.Equal(t, patient.ID, logs[0].PatientID)
}

func TestHealth(t *testing.T) {
	a := newTestAdapter(t)
	assert.NoError(t, a.Health(context.Background()))
}
