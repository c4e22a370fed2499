package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clinic-console/internal/storage"
)

// MockCallLogStore wraps a real Storage and replaces SaveCallLog with a mock,
// so tests can inject write failures while everything else hits the database
type MockCallLogStore struct {
	storage.Storage
	mock.Mock
}

func NewMockCallLogStore(base storage.Storage) *MockCallLogStore {
	return &MockCallLogStore{Storage: base}
}

func (m *MockCallLogStore) SaveCallLog(ctx context.Context, log *storage.CallLog) error {
	args := m.Called(log)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.Storage.SaveCallLog(ctx, log)
}
