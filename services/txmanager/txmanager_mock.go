package txmanager

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTransactionManager runs fn inline unless the expectation returns an error,
// which simulates a failure to begin the transaction
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}
