package workers

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"github.com/dcbradley/netblast/models"
)

// MockWorkersService is a mock implementation of the WorkersService interface
type MockWorkersService struct {
	mock.Mock
}

func (m *MockWorkersService) Register(
	ctx context.Context,
	registration models.Registration,
) (*models.RegistrationResult, error) {
	args := m.Called(ctx, registration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegistrationResult), args.Error(1)
}

func (m *MockWorkersService) Authenticate(ctx context.Context, workerID, credential string) (*models.Worker, error) {
	args := m.Called(ctx, workerID, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Worker), args.Error(1)
}

func (m *MockWorkersService) GetWorkerByID(ctx context.Context, workerID string) (mo.Option[*models.Worker], error) {
	args := m.Called(ctx, workerID)
	return args.Get(0).(mo.Option[*models.Worker]), args.Error(1)
}

func (m *MockWorkersService) Touch(ctx context.Context, workerID string) error {
	args := m.Called(ctx, workerID)
	return args.Error(0)
}

func (m *MockWorkersService) Close(ctx context.Context, workerID string) (bool, error) {
	args := m.Called(ctx, workerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWorkersService) GetServerCandidates(ctx context.Context, excludeWorkerID string) ([]*models.Worker, error) {
	args := m.Called(ctx, excludeWorkerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Worker), args.Error(1)
}
