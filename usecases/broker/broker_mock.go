package broker

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dcbradley/netblast/models"
)

// MockBrokerUseCase is a mock implementation of BrokerUseCaseInterface
type MockBrokerUseCase struct {
	mock.Mock
}

func (m *MockBrokerUseCase) Register(
	ctx context.Context,
	registration models.Registration,
) (*models.RegistrationResult, error) {
	args := m.Called(ctx, registration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegistrationResult), args.Error(1)
}

func (m *MockBrokerUseCase) GetWork(
	ctx context.Context,
	workerID, credential string,
	mode models.Mode,
) (*models.Assignment, error) {
	args := m.Called(ctx, workerID, credential, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assignment), args.Error(1)
}

func (m *MockBrokerUseCase) KeepAlive(ctx context.Context, workerID, credential string) error {
	args := m.Called(ctx, workerID, credential)
	return args.Error(0)
}

func (m *MockBrokerUseCase) ReportFlow(
	ctx context.Context,
	workerID, credential string,
	report models.FlowReport,
) (*models.Flow, error) {
	args := m.Called(ctx, workerID, credential, report)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flow), args.Error(1)
}

func (m *MockBrokerUseCase) Close(ctx context.Context, workerID, credential string) error {
	args := m.Called(ctx, workerID, credential)
	return args.Error(0)
}

func (m *MockBrokerUseCase) ReapStaleConnections(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
