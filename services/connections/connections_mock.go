package connections

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"github.com/dcbradley/netblast/models"
)

// MockConnectionsService is a mock implementation of the ConnectionsService interface
type MockConnectionsService struct {
	mock.Mock
}

func (m *MockConnectionsService) HasPendingConnection(ctx context.Context, workerID string) (bool, error) {
	args := m.Called(ctx, workerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConnectionsService) OpenConnection(
	ctx context.Context,
	serverID, clientID string,
) (mo.Option[*models.Connection], error) {
	args := m.Called(ctx, serverID, clientID)
	return args.Get(0).(mo.Option[*models.Connection]), args.Error(1)
}

func (m *MockConnectionsService) GetOpenConnectionByClientID(
	ctx context.Context,
	clientID string,
) (mo.Option[*models.Connection], error) {
	args := m.Called(ctx, clientID)
	return args.Get(0).(mo.Option[*models.Connection]), args.Error(1)
}

func (m *MockConnectionsService) CloseConnection(
	ctx context.Context,
	serverID, clientID string,
	reason models.CloseReason,
) (bool, error) {
	args := m.Called(ctx, serverID, clientID, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockConnectionsService) CloseClientConnections(
	ctx context.Context,
	clientID string,
	reason models.CloseReason,
) (int64, error) {
	args := m.Called(ctx, clientID, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConnectionsService) CloseWorkerConnections(
	ctx context.Context,
	workerID string,
	reason models.CloseReason,
) (int64, error) {
	args := m.Called(ctx, workerID, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConnectionsService) ReapStaleConnections(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
