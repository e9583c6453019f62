package services

import (
	"context"
	"time"

	"github.com/samber/mo"

	"github.com/dcbradley/netblast/models"
)

// WorkersService defines the worker directory: registration, authentication and contact tracking
type WorkersService interface {
	Register(ctx context.Context, registration models.Registration) (*models.RegistrationResult, error)
	Authenticate(ctx context.Context, workerID, credential string) (*models.Worker, error)
	GetWorkerByID(ctx context.Context, workerID string) (mo.Option[*models.Worker], error)
	Touch(ctx context.Context, workerID string) error
	Close(ctx context.Context, workerID string) (bool, error)
	GetServerCandidates(ctx context.Context, excludeWorkerID string) ([]*models.Worker, error)
}

// ConnectionsService defines the connection ledger that keeps a server paired with at most one client
type ConnectionsService interface {
	HasPendingConnection(ctx context.Context, workerID string) (bool, error)
	OpenConnection(ctx context.Context, serverID, clientID string) (mo.Option[*models.Connection], error)
	GetOpenConnectionByClientID(ctx context.Context, clientID string) (mo.Option[*models.Connection], error)
	CloseConnection(ctx context.Context, serverID, clientID string, reason models.CloseReason) (bool, error)
	CloseClientConnections(ctx context.Context, clientID string, reason models.CloseReason) (int64, error)
	CloseWorkerConnections(ctx context.Context, workerID string, reason models.CloseReason) (int64, error)
	ReapStaleConnections(ctx context.Context) (int64, error)
}

// FlowsService defines storage and lookup of reported throughput runs
type FlowsService interface {
	RecordFlow(
		ctx context.Context,
		connection *models.Connection,
		client, server *models.Worker,
		report models.FlowReport,
	) (*models.Flow, error)
	GetFlowsStartedBetween(ctx context.Context, from, to time.Time) ([]*models.Flow, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
