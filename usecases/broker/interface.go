package broker

import (
	"context"

	"github.com/dcbradley/netblast/models"
)

// BrokerUseCaseInterface is everything the HTTP layer asks of the broker
type BrokerUseCaseInterface interface {
	Register(ctx context.Context, registration models.Registration) (*models.RegistrationResult, error)

	// GetWork authenticates the worker and hands it a role. A nil error with
	// AssignmentNone means client mode was requested and every server is busy.
	GetWork(ctx context.Context, workerID, credential string, mode models.Mode) (*models.Assignment, error)

	KeepAlive(ctx context.Context, workerID, credential string) error

	// ReportFlow records a finished run and releases the client's connection
	ReportFlow(ctx context.Context, workerID, credential string, report models.FlowReport) (*models.Flow, error)

	Close(ctx context.Context, workerID, credential string) error

	ReapStaleConnections(ctx context.Context) error
}
