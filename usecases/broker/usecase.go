package broker

import (
	"context"
	"fmt"
	"log"

	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/metrics"
	"github.com/dcbradley/netblast/models"
	"github.com/dcbradley/netblast/services"
	"github.com/dcbradley/netblast/services/liveness"
)

// DefaultServerCommand is the program workers are told to run
const DefaultServerCommand = "iperf"

// BrokerUseCase pairs polling workers into iperf client/server roles
type BrokerUseCase struct {
	workersService     services.WorkersService
	connectionsService services.ConnectionsService
	flowsService       services.FlowsService
	txManager          services.TransactionManager
	liveness           *liveness.Policy
	serverCommand      string
	now                core.Clock
}

func NewBrokerUseCase(
	workersService services.WorkersService,
	connectionsService services.ConnectionsService,
	flowsService services.FlowsService,
	txManager services.TransactionManager,
	policy *liveness.Policy,
	serverCommand string,
	now core.Clock,
) *BrokerUseCase {
	if serverCommand == "" {
		serverCommand = DefaultServerCommand
	}
	return &BrokerUseCase{
		workersService:     workersService,
		connectionsService: connectionsService,
		flowsService:       flowsService,
		txManager:          txManager,
		liveness:           policy,
		serverCommand:      serverCommand,
		now:                now,
	}
}

func (s *BrokerUseCase) Register(
	ctx context.Context,
	registration models.Registration,
) (*models.RegistrationResult, error) {
	return s.workersService.Register(ctx, registration)
}

func (s *BrokerUseCase) GetWork(
	ctx context.Context,
	workerID, credential string,
	mode models.Mode,
) (*models.Assignment, error) {
	log.Printf("📋 Starting to get work for worker %s (mode: %q)", workerID, mode)
	if _, ok := models.ParseMode(string(mode)); !ok {
		return nil, core.NewValidationError("mode", "is not supported")
	}

	var assignment *models.Assignment
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		worker, err := s.authenticateAndTouch(ctx, workerID, credential)
		if err != nil {
			return err
		}

		superseded, err := s.connectionsService.CloseClientConnections(ctx, worker.ID, models.CloseReasonSuperseded)
		if err != nil {
			return err
		}
		if superseded > 0 {
			metrics.ConnectionsClosed.WithLabelValues(string(models.CloseReasonSuperseded)).Add(float64(superseded))
		}

		if mode == models.ModeServer {
			assignment = s.serverAssignment()
			return nil
		}

		maybeAssignment, err := s.claimServer(ctx, worker)
		if err != nil {
			return err
		}
		if found, ok := maybeAssignment.Get(); ok {
			assignment = found
			return nil
		}

		if mode == models.ModeClient {
			assignment = &models.Assignment{Kind: models.AssignmentNone}
			return nil
		}
		assignment = s.serverAssignment()
		return nil
	})
	if err != nil {
		if !core.IsNotFoundError(err) {
			log.Printf("❌ Failed to get work for worker %s: %v", workerID, err)
		}
		return nil, err
	}

	metrics.Assignments.WithLabelValues(string(assignment.Kind)).Inc()
	log.Printf("📋 Completed successfully - worker %s assigned %s", workerID, assignment.Kind)
	return assignment, nil
}

func (s *BrokerUseCase) KeepAlive(ctx context.Context, workerID, credential string) error {
	return s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.authenticateAndTouch(ctx, workerID, credential)
		return err
	})
}

func (s *BrokerUseCase) ReportFlow(
	ctx context.Context,
	workerID, credential string,
	report models.FlowReport,
) (*models.Flow, error) {
	log.Printf("📋 Starting to report flow for worker %s", workerID)

	var flow *models.Flow
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		client, err := s.authenticateAndTouch(ctx, workerID, credential)
		if err != nil {
			return err
		}

		maybeConn, err := s.connectionsService.GetOpenConnectionByClientID(ctx, client.ID)
		if err != nil {
			return err
		}
		conn, ok := maybeConn.Get()
		if !ok {
			return core.ErrNoOpenConnection
		}

		maybeServer, err := s.workersService.GetWorkerByID(ctx, conn.ServerID)
		if err != nil {
			return err
		}
		server, ok := maybeServer.Get()
		if !ok {
			return fmt.Errorf("server %s of connection %s is missing", conn.ServerID, conn.ID)
		}

		flow, err = s.flowsService.RecordFlow(ctx, conn, client, server, report)
		if err != nil {
			return err
		}

		if _, err := s.connectionsService.CloseConnection(ctx, server.ID, client.ID, models.CloseReasonCompleted); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.FlowBytes.Add(float64(flow.Bytes))
	metrics.ConnectionsClosed.WithLabelValues(string(models.CloseReasonCompleted)).Inc()
	log.Printf("📋 Completed successfully - stored flow %s for worker %s", flow.ID, workerID)
	return flow, nil
}

// Close deregisters the worker and releases every pairing it is part of
func (s *BrokerUseCase) Close(ctx context.Context, workerID, credential string) error {
	log.Printf("📋 Starting to close worker %s", workerID)

	var released int64
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		worker, err := s.workersService.Authenticate(ctx, workerID, credential)
		if err != nil {
			return err
		}
		if _, err := s.workersService.Close(ctx, worker.ID); err != nil {
			return err
		}

		released, err = s.connectionsService.CloseWorkerConnections(ctx, worker.ID, models.CloseReasonWorkerClosed)
		return err
	})
	if err != nil {
		return err
	}

	if released > 0 {
		metrics.ConnectionsClosed.WithLabelValues(string(models.CloseReasonWorkerClosed)).Add(float64(released))
	}
	log.Printf("📋 Completed successfully - closed worker %s, released %d connection(s)", workerID, released)
	return nil
}

func (s *BrokerUseCase) authenticateAndTouch(ctx context.Context, workerID, credential string) (*models.Worker, error) {
	worker, err := s.workersService.Authenticate(ctx, workerID, credential)
	if err != nil {
		return nil, err
	}
	if err := s.workersService.Touch(ctx, worker.ID); err != nil {
		return nil, err
	}
	return worker, nil
}

func (s *BrokerUseCase) serverAssignment() *models.Assignment {
	return &models.Assignment{
		Kind:    models.AssignmentServer,
		Command: s.serverCommand,
		Args:    []string{"-s"},
	}
}
