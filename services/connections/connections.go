package connections

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/db"
	"github.com/dcbradley/netblast/models"
	"github.com/dcbradley/netblast/services/liveness"
)

type ConnectionsService struct {
	connectionsRepo *db.SQLConnectionsRepository
	liveness        *liveness.Policy
	now             core.Clock
}

func NewConnectionsService(
	repo *db.SQLConnectionsRepository,
	policy *liveness.Policy,
	now core.Clock,
) *ConnectionsService {
	return &ConnectionsService{connectionsRepo: repo, liveness: policy, now: now}
}

// HasPendingConnection reports whether the worker is the server side of an open connection
func (s *ConnectionsService) HasPendingConnection(ctx context.Context, workerID string) (bool, error) {
	pending, err := s.connectionsRepo.HasOpenConnectionAsServer(ctx, workerID)
	if err != nil {
		return false, fmt.Errorf("failed to check pending connection: %w", err)
	}
	return pending, nil
}

// OpenConnection claims serverID for clientID. None means the claim lost: the server
// already has an open connection, or it stopped being open, server capable or alive.
func (s *ConnectionsService) OpenConnection(
	ctx context.Context,
	serverID, clientID string,
) (mo.Option[*models.Connection], error) {
	log.Printf("📋 Starting to open connection from client %s to server %s", clientID, serverID)
	if serverID == clientID {
		return mo.None[*models.Connection](), core.NewValidationError("server_id", "must differ from client_id")
	}

	now := s.now()
	conn := &models.Connection{
		ID:       core.NewID("cn"),
		ServerID: serverID,
		ClientID: clientID,
		OpenedAt: now,
	}
	claimed, err := s.connectionsRepo.ClaimServer(ctx, conn, s.liveness.Cutoff(now))
	if err != nil {
		return mo.None[*models.Connection](), fmt.Errorf("failed to open connection: %w", err)
	}
	if !claimed {
		log.Printf("📋 Server %s could not be claimed by client %s", serverID, clientID)
		return mo.None[*models.Connection](), nil
	}

	log.Printf("📋 Completed successfully - opened connection %s", conn.ID)
	return mo.Some(conn), nil
}

func (s *ConnectionsService) GetOpenConnectionByClientID(
	ctx context.Context,
	clientID string,
) (mo.Option[*models.Connection], error) {
	maybeConn, err := s.connectionsRepo.GetOpenConnectionByClientID(ctx, clientID)
	if err != nil {
		return mo.None[*models.Connection](), fmt.Errorf("failed to get open connection: %w", err)
	}
	return maybeConn, nil
}

// CloseConnection releases the pairing so the server becomes eligible again.
// Returns false when there was no open connection between the two.
func (s *ConnectionsService) CloseConnection(
	ctx context.Context,
	serverID, clientID string,
	reason models.CloseReason,
) (bool, error) {
	log.Printf("📋 Starting to close connection from client %s to server %s (%s)", clientID, serverID, reason)
	closed, err := s.connectionsRepo.CloseConnection(ctx, serverID, clientID, reason, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to close connection: %w", err)
	}

	log.Printf("📋 Completed successfully - closed connection: %t", closed)
	return closed, nil
}

// CloseClientConnections closes every open connection where the worker is the client
func (s *ConnectionsService) CloseClientConnections(
	ctx context.Context,
	clientID string,
	reason models.CloseReason,
) (int64, error) {
	count, err := s.connectionsRepo.CloseConnectionsByClientID(ctx, clientID, reason, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to close client connections: %w", err)
	}
	if count > 0 {
		log.Printf("📋 Closed %d connection(s) for client %s (%s)", count, clientID, reason)
	}
	return count, nil
}

// CloseWorkerConnections closes every open connection the worker takes part in, either side
func (s *ConnectionsService) CloseWorkerConnections(
	ctx context.Context,
	workerID string,
	reason models.CloseReason,
) (int64, error) {
	count, err := s.connectionsRepo.CloseConnectionsByWorkerID(ctx, workerID, reason, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to close worker connections: %w", err)
	}
	if count > 0 {
		log.Printf("📋 Closed %d connection(s) for worker %s (%s)", count, workerID, reason)
	}
	return count, nil
}

// ReapStaleConnections closes open connections whose client has gone quiet for a full
// liveness window or has been closed
func (s *ConnectionsService) ReapStaleConnections(ctx context.Context) (int64, error) {
	now := s.now()
	count, err := s.connectionsRepo.CloseStaleConnections(ctx, s.liveness.Cutoff(now), now)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale connections: %w", err)
	}
	return count, nil
}
