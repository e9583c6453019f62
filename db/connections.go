package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	dbtx "github.com/dcbradley/netblast/db/tx"
	"github.com/dcbradley/netblast/models"
)

type SQLConnectionsRepository struct {
	db     *sqlx.DB
	schema string
}

var connectionsColumns = []string{
	"id",
	"server_id",
	"client_id",
	"state",
	"opened_at",
	"closed_at",
	"close_reason",
}

func NewSQLConnectionsRepository(db *sqlx.DB, schema string) *SQLConnectionsRepository {
	return &SQLConnectionsRepository{db: db, schema: schema}
}

// ClaimServer inserts an open connection for conn.ServerID unless the server already
// has one. The server row is re-checked in the same statement: it must still be open,
// server capable and have contacted the broker after aliveAfter. Returns false when
// the claim lost to another client or the server stopped qualifying.
func (r *SQLConnectionsRepository) ClaimServer(
	ctx context.Context,
	conn *models.Connection,
	aliveAfter time.Time,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.connections (id, server_id, client_id, state, opened_at)
		SELECT ?, w.id, ?, 'open', ?
		FROM %s.workers w
		WHERE w.id = ?
			AND w.closed_at IS NULL
			AND w.server_port IS NOT NULL
			AND w.last_contact_at > ?
		ON CONFLICT (server_id) WHERE state = 'open' DO NOTHING`, r.schema, r.schema)

	result, err := db.ExecContext(
		ctx,
		db.Rebind(query),
		conn.ID,
		conn.ClientID,
		conn.OpenedAt,
		conn.ServerID,
		aliveAfter,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim server: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return false, nil
	}
	conn.State = models.ConnectionStateOpen
	return true, nil
}

func (r *SQLConnectionsRepository) HasOpenConnectionAsServer(ctx context.Context, serverID string) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s.connections
		WHERE server_id = ? AND state = 'open'`, r.schema)

	var count int
	if err := db.GetContext(ctx, &count, db.Rebind(query), serverID); err != nil {
		return false, fmt.Errorf("failed to count open connections: %w", err)
	}

	return count > 0, nil
}

func (r *SQLConnectionsRepository) GetOpenConnectionByClientID(
	ctx context.Context,
	clientID string,
) (mo.Option[*models.Connection], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.connections
		WHERE client_id = ? AND state = 'open'
		ORDER BY opened_at DESC
		LIMIT 1`, strings.Join(connectionsColumns, ", "), r.schema)

	conn := &models.Connection{}
	err := db.GetContext(ctx, conn, db.Rebind(query), clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.Connection](), nil
		}
		return mo.None[*models.Connection](), fmt.Errorf("failed to get open connection: %w", err)
	}

	return mo.Some(conn), nil
}

func (r *SQLConnectionsRepository) GetConnectionByID(ctx context.Context, id string) (mo.Option[*models.Connection], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.connections
		WHERE id = ?`, strings.Join(connectionsColumns, ", "), r.schema)

	conn := &models.Connection{}
	err := db.GetContext(ctx, conn, db.Rebind(query), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.Connection](), nil
		}
		return mo.None[*models.Connection](), fmt.Errorf("failed to get connection: %w", err)
	}

	return mo.Some(conn), nil
}

func (r *SQLConnectionsRepository) CloseConnection(
	ctx context.Context,
	serverID, clientID string,
	reason models.CloseReason,
	at time.Time,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.connections
		SET state = 'closed', closed_at = ?, close_reason = ?
		WHERE server_id = ? AND client_id = ? AND state = 'open'`, r.schema)

	result, err := db.ExecContext(ctx, db.Rebind(query), at, string(reason), serverID, clientID)
	if err != nil {
		return false, fmt.Errorf("failed to close connection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *SQLConnectionsRepository) CloseConnectionsByClientID(
	ctx context.Context,
	clientID string,
	reason models.CloseReason,
	at time.Time,
) (int64, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.connections
		SET state = 'closed', closed_at = ?, close_reason = ?
		WHERE client_id = ? AND state = 'open'`, r.schema)

	result, err := db.ExecContext(ctx, db.Rebind(query), at, string(reason), clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to close client connections: %w", err)
	}

	return result.RowsAffected()
}

// CloseConnectionsByWorkerID closes every open connection the worker is part of, on either side
func (r *SQLConnectionsRepository) CloseConnectionsByWorkerID(
	ctx context.Context,
	workerID string,
	reason models.CloseReason,
	at time.Time,
) (int64, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.connections
		SET state = 'closed', closed_at = ?, close_reason = ?
		WHERE (server_id = ? OR client_id = ?) AND state = 'open'`, r.schema)

	result, err := db.ExecContext(ctx, db.Rebind(query), at, string(reason), workerID, workerID)
	if err != nil {
		return 0, fmt.Errorf("failed to close worker connections: %w", err)
	}

	return result.RowsAffected()
}

// CloseStaleConnections closes open connections whose client has not been heard from
// after staleBefore
func (r *SQLConnectionsRepository) CloseStaleConnections(
	ctx context.Context,
	staleBefore time.Time,
	at time.Time,
) (int64, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.connections
		SET state = 'closed', closed_at = ?, close_reason = ?
		WHERE state = 'open'
			AND client_id IN (
				SELECT id FROM %s.workers
				WHERE last_contact_at <= ? OR closed_at IS NOT NULL
			)`, r.schema, r.schema)

	result, err := db.ExecContext(ctx, db.Rebind(query), at, string(models.CloseReasonClientStale), staleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale connections: %w", err)
	}

	return result.RowsAffected()
}
