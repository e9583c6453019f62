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

type SQLWorkersRepository struct {
	db     *sqlx.DB
	schema string
}

var workersColumns = []string{
	"id",
	"hostname",
	"ip4",
	"ip6",
	"server_port",
	"cookie",
	"created_at",
	"last_contact_at",
	"closed_at",
}

func NewSQLWorkersRepository(db *sqlx.DB, schema string) *SQLWorkersRepository {
	return &SQLWorkersRepository{db: db, schema: schema}
}

func (r *SQLWorkersRepository) CreateWorker(ctx context.Context, worker *models.Worker) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.workers (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.schema, strings.Join(workersColumns, ", "))

	_, err := db.ExecContext(
		ctx,
		db.Rebind(query),
		worker.ID,
		worker.Hostname,
		worker.IP4,
		worker.IP6,
		worker.ServerPort,
		worker.Credential,
		worker.CreatedAt,
		worker.LastContactAt,
		worker.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	return nil
}

func (r *SQLWorkersRepository) GetWorkerByID(ctx context.Context, id string) (mo.Option[*models.Worker], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.workers
		WHERE id = ?`, strings.Join(workersColumns, ", "), r.schema)

	worker := &models.Worker{}
	err := db.GetContext(ctx, worker, db.Rebind(query), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.Worker](), nil
		}
		return mo.None[*models.Worker](), fmt.Errorf("failed to get worker: %w", err)
	}

	return mo.Some(worker), nil
}

// GetServerCandidates returns open, server-capable workers with no open connection
// as server, oldest registration first. Liveness is left to the caller.
func (r *SQLWorkersRepository) GetServerCandidates(ctx context.Context, excludeID string) ([]*models.Worker, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columns := make([]string, len(workersColumns))
	for i, column := range workersColumns {
		columns[i] = "w." + column
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.workers w
		WHERE w.closed_at IS NULL
			AND w.server_port IS NOT NULL
			AND w.id <> ?
			AND NOT EXISTS (
				SELECT 1 FROM %s.connections c
				WHERE c.server_id = w.id AND c.state = 'open'
			)
		ORDER BY w.created_at ASC, w.id ASC`, strings.Join(columns, ", "), r.schema, r.schema)

	var workers []*models.Worker
	if err := db.SelectContext(ctx, &workers, db.Rebind(query), excludeID); err != nil {
		return nil, fmt.Errorf("failed to get server candidates: %w", err)
	}

	return workers, nil
}

func (r *SQLWorkersRepository) UpdateLastContactAt(ctx context.Context, id string, at time.Time) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.workers
		SET last_contact_at = ?
		WHERE id = ? AND closed_at IS NULL`, r.schema)

	result, err := db.ExecContext(ctx, db.Rebind(query), at, id)
	if err != nil {
		return false, fmt.Errorf("failed to update worker last_contact_at: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// CloseWorker sets closed_at once; a second call reports false
func (r *SQLWorkersRepository) CloseWorker(ctx context.Context, id string, at time.Time) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.workers
		SET closed_at = ?
		WHERE id = ? AND closed_at IS NULL`, r.schema)

	result, err := db.ExecContext(ctx, db.Rebind(query), at, id)
	if err != nil {
		return false, fmt.Errorf("failed to close worker: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
