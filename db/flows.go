package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	dbtx "github.com/dcbradley/netblast/db/tx"
	"github.com/dcbradley/netblast/models"
)

type SQLFlowsRepository struct {
	db     *sqlx.DB
	schema string
}

var flowsColumns = []string{
	"id",
	"connection_id",
	"client_id",
	"server_id",
	"src_address",
	"dest_address",
	"dest_port",
	"started_at",
	"duration_seconds",
	"bytes",
	"reported_at",
}

func NewSQLFlowsRepository(db *sqlx.DB, schema string) *SQLFlowsRepository {
	return &SQLFlowsRepository{db: db, schema: schema}
}

func (r *SQLFlowsRepository) CreateFlow(ctx context.Context, flow *models.Flow) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.flows (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.schema, strings.Join(flowsColumns, ", "))

	_, err := db.ExecContext(
		ctx,
		db.Rebind(query),
		flow.ID,
		flow.ConnectionID,
		flow.ClientID,
		flow.ServerID,
		flow.SrcAddress,
		flow.DestAddress,
		flow.DestPort,
		flow.StartedAt,
		flow.DurationSeconds,
		flow.Bytes,
		flow.ReportedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}

	return nil
}

// GetFlowsStartedBetween returns flows with from <= started_at < to, oldest first
func (r *SQLFlowsRepository) GetFlowsStartedBetween(ctx context.Context, from, to time.Time) ([]*models.Flow, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.flows
		WHERE started_at >= ? AND started_at < ?
		ORDER BY started_at ASC, id ASC`, strings.Join(flowsColumns, ", "), r.schema)

	var flows []*models.Flow
	if err := db.SelectContext(ctx, &flows, db.Rebind(query), from, to); err != nil {
		return nil, fmt.Errorf("failed to get flows: %w", err)
	}

	return flows, nil
}
