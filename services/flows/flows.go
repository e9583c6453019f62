package flows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/db"
	"github.com/dcbradley/netblast/models"
)

// Bounds on a reported run. Anything outside them is a client bug or a bad clock.
const (
	MaxFlowDuration = 24 * time.Hour
	MaxFlowAge      = 7 * 24 * time.Hour
	MaxClockSkew    = time.Hour
)

type FlowsService struct {
	flowsRepo *db.SQLFlowsRepository
	now       core.Clock
}

func NewFlowsService(repo *db.SQLFlowsRepository, now core.Clock) *FlowsService {
	return &FlowsService{flowsRepo: repo, now: now}
}

// RecordFlow stores a finished run for an open connection. Addresses are the
// preferred addresses of the two workers at report time.
func (s *FlowsService) RecordFlow(
	ctx context.Context,
	connection *models.Connection,
	client, server *models.Worker,
	report models.FlowReport,
) (*models.Flow, error) {
	log.Printf("📋 Starting to record flow for connection %s", connection.ID)
	if report.StartedAt.IsZero() {
		return nil, core.NewValidationError("start", "is required")
	}
	now := s.now()
	if report.StartedAt.Before(now.Add(-MaxFlowAge)) || report.StartedAt.After(now.Add(MaxClockSkew)) {
		return nil, core.NewValidationError("start", "must be within the last "+MaxFlowAge.String())
	}
	if report.DurationSeconds < 0 {
		return nil, core.NewValidationError("duration", "must not be negative")
	}
	if report.DurationSeconds > MaxFlowDuration.Seconds() {
		return nil, core.NewValidationError("duration", "must not exceed "+MaxFlowDuration.String())
	}
	if report.Bytes < 0 {
		return nil, core.NewValidationError("bytes", "must not be negative")
	}

	flow := &models.Flow{
		ID:              core.NewID("fl"),
		ConnectionID:    connection.ID,
		ClientID:        client.ID,
		ServerID:        server.ID,
		SrcAddress:      client.PreferredAddress().OrElse(""),
		DestAddress:     server.PreferredAddress().OrElse(""),
		StartedAt:       report.StartedAt.UTC().Truncate(time.Microsecond),
		DurationSeconds: report.DurationSeconds,
		Bytes:           report.Bytes,
		ReportedAt:      now,
	}
	if server.ServerPort != nil {
		flow.DestPort = *server.ServerPort
	}

	if err := s.flowsRepo.CreateFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	log.Printf("📋 Completed successfully - recorded flow %s: %d bytes in %.3fs", flow.ID, flow.Bytes, flow.DurationSeconds)
	return flow, nil
}

func (s *FlowsService) GetFlowsStartedBetween(ctx context.Context, from, to time.Time) ([]*models.Flow, error) {
	flows, err := s.flowsRepo.GetFlowsStartedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get flows: %w", err)
	}
	return flows, nil
}
