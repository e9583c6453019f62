package models

import (
	"time"
)

type ConnectionState string

const (
	ConnectionStateOpen   ConnectionState = "open"
	ConnectionStateClosed ConnectionState = "closed"
)

type CloseReason string

const (
	CloseReasonCompleted    CloseReason = "completed"
	CloseReasonSuperseded   CloseReason = "superseded"
	CloseReasonClientStale  CloseReason = "client_stale"
	CloseReasonWorkerClosed CloseReason = "worker_closed"
)

// Connection is a claimed pairing between a server-role and a client-role worker
type Connection struct {
	ID          string          `json:"id"           db:"id"`
	ServerID    string          `json:"server_id"    db:"server_id"`
	ClientID    string          `json:"client_id"    db:"client_id"`
	State       ConnectionState `json:"state"        db:"state"`
	OpenedAt    time.Time       `json:"opened_at"    db:"opened_at"`
	ClosedAt    *time.Time      `json:"closed_at"    db:"closed_at"`
	CloseReason *CloseReason    `json:"close_reason" db:"close_reason"`
}

func (c *Connection) IsOpen() bool {
	return c.State == ConnectionStateOpen
}
