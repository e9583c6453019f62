package models

import (
	"time"
)

// Flow is one finished throughput run reported by the client side of a connection
type Flow struct {
	ID              string    `json:"id"               db:"id"`
	ConnectionID    string    `json:"connection_id"    db:"connection_id"`
	ClientID        string    `json:"client_id"        db:"client_id"`
	ServerID        string    `json:"server_id"        db:"server_id"`
	SrcAddress      string    `json:"src_address"      db:"src_address"`
	DestAddress     string    `json:"dest_address"     db:"dest_address"`
	DestPort        int       `json:"dest_port"        db:"dest_port"`
	StartedAt       time.Time `json:"started_at"       db:"started_at"`
	DurationSeconds float64   `json:"duration_seconds" db:"duration_seconds"`
	Bytes           int64     `json:"bytes"            db:"bytes"`
	ReportedAt      time.Time `json:"reported_at"      db:"reported_at"`
}

// EndedAt is when the run stopped sending
func (f *Flow) EndedAt() time.Time {
	return f.StartedAt.Add(time.Duration(f.DurationSeconds * float64(time.Second)))
}

// FlowReport is what a client submits after a run
type FlowReport struct {
	StartedAt       time.Time
	DurationSeconds float64
	Bytes           int64
}
