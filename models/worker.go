package models

import (
	"strconv"
	"time"

	"github.com/samber/mo"
)

type Worker struct {
	ID            string     `json:"id"              db:"id"`
	Hostname      string     `json:"hostname"        db:"hostname"`
	IP4           *string    `json:"ip4"             db:"ip4"`
	IP6           *string    `json:"ip6"             db:"ip6"`
	ServerPort    *int       `json:"server_port"     db:"server_port"`
	Credential    string     `json:"-"               db:"cookie"`
	CreatedAt     time.Time  `json:"created_at"      db:"created_at"`
	LastContactAt time.Time  `json:"last_contact_at" db:"last_contact_at"`
	ClosedAt      *time.Time `json:"closed_at"       db:"closed_at"`
}

func (w *Worker) IsClosed() bool {
	return w.ClosedAt != nil
}

// IsServerCapable reports whether the worker advertised a listening port
func (w *Worker) IsServerCapable() bool {
	return w.ServerPort != nil
}

// PreferredAddress returns the IPv4 address when present, else the IPv6 one
func (w *Worker) PreferredAddress() mo.Option[string] {
	if w.IP4 != nil && *w.IP4 != "" {
		return mo.Some(*w.IP4)
	}
	if w.IP6 != nil && *w.IP6 != "" {
		return mo.Some(*w.IP6)
	}
	return mo.None[string]()
}

// PortString renders the server port the way it is handed to iperf
func (w *Worker) PortString() string {
	if w.ServerPort == nil {
		return ""
	}
	return strconv.Itoa(*w.ServerPort)
}

// Registration is what the directory needs to create a worker
type Registration struct {
	Hostname   string
	IP4        *string
	IP6        *string
	ServerPort *int
	RemoteAddr string
}

// RegistrationResult carries the only copy of the credential the worker will ever get
type RegistrationResult struct {
	WorkerID   string
	Credential string
}
