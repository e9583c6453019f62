package liveness

import (
	"time"

	"github.com/dcbradley/netblast/models"
	"github.com/dcbradley/netblast/utils"
)

// DefaultWindow is how long a worker stays eligible as a server after its last contact
const DefaultWindow = 600 * time.Second

type Policy struct {
	window time.Duration
}

func NewPolicy(window time.Duration) *Policy {
	utils.AssertInvariant(window > 0, "liveness window must be positive")
	return &Policy{window: window}
}

func (p *Policy) Window() time.Duration {
	return p.window
}

// IsAlive reports whether the worker is open and was heard from strictly less than
// one window before now
func (p *Policy) IsAlive(worker *models.Worker, now time.Time) bool {
	if worker == nil || worker.IsClosed() {
		return false
	}
	return now.Sub(worker.LastContactAt) < p.window
}

// Cutoff is the instant a contact time must be strictly after to count as alive at now
func (p *Policy) Cutoff(now time.Time) time.Time {
	return now.Add(-p.window)
}
