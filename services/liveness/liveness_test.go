package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dcbradley/netblast/models"
)

func TestPolicy_IsAlive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	closedAt := now.Add(-time.Minute)
	policy := NewPolicy(DefaultWindow)

	tests := []struct {
		name   string
		worker *models.Worker
		want   bool
	}{
		{
			name:   "just contacted",
			worker: &models.Worker{LastContactAt: now},
			want:   true,
		},
		{
			name:   "599 seconds ago",
			worker: &models.Worker{LastContactAt: now.Add(-599 * time.Second)},
			want:   true,
		},
		{
			name:   "exactly one window ago",
			worker: &models.Worker{LastContactAt: now.Add(-600 * time.Second)},
			want:   false,
		},
		{
			name:   "601 seconds ago",
			worker: &models.Worker{LastContactAt: now.Add(-601 * time.Second)},
			want:   false,
		},
		{
			name:   "closed but recent",
			worker: &models.Worker{LastContactAt: now, ClosedAt: &closedAt},
			want:   false,
		},
		{
			name:   "nil worker",
			worker: nil,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.IsAlive(tt.worker, now))
		})
	}
}

func TestPolicy_CutoffAgreesWithIsAlive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	policy := NewPolicy(90 * time.Second)
	cutoff := policy.Cutoff(now)

	assert.Equal(t, now.Add(-90*time.Second), cutoff)
	assert.Equal(t, 90*time.Second, policy.Window())

	for _, offset := range []time.Duration{-time.Second, 0, time.Second} {
		worker := &models.Worker{LastContactAt: cutoff.Add(offset)}
		assert.Equal(t, worker.LastContactAt.After(cutoff), policy.IsAlive(worker, now), "offset %s", offset)
	}
}

func TestNewPolicy_RejectsNonPositiveWindow(t *testing.T) {
	assert.Panics(t, func() { NewPolicy(0) })
}
