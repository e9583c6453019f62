package broker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dcbradley/netblast/metrics"
	"github.com/dcbradley/netblast/models"
)

// ReapStaleConnections releases servers whose client stopped polling without reporting
func (s *BrokerUseCase) ReapStaleConnections(ctx context.Context) error {
	log.Printf("📋 Starting to reap stale connections (client silent > %s)", s.liveness.Window())

	count, err := s.connectionsService.ReapStaleConnections(ctx)
	if err != nil {
		return fmt.Errorf("failed to reap stale connections: %w", err)
	}

	if count > 0 {
		metrics.ConnectionsClosed.WithLabelValues(string(models.CloseReasonClientStale)).Add(float64(count))
		log.Printf("🧹 Released %d connection(s) with a stale client", count)
	}
	log.Printf("📋 Completed reap - closed %d stale connection(s)", count)
	return nil
}

// RunReaper reaps stale connections every interval until ctx is done.
// Each pass goes through run, which can add recovery and alerting; nil runs it directly.
func (s *BrokerUseCase) RunReaper(ctx context.Context, interval time.Duration, run func(task func() error) error) {
	if run == nil {
		run = func(task func() error) error { return task() }
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("🛑 Stale connection reaper stopped")
			return
		case <-ticker.C:
			_ = run(func() error {
				return s.ReapStaleConnections(ctx)
			})
		}
	}
}
