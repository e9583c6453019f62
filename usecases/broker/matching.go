package broker

import (
	"context"
	"log"

	"github.com/samber/mo"

	"github.com/dcbradley/netblast/metrics"
	"github.com/dcbradley/netblast/models"
)

// claimServer walks the eligible servers oldest first and claims the first one it can.
// Liveness is filtered here and enforced again inside the claim, so a server that goes
// stale or gets taken between the read and the insert is skipped rather than shared.
func (s *BrokerUseCase) claimServer(
	ctx context.Context,
	client *models.Worker,
) (mo.Option[*models.Assignment], error) {
	candidates, err := s.workersService.GetServerCandidates(ctx, client.ID)
	if err != nil {
		return mo.None[*models.Assignment](), err
	}

	now := s.now()
	for _, server := range candidates {
		if !s.liveness.IsAlive(server, now) {
			continue
		}
		address, ok := server.PreferredAddress().Get()
		if !ok {
			log.Printf("⚠️ Server %s has no usable address, skipping", server.ID)
			continue
		}

		maybeConn, err := s.connectionsService.OpenConnection(ctx, server.ID, client.ID)
		if err != nil {
			return mo.None[*models.Assignment](), err
		}
		conn, ok := maybeConn.Get()
		if !ok {
			metrics.ClaimConflicts.Inc()
			continue
		}

		log.Printf("🔗 Paired client %s with server %s at %s:%s", client.ID, server.ID, address, server.PortString())
		return mo.Some(&models.Assignment{
			Kind:       models.AssignmentClient,
			Command:    s.serverCommand,
			Args:       []string{"-p", server.PortString(), "-c", address},
			Server:     server,
			Connection: conn,
		}), nil
	}

	return mo.None[*models.Assignment](), nil
}
