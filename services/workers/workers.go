package workers

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net"
	"regexp"
	"strings"

	"github.com/samber/mo"

	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/db"
	"github.com/dcbradley/netblast/models"
)

var (
	ipv4Pattern = regexp.MustCompile(`^[0-9]{1,3}(\.[0-9]{1,3}){3}$`)
	ipv6Pattern = regexp.MustCompile(`^[0-9A-Fa-f]{0,4}(:[0-9A-Fa-f]{0,4}){2,7}$`)
)

type WorkersService struct {
	workersRepo *db.SQLWorkersRepository
	credentials core.CredentialSource
	now         core.Clock
}

func NewWorkersService(
	repo *db.SQLWorkersRepository,
	credentials core.CredentialSource,
	now core.Clock,
) *WorkersService {
	return &WorkersService{workersRepo: repo, credentials: credentials, now: now}
}

func (s *WorkersService) Register(
	ctx context.Context,
	registration models.Registration,
) (*models.RegistrationResult, error) {
	log.Printf("📋 Starting to register worker with hostname: %s", registration.Hostname)

	hostname := strings.TrimSpace(registration.Hostname)
	if hostname == "" {
		return nil, core.NewValidationError("hostname", "is required")
	}
	if registration.IP4 != nil && !ipv4Pattern.MatchString(*registration.IP4) {
		return nil, core.NewValidationError("ip4", "must be a dotted-quad address")
	}
	if registration.IP6 != nil && !ipv6Pattern.MatchString(*registration.IP6) {
		return nil, core.NewValidationError("ip6", "must be a colon-separated hex address")
	}
	if registration.ServerPort != nil && (*registration.ServerPort < 1 || *registration.ServerPort > 65535) {
		return nil, core.NewValidationError("server_port", "must be between 1 and 65535")
	}

	ip4, ip6 := registration.IP4, registration.IP6
	remote := remoteHost(registration.RemoteAddr)
	switch {
	case ip4 == nil && ipv4Pattern.MatchString(remote):
		ip4 = &remote
	case ip6 == nil && ipv6Pattern.MatchString(remote):
		ip6 = &remote
	}

	credential, err := s.credentials.NewCredential()
	if err != nil {
		return nil, fmt.Errorf("failed to generate credential: %w", err)
	}

	now := s.now()
	worker := &models.Worker{
		ID:            core.NewID("wk"),
		Hostname:      hostname,
		IP4:           ip4,
		IP6:           ip6,
		ServerPort:    registration.ServerPort,
		Credential:    credential,
		CreatedAt:     now,
		LastContactAt: now,
	}
	if err := s.workersRepo.CreateWorker(ctx, worker); err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}

	log.Printf("📋 Completed successfully - registered worker %s (%s)", worker.ID, hostname)
	return &models.RegistrationResult{WorkerID: worker.ID, Credential: credential}, nil
}

// Authenticate returns the open worker matching both id and credential. Every failure,
// including a closed worker, is core.ErrNotFound so callers cannot probe for ids.
func (s *WorkersService) Authenticate(ctx context.Context, workerID, credential string) (*models.Worker, error) {
	if workerID == "" || credential == "" {
		return nil, core.ErrNotFound
	}

	maybeWorker, err := s.workersRepo.GetWorkerByID(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}
	worker, ok := maybeWorker.Get()
	if !ok {
		return nil, core.ErrNotFound
	}
	if subtle.ConstantTimeCompare([]byte(worker.Credential), []byte(credential)) != 1 {
		return nil, core.ErrNotFound
	}
	if worker.IsClosed() {
		return nil, core.ErrNotFound
	}

	return worker, nil
}

func (s *WorkersService) GetWorkerByID(ctx context.Context, workerID string) (mo.Option[*models.Worker], error) {
	maybeWorker, err := s.workersRepo.GetWorkerByID(ctx, workerID)
	if err != nil {
		return mo.None[*models.Worker](), fmt.Errorf("failed to get worker: %w", err)
	}
	return maybeWorker, nil
}

// Touch records contact from the worker at the current time
func (s *WorkersService) Touch(ctx context.Context, workerID string) error {
	updated, err := s.workersRepo.UpdateLastContactAt(ctx, workerID, s.now())
	if err != nil {
		return fmt.Errorf("failed to update last contact: %w", err)
	}
	if !updated {
		return core.ErrNotFound
	}
	return nil
}

// Close soft-deletes the worker. Returns false when it was already closed.
func (s *WorkersService) Close(ctx context.Context, workerID string) (bool, error) {
	log.Printf("📋 Starting to close worker %s", workerID)

	closed, err := s.workersRepo.CloseWorker(ctx, workerID, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to close worker: %w", err)
	}

	log.Printf("📋 Completed successfully - closed worker %s (changed: %t)", workerID, closed)
	return closed, nil
}

// GetServerCandidates lists open server-capable workers with no open connection as server,
// oldest registration first. Liveness is left to the caller.
func (s *WorkersService) GetServerCandidates(ctx context.Context, excludeWorkerID string) ([]*models.Worker, error) {
	candidates, err := s.workersRepo.GetServerCandidates(ctx, excludeWorkerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get server candidates: %w", err)
	}
	return candidates, nil
}

func remoteHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return strings.Trim(remoteAddr, "[]")
}
