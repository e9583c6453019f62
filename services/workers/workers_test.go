package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/db"
	"github.com/dcbradley/netblast/models"
	"github.com/dcbradley/netblast/testutils"
)

func setupTestService(t *testing.T) (*WorkersService, *db.SQLWorkersRepository, *testutils.FakeClock) {
	dbConn := testutils.NewTestDB(t)
	workersRepo := db.NewSQLWorkersRepository(dbConn, testutils.TestSchema)
	clock := testutils.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	service := NewWorkersService(workersRepo, testutils.SequentialCredentials(), clock.Now)
	return service, workersRepo, clock
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestWorkersService_Register(t *testing.T) {
	service, workersRepo, clock := setupTestService(t)
	ctx := context.Background()

	t.Run("stores worker with supplied fields", func(t *testing.T) {
		result, err := service.Register(ctx, models.Registration{
			Hostname:   "host-a",
			IP4:        strPtr("10.0.0.5"),
			ServerPort: intPtr(5001),
			RemoteAddr: "192.168.1.1:41000",
		})
		require.NoError(t, err)
		assert.True(t, core.IsValidULID(result.WorkerID))
		assert.Len(t, result.Credential, core.CredentialLength)

		maybeWorker, err := workersRepo.GetWorkerByID(ctx, result.WorkerID)
		require.NoError(t, err)
		worker := maybeWorker.MustGet()
		assert.Equal(t, "host-a", worker.Hostname)
		assert.Equal(t, "10.0.0.5", *worker.IP4)
		assert.Nil(t, worker.IP6)
		assert.Equal(t, 5001, *worker.ServerPort)
		assert.Equal(t, result.Credential, worker.Credential)
		assert.True(t, clock.Now().Equal(worker.CreatedAt))
		assert.True(t, worker.CreatedAt.Equal(worker.LastContactAt))
		assert.Nil(t, worker.ClosedAt)
	})

	t.Run("registering twice yields distinct ids and credentials", func(t *testing.T) {
		first, err := service.Register(ctx, models.Registration{Hostname: "same"})
		require.NoError(t, err)
		second, err := service.Register(ctx, models.Registration{Hostname: "same"})
		require.NoError(t, err)

		assert.NotEqual(t, first.WorkerID, second.WorkerID)
		assert.NotEqual(t, first.Credential, second.Credential)
	})

	tests := []struct {
		name       string
		remoteAddr string
		ip4        *string
		ip6        *string
		wantIP4    *string
		wantIP6    *string
	}{
		{name: "ipv4 remote fills ip4", remoteAddr: "10.1.2.3:5555", wantIP4: strPtr("10.1.2.3")},
		{name: "ipv6 remote fills ip6", remoteAddr: "[2001:db8::7]:5555", wantIP6: strPtr("2001:db8::7")},
		{name: "bare ipv6 remote", remoteAddr: "::1", wantIP6: strPtr("::1")},
		{
			name:       "supplied ip4 wins over remote",
			remoteAddr: "10.1.2.3:5555",
			ip4:        strPtr("172.16.0.9"),
			wantIP4:    strPtr("172.16.0.9"),
		},
		{
			name:       "supplied ip4 and ipv6 remote fills ip6",
			remoteAddr: "[fe80::1]:80",
			ip4:        strPtr("172.16.0.9"),
			wantIP4:    strPtr("172.16.0.9"),
			wantIP6:    strPtr("fe80::1"),
		},
		{name: "unrecognised remote fills nothing", remoteAddr: "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.Register(ctx, models.Registration{
				Hostname:   "derive",
				IP4:        tt.ip4,
				IP6:        tt.ip6,
				RemoteAddr: tt.remoteAddr,
			})
			require.NoError(t, err)

			worker := lookupWorker(t, workersRepo, result.WorkerID)
			assert.Equal(t, tt.wantIP4, worker.IP4)
			assert.Equal(t, tt.wantIP6, worker.IP6)
		})
	}
}

func TestWorkersService_Register_Validation(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		registration models.Registration
		field        string
	}{
		{name: "missing hostname", registration: models.Registration{Hostname: "  "}, field: "hostname"},
		{name: "malformed ip4", registration: models.Registration{Hostname: "h", IP4: strPtr("10.0.0")}, field: "ip4"},
		{name: "malformed ip6", registration: models.Registration{Hostname: "h", IP6: strPtr("zz::1")}, field: "ip6"},
		{name: "port zero", registration: models.Registration{Hostname: "h", ServerPort: intPtr(0)}, field: "server_port"},
		{name: "port too high", registration: models.Registration{Hostname: "h", ServerPort: intPtr(65536)}, field: "server_port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.Register(ctx, tt.registration)
			require.Error(t, err)
			assert.Nil(t, result)

			var validationErr *core.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestWorkersService_Register_CredentialFailure(t *testing.T) {
	dbConn := testutils.NewTestDB(t)
	workersRepo := db.NewSQLWorkersRepository(dbConn, testutils.TestSchema)
	failing := core.CredentialSourceFunc(func() (string, error) { return "", errors.New("entropy exhausted") })
	service := NewWorkersService(workersRepo, failing, core.Now)

	_, err := service.Register(context.Background(), models.Registration{Hostname: "h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy exhausted")
	assert.False(t, core.IsValidationError(err))
}

func TestWorkersService_Authenticate(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()

	result, err := service.Register(ctx, models.Registration{Hostname: "auth"})
	require.NoError(t, err)

	worker, err := service.Authenticate(ctx, result.WorkerID, result.Credential)
	require.NoError(t, err)
	assert.Equal(t, result.WorkerID, worker.ID)

	_, wrongCredentialErr := service.Authenticate(ctx, result.WorkerID, "ffffffffffffffffffff")
	_, unknownIDErr := service.Authenticate(ctx, core.NewID("wk"), result.Credential)
	_, prefixErr := service.Authenticate(ctx, result.WorkerID, result.Credential[:10])

	assert.ErrorIs(t, wrongCredentialErr, core.ErrNotFound)
	assert.ErrorIs(t, unknownIDErr, core.ErrNotFound)
	assert.ErrorIs(t, prefixErr, core.ErrNotFound)
	assert.Equal(t, wrongCredentialErr, unknownIDErr, "wrong credential and unknown id must be indistinguishable")

	closed, err := service.Close(ctx, result.WorkerID)
	require.NoError(t, err)
	assert.True(t, closed)

	_, closedErr := service.Authenticate(ctx, result.WorkerID, result.Credential)
	assert.ErrorIs(t, closedErr, core.ErrNotFound)
}

func TestWorkersService_TouchAndClose(t *testing.T) {
	service, workersRepo, clock := setupTestService(t)
	ctx := context.Background()

	result, err := service.Register(ctx, models.Registration{Hostname: "touch"})
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	require.NoError(t, service.Touch(ctx, result.WorkerID))
	worker := lookupWorker(t, workersRepo, result.WorkerID)
	assert.True(t, clock.Now().Equal(worker.LastContactAt))

	assert.ErrorIs(t, service.Touch(ctx, core.NewID("wk")), core.ErrNotFound)

	closed, err := service.Close(ctx, result.WorkerID)
	require.NoError(t, err)
	assert.True(t, closed)

	closedAgain, err := service.Close(ctx, result.WorkerID)
	require.NoError(t, err)
	assert.False(t, closedAgain, "closing twice leaves the first closed_at in place")

	assert.ErrorIs(t, service.Touch(ctx, result.WorkerID), core.ErrNotFound)
}

func TestWorkersService_GetServerCandidates(t *testing.T) {
	service, workersRepo, clock := setupTestService(t)
	ctx := context.Background()
	now := clock.Now()

	older := testutils.CreateTestWorker(t, workersRepo, now.Add(-time.Minute), testutils.WithServerPort(5001))
	newer := testutils.CreateTestWorker(t, workersRepo, now, testutils.WithServerPort(5002))
	testutils.CreateTestWorker(t, workersRepo, now)
	testutils.CreateTestWorker(t, workersRepo, now, testutils.WithServerPort(5003), testutils.WithClosedAt(now))
	caller := testutils.CreateTestWorker(t, workersRepo, now, testutils.WithServerPort(5004))

	candidates, err := service.GetServerCandidates(ctx, caller.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, older.ID, candidates[0].ID)
	assert.Equal(t, newer.ID, candidates[1].ID)
}

func lookupWorker(t *testing.T, workersRepo *db.SQLWorkersRepository, id string) *models.Worker {
	t.Helper()
	maybeWorker, err := workersRepo.GetWorkerByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, maybeWorker.IsPresent())
	return maybeWorker.MustGet()
}
