package broker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/db"
	"github.com/dcbradley/netblast/handlers"
	"github.com/dcbradley/netblast/middleware"
	"github.com/dcbradley/netblast/services/connections"
	"github.com/dcbradley/netblast/services/flows"
	"github.com/dcbradley/netblast/services/liveness"
	"github.com/dcbradley/netblast/services/txmanager"
	"github.com/dcbradley/netblast/services/workers"
	"github.com/dcbradley/netblast/testutils"
	brokerusecase "github.com/dcbradley/netblast/usecases/broker"
)

func setupBrokerServer(t *testing.T) *Client {
	dbConn := testutils.NewTestDB(t)
	policy := liveness.NewPolicy(liveness.DefaultWindow)

	workersService := workers.NewWorkersService(
		db.NewSQLWorkersRepository(dbConn, testutils.TestSchema),
		core.NewCredentialSource(),
		core.Now,
	)
	connectionsService := connections.NewConnectionsService(
		db.NewSQLConnectionsRepository(dbConn, testutils.TestSchema),
		policy,
		core.Now,
	)
	flowsService := flows.NewFlowsService(db.NewSQLFlowsRepository(dbConn, testutils.TestSchema), core.Now)
	useCase := brokerusecase.NewBrokerUseCase(
		workersService,
		connectionsService,
		flowsService,
		txmanager.NewTransactionManager(dbConn),
		policy,
		"iperf",
		core.Now,
	)

	router := mux.NewRouter()
	router.Use(middleware.RemoteAddrMiddleware(false))
	handlers.NewBrokerHTTPHandler(useCase).SetupEndpoints(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return NewClient(server.URL, server.Client())
}

func TestClient_FullWorkerLifecycle(t *testing.T) {
	client := setupBrokerServer(t)
	ctx := context.Background()

	server, err := client.Register(ctx, RegisterRequest{Hostname: "srv", IP4: "10.0.0.5", ServerPort: 5001})
	require.NoError(t, err)
	assert.Len(t, server.Cookie, core.CredentialLength)

	worker, err := client.Register(ctx, RegisterRequest{Hostname: "cli"})
	require.NoError(t, err)

	serverWork, err := client.GetWork(ctx, server.WorkerID, server.Cookie, "server")
	require.NoError(t, err)
	assert.Equal(t, "server", serverWork.Mode)
	assert.Equal(t, []string{"-s"}, serverWork.Args)

	clientWork, err := client.GetWork(ctx, worker.WorkerID, worker.Cookie, "client")
	require.NoError(t, err)
	assert.Equal(t, "iperf", clientWork.Cmd)
	assert.Equal(t, "client", clientWork.Mode)
	assert.Equal(t, []string{"-p", "5001", "-c", "10.0.0.5"}, clientWork.Args)

	// the only server is now busy
	third, err := client.Register(ctx, RegisterRequest{Hostname: "late"})
	require.NoError(t, err)
	_, err = client.GetWork(ctx, third.WorkerID, third.Cookie, "client")
	assert.ErrorIs(t, err, ErrNoServerAvailable)

	flowID, err := client.ReportFlow(ctx, worker.WorkerID, worker.Cookie, time.Now().Add(-time.Minute), time.Minute, 1<<30)
	require.NoError(t, err)
	assert.True(t, core.IsValidULID(flowID))

	_, err = client.ReportFlow(ctx, worker.WorkerID, worker.Cookie, time.Now(), time.Second, 1)
	var brokerErr *BrokerError
	require.True(t, errors.As(err, &brokerErr))
	assert.Equal(t, "No open connection for worker.", brokerErr.Message)

	lateWork, err := client.GetWork(ctx, third.WorkerID, third.Cookie, "client")
	require.NoError(t, err, "reporting the flow released the server")
	assert.Equal(t, "client", lateWork.Mode)

	require.NoError(t, client.KeepAlive(ctx, server.WorkerID, server.Cookie))
	require.NoError(t, client.Close(ctx, server.WorkerID, server.Cookie))

	err = client.KeepAlive(ctx, server.WorkerID, server.Cookie)
	require.True(t, errors.As(err, &brokerErr))
	assert.Equal(t, http.StatusOK, brokerErr.StatusCode)
	assert.Equal(t, "Failed to find worker with specified ID.", brokerErr.Message)
}

func TestClient_RejectedRequests(t *testing.T) {
	client := setupBrokerServer(t)
	ctx := context.Background()

	_, err := client.Register(ctx, RegisterRequest{})
	var brokerErr *BrokerError
	require.True(t, errors.As(err, &brokerErr))
	assert.Equal(t, http.StatusBadRequest, brokerErr.StatusCode)
	assert.Equal(t, "hostname is required", brokerErr.Message)

	worker, err := client.Register(ctx, RegisterRequest{Hostname: "w"})
	require.NoError(t, err)

	_, err = client.GetWork(ctx, worker.WorkerID, worker.Cookie, "both")
	require.True(t, errors.As(err, &brokerErr))
	assert.Equal(t, http.StatusBadRequest, brokerErr.StatusCode)
	assert.Equal(t, "Unsupported mode.", brokerErr.Message)
}
