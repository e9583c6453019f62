package testutils

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/dcbradley/netblast/config"
	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/db"
	"github.com/dcbradley/netblast/models"
)

// TestSchema is the schema name repositories use against the SQLite test database
const TestSchema = "main"

// NewTestDB opens a private in-memory SQLite database with migrations applied.
// It is closed when the test finishes.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:netblast-%s?mode=memory&cache=shared", uuid.New().String())
	dbConn, err := db.NewConnection(config.DriverSQLite, dsn)
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { _ = dbConn.Close() })

	require.NoError(t, db.RunMigrations(dbConn, config.DriverSQLite, dsn, TestSchema), "Failed to migrate test database")
	return dbConn
}

// NewPostgresTestDB migrates a throwaway schema in the Postgres database at DB_URL
// and returns the connection with the schema name. The schema is dropped when the
// test finishes. Tests are skipped when DB_URL is not a postgres URL.
func NewPostgresTestDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()

	databaseURL := os.Getenv("DB_URL")
	if !strings.HasPrefix(databaseURL, "postgres://") && !strings.HasPrefix(databaseURL, "postgresql://") {
		t.Skip("DB_URL is not set to a postgres:// URL, skipping Postgres test")
	}

	dbConn, err := db.NewConnection(config.DriverPostgres, databaseURL)
	require.NoError(t, err, "Failed to connect to test database")

	schema := "test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	t.Cleanup(func() {
		_, _ = dbConn.Exec("DROP SCHEMA IF EXISTS " + pq.QuoteIdentifier(schema) + " CASCADE")
		_ = dbConn.Close()
	})

	require.NoError(t, db.RunMigrations(dbConn, config.DriverPostgres, databaseURL, schema), "Failed to migrate test schema")
	return dbConn, schema
}

// FakeClock is a settable clock for liveness tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start.UTC()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequentialCredentials returns a credential source yielding cred-0000..., cred-0001..., padded to 20 chars
func SequentialCredentials() core.CredentialSource {
	var mu sync.Mutex
	n := 0
	return core.CredentialSourceFunc(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		credential := fmt.Sprintf("cred%016d", n)
		n++
		return credential, nil
	})
}

// WorkerOption tweaks a fixture worker before it is inserted
type WorkerOption func(*models.Worker)

func WithServerPort(port int) WorkerOption {
	return func(w *models.Worker) { w.ServerPort = &port }
}

func WithIP4(ip string) WorkerOption {
	return func(w *models.Worker) { w.IP4 = &ip }
}

func WithIP6(ip string) WorkerOption {
	return func(w *models.Worker) { w.IP6 = &ip }
}

func WithLastContactAt(at time.Time) WorkerOption {
	return func(w *models.Worker) { w.LastContactAt = at.UTC() }
}

func WithClosedAt(at time.Time) WorkerOption {
	return func(w *models.Worker) {
		closed := at.UTC()
		w.ClosedAt = &closed
	}
}

// CreateTestWorker inserts a worker directly through the repository
func CreateTestWorker(
	t *testing.T,
	workersRepo *db.SQLWorkersRepository,
	now time.Time,
	opts ...WorkerOption,
) *models.Worker {
	t.Helper()

	worker := &models.Worker{
		ID:            core.NewID("wk"),
		Hostname:      "test-" + uuid.New().String()[:8],
		Credential:    uuid.New().String()[:core.CredentialLength],
		CreatedAt:     now.UTC(),
		LastContactAt: now.UTC(),
	}
	for _, opt := range opts {
		opt(worker)
	}

	err := workersRepo.CreateWorker(context.Background(), worker)
	require.NoError(t, err, "Failed to create test worker")
	return worker
}
