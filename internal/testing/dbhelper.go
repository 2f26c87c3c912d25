// Package testing holds helpers shared by integration tests: a PostgreSQL
// server (from PGSTITCH_TEST_CONN or a testcontainer), per-test schemas and
// scripted approvers.
package testing

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/pgstitch/internal/testinfra"
)

// TestConnEnvVar overrides the auto-started container.
const TestConnEnvVar = "PGSTITCH_TEST_CONN"

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		container, err := testinfra.StartSimplePostgres(context.Background())
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test database connection string.
// Priority: PGSTITCH_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv(TestConnEnvVar); connString != "" {
		return connString
	}
	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", TestConnEnvVar, err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString.
func RequireDatabase(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// NewTestPool opens a pool that is closed when the test completes.
func NewTestPool(t *testing.T, connString string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// NewTestPoolWithSearchPath opens a pool whose sessions resolve unqualified
// names through schemas, in order.
func NewTestPoolWithSearchPath(t *testing.T, connString string, schemas ...string) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	idents := make([]string, len(schemas))
	for i, s := range schemas {
		idents[i] = pgx.Identifier{s}.Sanitize()
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = strings.Join(idents, ", ")
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// CreateTestSchema creates a uniquely named schema and drops it, with
// everything in it, when the test completes.
func CreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	name := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ident := pgx.Identifier{name}.Sanitize()
	if _, err := pool.Exec(context.Background(), "CREATE SCHEMA "+ident); err != nil {
		t.Fatalf("Failed to create schema %s: %v", name, err)
	}
	t.Cleanup(func() {
		if _, err := pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+ident+" CASCADE"); err != nil {
			t.Logf("Warning: failed to drop schema %s: %v", name, err)
		}
	})
	return name
}

// ForceApprover approves every request.
type ForceApprover struct{}

// RequestApproval always returns true.
func (a *ForceApprover) RequestApproval(ctx context.Context, table string) (bool, error) {
	return true, nil
}

// RecordingApprover answers with Approve and records the tables it was asked about.
type RecordingApprover struct {
	Approve bool
	Err     error

	mu     sync.Mutex
	tables []string
}

// RequestApproval records table and returns the scripted answer.
func (a *RecordingApprover) RequestApproval(ctx context.Context, table string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tables = append(a.tables, table)
	return a.Approve, a.Err
}

// Requests returns the tables approval was requested for.
func (a *RecordingApprover) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.tables...)
}
