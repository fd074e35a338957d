package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/veilshare-inc/veilshare-engine/pkg/ledger"
)

// PostgresImage is the image used for ledger integration tests.
const PostgresImage = "postgres:16-alpine"

// LedgerDB holds a shared PostgreSQL container with the ledger schema
// migrated, reused across all integration tests in a run.
type LedgerDB struct {
	Container testcontainers.Container
	ConnStr   string
}

var (
	sharedLedgerDB     *LedgerDB
	sharedLedgerDBOnce sync.Once
	sharedLedgerDBErr  error
)

// GetLedgerDB returns a shared migrated PostgreSQL database for integration
// tests. Requires Docker; skipped in short mode.
func GetLedgerDB(t *testing.T) *LedgerDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedLedgerDBOnce.Do(func() {
		sharedLedgerDB, sharedLedgerDBErr = setupLedgerDB()
	})

	if sharedLedgerDBErr != nil {
		t.Fatalf("Failed to setup ledger database: %v", sharedLedgerDBErr)
	}

	return sharedLedgerDB
}

func setupLedgerDB() (*LedgerDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "veilshare_ledger_test",
			"POSTGRES_USER":     "veilshare",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://veilshare:test_password@%s:%s/veilshare_ledger_test?sslmode=disable",
		host, port.Port())

	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	// Retry while the container finishes initializing.
	for i := 0; i < 10; i++ {
		if err = sqlDB.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("database did not become ready: %w", err)
	}

	if err := ledger.RunMigrations(sqlDB, migrationsPath(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &LedgerDB{
		Container: container,
		ConnStr:   connStr,
	}, nil
}

// migrationsPath resolves the migrations directory relative to this source
// file, so integration tests work regardless of the working directory.
func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
