// Package testhelpers provides fixtures and containers for testing herdwise components.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// WarehouseImage is the PostgreSQL image used as the integration warehouse.
const WarehouseImage = "postgres:16-alpine"

const (
	warehouseUser     = "herdwise"
	warehousePassword = "test_password"
	warehouseDatabase = "swine_warehouse"
)

// WarehouseDB holds a shared warehouse container and connection pool.
type WarehouseDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
}

// Config returns the store config map the postgres adapter accepts.
func (w *WarehouseDB) Config() map[string]any {
	return map[string]any{
		"host":     w.Host,
		"port":     w.Port,
		"user":     warehouseUser,
		"password": warehousePassword,
		"database": warehouseDatabase,
		"ssl_mode": "disable",
	}
}

var (
	sharedWarehouse     *WarehouseDB
	sharedWarehouseOnce sync.Once
	sharedWarehouseErr  error
)

// GetWarehouseDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetWarehouseDB(t *testing.T) *WarehouseDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedWarehouseOnce.Do(func() {
		sharedWarehouse, sharedWarehouseErr = setupWarehouseDB()
	})

	if sharedWarehouseErr != nil {
		t.Fatalf("Failed to setup warehouse database: %v", sharedWarehouseErr)
	}

	return sharedWarehouse
}

func setupWarehouseDB() (*WarehouseDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        WarehouseImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       warehouseDatabase,
			"POSTGRES_USER":     warehouseUser,
			"POSTGRES_PASSWORD": warehousePassword,
		},
		// postgres logs readiness twice: once for the init server, once for the real one
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

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		warehouseUser, warehousePassword, host, port.Port(), warehouseDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &WarehouseDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port.Int(),
	}, nil
}
