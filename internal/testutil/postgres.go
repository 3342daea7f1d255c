// Package testutil provides shared fixtures for integration tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stwalsh4118/zoning-engine/internal/config"
	"github.com/stwalsh4118/zoning-engine/internal/database"
	"github.com/stwalsh4118/zoning-engine/internal/logger"
)

// PostgresImage is the image used for integration tests.
const PostgresImage = "postgres:16-alpine"

// TestDB holds a shared PostgreSQL container with migrations applied.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.Database
	Config    config.DatabaseConfig
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a PostgreSQL container shared by every test in the run.
// Tests are skipped in short mode because a Docker daemon is required.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

// Reset empties every table so tests start from a clean slate.
func (tdb *TestDB) Reset(t *testing.T) {
	t.Helper()
	_, err := tdb.DB.Pool.Exec(context.Background(),
		`TRUNCATE analyses, analysis_violations, ordinance_cache, district_versions`)
	if err != nil {
		t.Fatalf("Failed to reset test database: %v", err)
	}
}

// MigrationsPath returns the absolute path of the repository migrations directory.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "zoning_test",
			"POSTGRES_USER":     "zoning",
			"POSTGRES_PASSWORD": "test_password",
		},
		// Postgres restarts once after initdb, so the ready line appears twice
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

	cfg := config.DatabaseConfig{
		Host:     host,
		Port:     port.Port(),
		Name:     "zoning_test",
		User:     "zoning",
		Password: "test_password",
		PoolMin:  1,
		PoolMax:  5,
	}

	var db *database.Database
	for i := 0; i < 10; i++ {
		db, err = database.NewPostgresPool(ctx, cfg)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if err := db.RunMigrations(MigrationsPath(), logger.Nop()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{Container: container, DB: db, Config: cfg}, nil
}
