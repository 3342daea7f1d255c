package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/stwalsh4118/zoning-engine/internal/logger"
)

// RunMigrations applies pending migrations from migrationsPath. It is safe to
// call on every startup; an up-to-date schema is not an error.
func (db *Database) RunMigrations(migrationsPath string, log *logger.Logger) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Warn("Failed to close migration source", map[string]interface{}{"error": srcErr.Error()})
		}
		if dbErr != nil {
			log.Warn("Failed to close migration database", map[string]interface{}{"error": dbErr.Error()})
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No migrations to apply (database up-to-date)", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	log.Info("Applied migrations successfully", map[string]interface{}{"version": version})
	return nil
}
