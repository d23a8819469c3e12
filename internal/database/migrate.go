package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all pending migrations found under dir (e.g. "migrations").
func RunMigrations(dir, dbURL string) error {
	if dbURL == "" {
		return fmt.Errorf("database URL not set")
	}

	slog.Info("initializing database migrations", "dir", dir)

	m, err := migrate.New("file://"+dir, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		slog.Warn("could not get migration version", "error", err)
	}

	// A dirty version means a previous run died mid-migration; force it clean and retry.
	if dirty {
		slog.Warn("database in dirty state, forcing clean", "version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			version, _, _ := m.Version()
			slog.Info("database is up to date", "version", version)
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ = m.Version()
	slog.Info("migrations complete", "version", version)
	return nil
}

// RollbackMigration rolls back the last migration
func RollbackMigration(dir, dbURL string) error {
	m, err := migrate.New("file://"+dir, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	version, _, _ := m.Version()
	slog.Info("rolled back migration", "version", version)
	return nil
}
