package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

// MigrationRunner applies the SQL files under migrations/ to PostgreSQL.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner opens the migration source and target database.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}
	return &MigrationRunner{migrate: m, log: logger}, nil
}

// Up applies every pending migration.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	if err := mr.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mr.log.Debug("Schema is up to date")
			return nil
		}
		return fmt.Errorf("running migrations up: %w", err)
	}
	mr.logVersion("Schema migrated")
	return nil
}

// Rollback reverts the last steps migrations.
func (mr *MigrationRunner) Rollback(ctx context.Context, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	if err := mr.migrate.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mr.log.Info("Nothing to roll back")
			return nil
		}
		return fmt.Errorf("rolling back %d migration(s): %w", steps, err)
	}
	mr.logVersion("Schema rolled back")
	return nil
}

func (mr *MigrationRunner) logVersion(msg string) {
	version, dirty, err := mr.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		mr.log.WithField("version", 0).Info(msg)
		return
	}
	if err != nil {
		mr.log.WithError(err).Warn("Could not read schema version")
		return
	}
	mr.log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info(msg)
}

// Migrate brings the schema at databaseURL up to date. A dirty schema is
// refused rather than forced.
func Migrate(ctx context.Context, databaseURL, migrationsPath string, logger *logrus.Logger) error {
	mr, err := NewMigrationRunner(databaseURL, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer mr.closeLogged()

	version, dirty, err := mr.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is at dirty migration version %d; fix it manually before starting", version)
	}
	return mr.Up(ctx)
}

// RollbackSteps reverts the last steps migrations at databaseURL.
func RollbackSteps(ctx context.Context, databaseURL, migrationsPath string, steps int, logger *logrus.Logger) error {
	mr, err := NewMigrationRunner(databaseURL, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer mr.closeLogged()
	return mr.Rollback(ctx, steps)
}

// Version returns the current schema version and whether it is dirty.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Close releases the source and database handles.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}

func (mr *MigrationRunner) closeLogged() {
	if err := mr.Close(); err != nil {
		mr.log.WithError(err).Warn("Failed to close migration runner")
	}
}
