package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/pkg/config"
)

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// NewMigrator opens a dedicated connection for migrations found at the root of source.
// The migrate driver closes its database on Close, so it never shares the request pool.
func NewMigrator(cfg config.DatabaseConfig, source fs.FS, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return &Migrator{m: m, logger: logger}, nil
}

// Up applies all pending migrations. No pending migrations is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	m.logger.Info("schema migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	return nil
}

// Close releases the migration source and connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}
