package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/vaultestim/vaultestim/internal/storage/migrations"
)

// MigrationManager applies the embedded schema and data migrations.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager over db.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	goose.SetBaseFS(migrations.FS)
	return &MigrationManager{db: db}
}

func (mm *MigrationManager) dialect() error {
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations.
func (mm *MigrationManager) Up(ctx context.Context) error {
	if err := mm.dialect(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, mm.db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Down rolls back the last migration.
func (mm *MigrationManager) Down(ctx context.Context) error {
	if err := mm.dialect(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, mm.db, "."); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (mm *MigrationManager) Version(ctx context.Context) (int64, error) {
	if err := mm.dialect(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, mm.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	return v, nil
}

// Migrate applies all pending migrations to db.
func Migrate(ctx context.Context, db *sql.DB) error {
	return NewMigrationManager(db).Up(ctx)
}
