package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"checkin-gate/internal/logger"
)

// Migrations is filled by the numbered files in this package.
var Migrations = migrate.NewMigrations()

// Runner applies the gate schema.
type Runner struct {
	bunDB    *bun.DB
	log      *logger.Logger
	migrator *migrate.Migrator
}

func NewRunner(bunDB *bun.DB, log *logger.Logger) *Runner {
	return &Runner{
		bunDB:    bunDB,
		log:      log,
		migrator: migrate.NewMigrator(bunDB, Migrations),
	}
}

// RunMigrations applies every pending migration under the migration lock.
func (r *Runner) RunMigrations(ctx context.Context) error {
	if err := r.migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to init migration tables: %w", err)
	}
	if err := r.migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer r.migrator.Unlock(ctx)

	group, err := r.migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	if group.IsZero() {
		r.log.Info("MIGRATE", "No new migrations to run (database is up to date)")
		return nil
	}
	r.log.Info("MIGRATE", fmt.Sprintf("Migrated to %s", group))
	return nil
}

// Rollback undoes the last applied migration group.
func (r *Runner) Rollback(ctx context.Context) error {
	if err := r.migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer r.migrator.Unlock(ctx)

	group, err := r.migrator.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	if group.IsZero() {
		r.log.Info("MIGRATE", "No groups to roll back")
		return nil
	}
	r.log.Info("MIGRATE", fmt.Sprintf("Rolled back %s", group))
	return nil
}
