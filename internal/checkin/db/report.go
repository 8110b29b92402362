package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun/dialect"

	"checkin-gate/internal/models"
)

const (
	SnapshotSQLite = "sqlite"
	SnapshotJSON   = "json"
)

// ListGuests orders arrived guests first, earliest arrival first.
func (d *DB) ListGuests(ctx context.Context) ([]models.Guest, error) {
	var guests []models.Guest
	err := d.Bun.NewSelect().
		Model(&guests).
		OrderExpr("entrata DESC").
		OrderExpr("ora_ingresso ASC").
		OrderExpr("id ASC").
		Scan(ctx)
	return guests, err
}

func (d *DB) Stats(ctx context.Context) (models.GateStats, error) {
	var stats models.GateStats
	var err error

	if stats.Guests, err = d.Bun.NewSelect().Model((*models.Guest)(nil)).Count(ctx); err != nil {
		return stats, err
	}
	if stats.Arrived, err = d.Bun.NewSelect().Model((*models.Guest)(nil)).Where("entrata = ?", true).Count(ctx); err != nil {
		return stats, err
	}
	if stats.Tokens, err = d.Bun.NewSelect().Model((*models.Token)(nil)).Count(ctx); err != nil {
		return stats, err
	}
	if stats.UsedTokens, err = d.Bun.NewSelect().Model((*models.Token)(nil)).Where("used = ?", true).Count(ctx); err != nil {
		return stats, err
	}
	stats.PendingCount = stats.Guests - stats.Arrived
	return stats, nil
}

// Snapshot exports the persisted state. SQLite stores are copied with
// VACUUM INTO so the file is consistent; other stores are dumped as JSON.
func (d *DB) Snapshot(ctx context.Context) ([]byte, string, error) {
	if d.Bun.Dialect().Name() == dialect.SQLite {
		data, err := d.sqliteSnapshot(ctx)
		return data, SnapshotSQLite, err
	}

	guests, err := d.ListGuests(ctx)
	if err != nil {
		return nil, "", err
	}
	tokens, err := d.ListTokens(ctx)
	if err != nil {
		return nil, "", err
	}
	data, err := json.MarshalIndent(struct {
		Guests []models.Guest `json:"guests"`
		Tokens []models.Token `json:"tokens"`
	}{guests, tokens}, "", "  ")
	return data, SnapshotJSON, err
}

func (d *DB) sqliteSnapshot(ctx context.Context) ([]byte, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("gate-snapshot-%d.sqlite", time.Now().UnixNano()))
	defer os.Remove(path)

	if _, err := d.Bun.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}
	return os.ReadFile(path)
}
