package database_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-gate/internal/config"
	"checkin-gate/internal/database"
	"checkin-gate/internal/database/migrations"
	"checkin-gate/internal/logger"
	"checkin-gate/internal/models"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()
	log := logger.NewWriterLogger(io.Discard)

	bunDB, err := database.Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, DSN: "file::memory:"}, log)
	require.NoError(t, err)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, log)
	require.NoError(t, runner.RunMigrations(ctx))
	// second run is a no-op
	require.NoError(t, runner.RunMigrations(ctx))

	guest := models.Guest{ID: "G1", Name: "Mario", Room: "A"}
	_, err = bunDB.NewInsert().Model(&guest).Exec(ctx)
	require.NoError(t, err)

	count, err := bunDB.NewSelect().Model((*models.Guest)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// tokens must reference an existing guest
	orphan := models.Token{Token: "deadbeef", GuestID: "missing"}
	_, err = bunDB.NewInsert().Model(&orphan).Exec(ctx)
	assert.Error(t, err)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := database.Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, logger.NewWriterLogger(io.Discard))
	assert.Error(t, err)
}
