// Integration tests for schema migration management. They require a live
// PostgreSQL instance, provided via INTEGRATION_TEST_DB_URL.
//
//go:build integration

package postgres_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/postgres"
)

const testMigrationsPath = "file://../../../../migrations"

func getTestDBURL(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("INTEGRATION_TEST_DB_URL")
	if dbURL == "" {
		t.Skip("INTEGRATION_TEST_DB_URL not set; skipping integration test")
	}
	return dbURL
}

func TestMigrateUpAndStatus(t *testing.T) {
	dbURL := getTestDBURL(t)

	require.NoError(t, postgres.Migrate(dbURL, testMigrationsPath))

	version, dirty, err := postgres.MigrationStatus(dbURL, testMigrationsPath)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.GreaterOrEqual(t, version, uint(1))

	// Re-running with nothing pending is not an error.
	require.NoError(t, postgres.Migrate(dbURL, testMigrationsPath))
}

func TestRollbackMigration(t *testing.T) {
	dbURL := getTestDBURL(t)

	require.NoError(t, postgres.Migrate(dbURL, testMigrationsPath))
	require.NoError(t, postgres.RollbackMigration(dbURL, testMigrationsPath, 1))

	version, dirty, err := postgres.MigrationStatus(dbURL, testMigrationsPath)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(0), version)

	require.NoError(t, postgres.Migrate(dbURL, testMigrationsPath))
}

func TestRollbackMigrationRejectsNonPositiveSteps(t *testing.T) {
	err := postgres.RollbackMigration("postgres://ignored", testMigrationsPath, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps must be greater than 0")
}
