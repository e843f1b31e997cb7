package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return db
}

func getMigrationsPath(t *testing.T) string {
	projectRoot, err := filepath.Abs("../..")
	require.NoError(t, err)
	return filepath.Join(projectRoot, "migrations")
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func columnExists(t *testing.T, db *sql.DB, table, column string) bool {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		)`, table, column).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestRunMigrations(t *testing.T) {
	db := getTestDB(t)
	path := getMigrationsPath(t)

	require.NoError(t, Run(db, path))
	// повторный запуск не меняет схему
	require.NoError(t, Run(db, path))

	for _, table := range []string{"accounts", "transactions", "slot_pools", "slot_claims", "refund_attempts"} {
		assert.Truef(t, tableExists(t, db, table), "table %s should exist", table)
	}

	assert.True(t, columnExists(t, db, "accounts", "plan_tier"))

	require.NoError(t, Rollback(db, path, 1))
	assert.False(t, columnExists(t, db, "accounts", "plan_tier"))
	assert.True(t, tableExists(t, db, "refund_attempts"))

	require.NoError(t, Rollback(db, path, 1))
	assert.False(t, tableExists(t, db, "refund_attempts"))
	assert.True(t, tableExists(t, db, "accounts"))
}

func TestRollback_InvalidSteps(t *testing.T) {
	err := Rollback(nil, "/tmp", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps must be positive")
}

func TestRun_BadPath(t *testing.T) {
	db := getTestDB(t)
	err := Run(db, "/nonexistent/migrations")
	assert.Error(t, err)
}
