package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/church-events/internal/config"
)

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	require.Error(t, err)
}

func TestConnectSQLiteAppliesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "church.db")
	db, err := Connect(context.Background(), config.DatabaseConfig{Driver: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"events", "registrations", "users", "refresh_tokens"} {
		assertTableExists(t, db, table)
	}

	// Running the schema again must be a no-op.
	require.NoError(t, Migrate(context.Background(), db, "sqlite"))
}

func TestMigrateUnknownDriver(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = Migrate(context.Background(), db, "oracle")
	require.Error(t, err)
}

func TestSQLiteEnforcesOccupancyCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "church.db")
	db, err := Connect(context.Background(), config.DatabaseConfig{Driver: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`INSERT INTO events (id, slug, title, description, capacity, current_registrations, created_at, updated_at)
		VALUES ('e1', 'e1', 'Retreat', '', 1, 2, '2026-01-01 00:00:00', '2026-01-01 00:00:00')`)
	assert.Error(t, err)
}

func assertTableExists(t *testing.T, db *sql.DB, table string) {
	t.Helper()
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
	require.NoError(t, err, table)
	assert.Equal(t, table, name)
}
