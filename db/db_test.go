package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := OpenDatabase(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	// Verify database file exists
	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file was not created")

	var count int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count))
	assert.GreaterOrEqual(t, count, 7)

	// Verify WAL mode
	var mode string
	require.NoError(t, store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	assert.Equal(t, DialectSQLite, store.Dialect())
}

func TestOpenDatabaseInvalidPath(t *testing.T) {
	_, err := OpenDatabase("/invalid/nonexistent/path/that/cannot/be/created/test.db")
	assert.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "mysql"}, nil)
	assert.Error(t, err)
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	_, err := Open(Options{Driver: "postgres"}, nil)
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Store{dialect: DialectSQLite}
	assert.Equal(t, "SELECT * FROM t WHERE a = ?", lite.rebind("SELECT * FROM t WHERE a = ?"))
}

func TestPingClosedStoreIsUnavailable(t *testing.T) {
	store, err := OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("OUTREACH_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("OUTREACH_TEST_POSTGRES_URL not set")
	}

	store, err := Open(Options{Driver: "postgres", URL: url}, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	plan, err := store.GetOrCreatePlan(ctx, "2031-01-02")
	require.NoError(t, err)
	again, err := store.GetOrCreatePlan(ctx, "2031-01-02")
	require.NoError(t, err)
	assert.Equal(t, plan.ID, again.ID)
}
