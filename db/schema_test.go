// ABOUTME: Tests for database schema creation
// ABOUTME: Uses in-memory SQLite for fast isolated tests
package db

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSchema(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, InitSchema(db, DialectSQLite))
	// Applying twice must be harmless.
	require.NoError(t, InitSchema(db, DialectSQLite))

	for _, table := range []string{"contacts", "tasks", "daily_plans", "external_events", "action_items", "sync_runs", "sync_state"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s not found", table)
	}

	var indexName string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_contacts_email'").Scan(&indexName)
	assert.NoError(t, err)
}

func TestRenderSchemaPostgresTypes(t *testing.T) {
	pg := renderSchema(DialectPostgres)
	assert.Contains(t, pg, "TIMESTAMPTZ")
	assert.NotContains(t, pg, "DATETIME")
	assert.False(t, strings.Contains(pg, "{{ts}}"))
}
