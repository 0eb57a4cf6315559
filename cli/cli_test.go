package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
)

func testDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("OUTREACH_DB_DRIVER", "sqlite")
	t.Setenv("LEARNING_CONFIG", filepath.Join(dir, "learning.yaml"))
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	return filepath.Join(dir, "outreach.db")
}

func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	app := NewApp("test")
	defer app.Close()

	var buf bytes.Buffer
	root := NewRootCommand(app)
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--db-path", dbPath}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func mustRun(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	output, err := run(t, dbPath, args...)
	require.NoError(t, err, output)
	return output
}

func onlyContact(t *testing.T, dbPath string) models.Contact {
	t.Helper()
	store, err := db.OpenDatabase(dbPath)
	require.NoError(t, err)
	defer store.Close()

	contacts, err := store.ListContacts(context.Background(), db.ContactFilter{})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	return contacts[0]
}

func TestProspectCommands(t *testing.T) {
	dbPath := testDB(t)

	output := mustRun(t, dbPath, "prospect", "add", "Ada Lovelace", "--email", "ada@example.com", "--company", "Analytical Engines")
	assert.Contains(t, output, "Added Ada Lovelace")
	assert.Contains(t, output, "as new")

	output = mustRun(t, dbPath, "prospect", "list")
	assert.Contains(t, output, "Ada Lovelace")
	assert.Contains(t, output, "Analytical Engines")

	c := onlyContact(t, dbPath)
	prefix := c.ID.String()[:8]

	_, err := run(t, dbPath, "prospect", "status", prefix, "contacted")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required fields for active deal")

	output = mustRun(t, dbPath, "prospect", "status", prefix, "contacted",
		"--next-action", "Send deck", "--due", "2030-01-15", "--channel", "email", "--objective", "Book a call")
	assert.Contains(t, output, "Ada Lovelace is now contacted")

	c = onlyContact(t, dbPath)
	assert.Equal(t, models.StatusContacted, c.Status)
	assert.Equal(t, "Send deck", c.NextAction)

	output = mustRun(t, dbPath, "prospect", "show", c.ID.String())
	assert.Contains(t, output, "Book a call")

	_, err = run(t, dbPath, "prospect", "status", prefix, "bogus")
	require.Error(t, err)

	output = mustRun(t, dbPath, "prospect", "delete", prefix)
	assert.Contains(t, output, "Deleted Ada Lovelace")
	output = mustRun(t, dbPath, "prospect", "list")
	assert.Contains(t, output, "No prospects found")
}

func TestProspectAddRequiresNextActionForActiveDeal(t *testing.T) {
	dbPath := testDB(t)

	_, err := run(t, dbPath, "prospect", "add", "Grace Hopper", "--status", "responded", "--next-action", "Call")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next_action_due_date")

	mustRun(t, dbPath, "prospect", "add", "Grace Hopper", "--status", "lost")
	assert.Equal(t, models.StatusLost, onlyContact(t, dbPath).Status)
}

func TestProspectUnknownID(t *testing.T) {
	dbPath := testDB(t)

	_, err := run(t, dbPath, "prospect", "show", "deadbeef")
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestTaskCommands(t *testing.T) {
	dbPath := testDB(t)

	output := mustRun(t, dbPath, "task", "add", "Follow", "up", "with", "Acme")
	fields := strings.Fields(output)
	prefix := fields[len(fields)-1]

	output = mustRun(t, dbPath, "task", "list")
	assert.Contains(t, output, "[ ] "+prefix+"  Follow up with Acme")

	output = mustRun(t, dbPath, "task", "reschedule", prefix, "2030-02-01")
	assert.Contains(t, output, "scheduled for 2030-02-01")

	output = mustRun(t, dbPath, "task", "complete", prefix)
	assert.Contains(t, output, "Completed: Follow up with Acme")

	output = mustRun(t, dbPath, "task", "list")
	assert.Contains(t, output, "No tasks")

	output = mustRun(t, dbPath, "task", "list", "--done")
	assert.Contains(t, output, "[x] "+prefix)

	mustRun(t, dbPath, "task", "reopen", prefix)
	output = mustRun(t, dbPath, "task", "list")
	assert.Contains(t, output, "[ ] "+prefix)
}

func TestPlanCommands(t *testing.T) {
	dbPath := testDB(t)

	output := mustRun(t, dbPath, "plan", "show", "--date", "2030-03-04")
	assert.Contains(t, output, "No plan for 2030-03-04")

	output = mustRun(t, dbPath, "plan", "set", "--date", "2030-03-04",
		"--focus", "Close Acme pilot", "--item", "Send proposal", "--item", "Call Jordan")
	assert.Contains(t, output, "★ Close Acme pilot")
	assert.Contains(t, output, "1. Send proposal")
	assert.Contains(t, output, "2. Call Jordan")

	output = mustRun(t, dbPath, "plan", "show", "--date", "2030-03-04")
	assert.Contains(t, output, "2. Call Jordan")

	output = mustRun(t, dbPath, "task", "list", "--all")
	assert.Contains(t, output, "Send proposal")
}

func TestStatsCommand(t *testing.T) {
	dbPath := testDB(t)
	mustRun(t, dbPath, "prospect", "add", "Ada Lovelace")

	output := mustRun(t, dbPath, "stats")
	assert.Contains(t, output, "OUTREACH DASHBOARD")
	assert.Contains(t, output, "1 prospects")
}

func TestPlanUpdateAndRollover(t *testing.T) {
	dbPath := testDB(t)
	tomorrow := time.Now().AddDate(0, 0, 1).Format(models.DateLayout)

	output := mustRun(t, dbPath, "plan", "update", "one thing: Close Acme", "2: Call Dana", "nonsense")
	assert.Contains(t, output, "Plan for "+today())
	assert.Contains(t, output, "★ Close Acme")
	assert.Contains(t, output, "1. Call Dana")
	assert.Contains(t, output, "ignored: nonsense")

	output = mustRun(t, dbPath, "plan", "update", "tomorrow 1: Send contract")
	assert.Contains(t, output, "Plan for "+tomorrow)
	assert.Contains(t, output, "1. Send contract")

	_, err := run(t, dbPath, "plan", "update", "nonsense")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plan edits found")

	output = mustRun(t, dbPath, "plan", "rollover")
	assert.Contains(t, output, "(0 reopened)")
	assert.Contains(t, output, "1. Call Dana")

	output = mustRun(t, dbPath, "plan", "rollover", "--date", "2030-01-01")
	assert.Contains(t, output, "No plan for 2030-01-01")

	mustRun(t, dbPath, "prospect", "add", "Ada Lovelace")
	output = mustRun(t, dbPath, "stats", "--daily")
	assert.Contains(t, output, "Total prospects: 1")
	assert.Contains(t, output, "- One thing: Close Acme")
	assert.Contains(t, output, "• Call Dana")
}

func TestSyncAndReviewWithEmptyStore(t *testing.T) {
	dbPath := testDB(t)

	assert.Contains(t, mustRun(t, dbPath, "sync", "runs"), "No sync runs yet")
	assert.Contains(t, mustRun(t, dbPath, "sync", "status"), "Nothing synced yet")
	assert.Contains(t, mustRun(t, dbPath, "review", "list"), "Review queue is empty")

	_, err := run(t, dbPath, "sync", "all", "--services", "calendar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid services")

	_, err = run(t, dbPath, "review", "apply", "not-a-uuid", "--name", "Ada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid event id")
}

func TestFathomSyncWithoutKeyFailsRun(t *testing.T) {
	dbPath := testDB(t)
	t.Setenv("FATHOM_API_KEY", "")

	_, err := run(t, dbPath, "sync", "fathom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FATHOM_API_KEY")
}
