// ABOUTME: Tests for the outreach MCP tool handlers
// ABOUTME: Calls handlers directly against a temporary SQLite store
package handlers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/sync"
)

func setupTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.OpenDatabase(filepath.Join(t.TempDir(), "outreach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type emptySource struct{}

func (emptySource) Name() string { return "empty" }

func (emptySource) Fetch(context.Context, time.Time) ([]sync.Item, error) { return nil, nil }

func newRunner(store *db.Store) *sync.Runner {
	runner := sync.NewRunner(sync.NewOrchestrator(sync.Options{Store: store}))
	runner.Register("empty", func(context.Context) (sync.Source, error) { return emptySource{}, nil })
	return runner
}

func TestAddAndFindProspects(t *testing.T) {
	store := setupTestStore(t)
	h := NewProspectHandlers(store)
	ctx := context.Background()

	_, out, err := h.AddProspect(ctx, nil, AddProspectInput{Name: "Ada Lovelace", Company: "Engines Ltd", Email: "ada@engines.test"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "new", out.Status)

	_, _, err = h.AddProspect(ctx, nil, AddProspectInput{Name: "Ada Again", Email: "ada@engines.test"})
	assert.ErrorIs(t, err, db.ErrConflict)

	_, _, err = h.AddProspect(ctx, nil, AddProspectInput{Name: "  "})
	assert.Error(t, err)

	_, found, err := h.FindProspects(ctx, nil, FindProspectsInput{Query: "engines"})
	require.NoError(t, err)
	require.Len(t, found.Prospects, 1)
	assert.Equal(t, "Ada Lovelace", found.Prospects[0].Name)

	_, found, err = h.FindProspects(ctx, nil, FindProspectsInput{Status: "client"})
	require.NoError(t, err)
	assert.Empty(t, found.Prospects)

	_, _, err = h.FindProspects(ctx, nil, FindProspectsInput{Status: "warm"})
	assert.Error(t, err)
}

func TestUpdateProspectStatus(t *testing.T) {
	store := setupTestStore(t)
	h := NewProspectHandlers(store)
	ctx := context.Background()

	_, added, err := h.AddProspect(ctx, nil, AddProspectInput{Name: "Grace", Email: "grace@navy.test"})
	require.NoError(t, err)

	_, _, err = h.UpdateProspectStatus(ctx, nil, UpdateProspectStatusInput{ID: added.ID, Status: "contacted", NextAction: "Email"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next_action_due_date, action_channel, action_objective")

	_, out, err := h.UpdateProspectStatus(ctx, nil, UpdateProspectStatusInput{
		ID:              added.ID,
		Status:          "contacted",
		NextAction:      "Email intro",
		NextActionDue:   "2030-01-10",
		ActionChannel:   "email",
		ActionObjective: "Book a call",
	})
	require.NoError(t, err)
	assert.Equal(t, "contacted", out.Status)

	// Stored next action carries into later transitions.
	_, out, err = h.UpdateProspectStatus(ctx, nil, UpdateProspectStatusInput{ID: added.ID, Status: "Responded"})
	require.NoError(t, err)
	assert.Equal(t, "responded", out.Status)
	assert.Equal(t, "Email intro", out.NextAction)

	_, _, err = h.UpdateProspectStatus(ctx, nil, UpdateProspectStatusInput{ID: added.ID, Status: "lost", NextActionDue: "soon"})
	assert.Error(t, err)
	_, _, err = h.UpdateProspectStatus(ctx, nil, UpdateProspectStatusInput{ID: "nope", Status: "lost"})
	assert.Error(t, err)
	_, _, err = h.UpdateProspectStatus(ctx, nil, UpdateProspectStatusInput{ID: "00000000-0000-0000-0000-000000000001", Status: "lost"})
	assert.Error(t, err)
}

func TestTaskTools(t *testing.T) {
	store := setupTestStore(t)
	h := NewTaskHandlers(store)
	h.now = func() time.Time { return time.Date(2030, 5, 6, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	_, task, err := h.AddTask(ctx, nil, AddTaskInput{Text: "Call Ada"})
	require.NoError(t, err)
	assert.Equal(t, "2030-05-06", task.DateEntered)

	_, _, err = h.AddTask(ctx, nil, AddTaskInput{Text: ""})
	assert.Error(t, err)

	_, done, err := h.CompleteTask(ctx, nil, CompleteTaskInput{ID: task.ID})
	require.NoError(t, err)
	assert.True(t, done.Completed)

	_, _, err = h.CompleteTask(ctx, nil, CompleteTaskInput{ID: "00000000-0000-0000-0000-000000000001"})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestPlanDay(t *testing.T) {
	store := setupTestStore(t)
	h := NewTaskHandlers(store)
	h.now = func() time.Time { return time.Date(2030, 5, 6, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	_, empty, err := h.PlanDay(ctx, nil, PlanDayInput{})
	require.NoError(t, err)
	assert.Equal(t, "2030-05-06", empty.Date)
	assert.Empty(t, empty.Tasks)

	_, plan, err := h.PlanDay(ctx, nil, PlanDayInput{OneThing: "Close Engines", Tasks: []string{"Send proposal", "Call Bob"}})
	require.NoError(t, err)
	assert.Equal(t, "Close Engines", plan.OneThing)
	require.Len(t, plan.Tasks, 2)
	assert.NotEmpty(t, plan.Tasks[0].ID)
	assert.Equal(t, "Send proposal", plan.Tasks[0].Text)

	_, reread, err := h.PlanDay(ctx, nil, PlanDayInput{Date: "2030-05-06"})
	require.NoError(t, err)
	assert.Equal(t, plan, reread)

	_, _, err = h.PlanDay(ctx, nil, PlanDayInput{Date: "tomorrow", OneThing: "x"})
	assert.Error(t, err)
}

func TestUpdatePlan(t *testing.T) {
	store := setupTestStore(t)
	h := NewTaskHandlers(store)
	h.now = func() time.Time { return time.Date(2030, 5, 6, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	_, out, err := h.UpdatePlan(ctx, nil, UpdatePlanInput{Text: "one thing: Close Engines\n1: Call Bob\ntomorrow 1: Send contract\nhmm"})
	require.NoError(t, err)
	require.NotNil(t, out.Today)
	require.NotNil(t, out.Tomorrow)
	assert.Equal(t, "Close Engines", out.Today.OneThing)
	require.Len(t, out.Today.Tasks, 1)
	assert.Equal(t, "Call Bob", out.Today.Tasks[0].Text)
	assert.NotEmpty(t, out.Today.Tasks[0].ID)
	assert.Equal(t, "2030-05-07", out.Tomorrow.Date)
	assert.Equal(t, []string{"hmm"}, out.Ignored)

	_, again, err := h.UpdatePlan(ctx, nil, UpdatePlanInput{Text: "today 1: Call Bob at noon"})
	require.NoError(t, err)
	assert.Nil(t, again.Tomorrow)
	assert.Equal(t, out.Today.Tasks[0].ID, again.Today.Tasks[0].ID)
	assert.Equal(t, "Call Bob at noon", again.Today.Tasks[0].Text)

	_, _, err = h.UpdatePlan(ctx, nil, UpdatePlanInput{Text: "nothing useful"})
	assert.Error(t, err)
}

func TestReviewQueueAndApply(t *testing.T) {
	store := setupTestStore(t)
	h := NewSyncHandlers(store, newRunner(store))
	ctx := context.Background()

	event := &models.ExternalEvent{
		Source:         "gmail",
		ExternalID:     "m-1",
		Title:          "Re: pricing",
		NeedsReview:    true,
		ProposedStatus: models.StatusResponded,
		Reasons:        []string{"no_match"},
	}
	require.NoError(t, store.CreateEvent(ctx, event))

	_, queue, err := h.ReviewQueue(ctx, nil, ReviewQueueInput{})
	require.NoError(t, err)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, event.ID.String(), queue.Items[0].EventID)
	assert.Equal(t, "responded", queue.Items[0].ProposedStatus)

	_, _, err = h.ApplyReview(ctx, nil, ApplyReviewInput{EventID: event.ID.String(), Status: "warm"})
	assert.Error(t, err)

	_, contact, err := h.ApplyReview(ctx, nil, ApplyReviewInput{EventID: event.ID.String(), Name: "Bob", Email: "bob@widgets.test"})
	require.NoError(t, err)
	assert.Equal(t, "responded", contact.Status)

	_, queue, err = h.ReviewQueue(ctx, nil, ReviewQueueInput{})
	require.NoError(t, err)
	assert.Empty(t, queue.Items)
}

func TestRunSync(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, out, err := NewSyncHandlers(store, newRunner(store)).RunSync(ctx, nil, RunSyncInput{Source: "Empty"})
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, out.Status)
	assert.NotEmpty(t, out.RunID)

	_, _, err = NewSyncHandlers(store, newRunner(store)).RunSync(ctx, nil, RunSyncInput{Source: "imap"})
	assert.ErrorIs(t, err, sync.ErrUnknownSource)

	_, _, err = NewSyncHandlers(store, nil).RunSync(ctx, nil, RunSyncInput{Source: "empty"})
	assert.Error(t, err)
}
