package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/outreach/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEventIsUniquePerSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	when := time.Date(2030, 5, 1, 15, 0, 0, 0, time.UTC)
	event := &models.ExternalEvent{
		Source:          "fathom",
		ExternalID:      "rec-1",
		Title:           "Acme / Us",
		OccurredAt:      &when,
		DurationMinutes: 30,
		ProposedStatus:  models.StatusCallScheduled,
		Reasons:         []string{"meeting"},
		Raw:             json.RawMessage(`{"id":"rec-1"}`),
	}
	require.NoError(t, store.CreateEvent(ctx, event))

	err := store.CreateEvent(ctx, &models.ExternalEvent{Source: "fathom", ExternalID: "rec-1"})
	assert.True(t, errors.Is(err, ErrConflict))

	// Same external id from another source is a different event.
	require.NoError(t, store.CreateEvent(ctx, &models.ExternalEvent{Source: "gmail", ExternalID: "rec-1"}))

	found, err := store.FindEventByExternalID(ctx, "fathom", "rec-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, event.ID, found.ID)
	assert.Equal(t, []string{"meeting"}, found.Reasons)
	assert.Equal(t, models.StatusCallScheduled, found.ProposedStatus)
	require.NotNil(t, found.OccurredAt)
	assert.True(t, when.Equal(*found.OccurredAt))
	assert.JSONEq(t, `{"id":"rec-1"}`, string(found.Raw))

	miss, err := store.FindEventByExternalID(ctx, "fathom", "rec-2")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestLinkEventClearsReview(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	contact := &models.Contact{Name: "Ada", Email: "ada@example.test"}
	require.NoError(t, store.CreateContact(ctx, contact))

	event := &models.ExternalEvent{Source: "gmail", ExternalID: "t-1", NeedsReview: true}
	require.NoError(t, store.CreateEvent(ctx, event))

	review := true
	queue, err := store.ListEvents(ctx, EventFilter{NeedsReview: &review})
	require.NoError(t, err)
	assert.Len(t, queue, 1)

	require.NoError(t, store.LinkEvent(ctx, event.ID, contact.ID, models.ConfidenceManual))

	queue, err = store.ListEvents(ctx, EventFilter{NeedsReview: &review})
	require.NoError(t, err)
	assert.Empty(t, queue)

	linked, err := store.ListEvents(ctx, EventFilter{ContactID: &contact.ID})
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, models.ConfidenceManual, linked[0].MatchConfidence)
}

func TestActionItemCompletionCreatesTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	event := &models.ExternalEvent{Source: "fathom", ExternalID: "rec-9"}
	require.NoError(t, store.CreateEvent(ctx, event))

	item := &models.ActionItem{EventID: event.ID, Description: "Send pricing deck", Assignee: "me"}
	require.NoError(t, store.CreateActionItem(ctx, item))

	done, err := store.SetActionItemCompleted(ctx, item.ID, true)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	require.NotNil(t, done.TaskID)

	task, err := store.GetTask(ctx, *done.TaskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.True(t, task.Completed)
	assert.Equal(t, "Send pricing deck", task.Text)

	undone, err := store.SetActionItemCompleted(ctx, item.ID, false)
	require.NoError(t, err)
	assert.False(t, undone.Completed)
	assert.Equal(t, *done.TaskID, *undone.TaskID)

	items, err := store.ListActionItems(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx, models.RunManual, "gmail")
	require.NoError(t, err)
	assert.Equal(t, models.RunStarted, run.Status)

	run.Status = models.RunCompleted
	run.Processed = 3
	run.New = 2
	run.Errors = []string{"item 4: boom"}
	require.NoError(t, store.FinishRun(ctx, run))

	// A finished run cannot be finished again.
	assert.True(t, errors.Is(store.FinishRun(ctx, run), ErrNotFound))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, got.Status)
	assert.Equal(t, 3, got.Processed)
	assert.Equal(t, 2, got.New)
	assert.Equal(t, []string{"item 4: boom"}, got.Errors)
	assert.NotNil(t, got.CompletedAt)

	runs, err := store.ListRuns(ctx, "gmail", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSyncState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state, err := store.GetSyncState(ctx, "gmail")
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, store.UpdateSyncStatus(ctx, "gmail", models.SyncStatusSyncing, ""))
	at := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkSynced(ctx, "gmail", at))

	state, err = store.GetSyncState(ctx, "gmail")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, models.SyncStatusIdle, state.Status)
	require.NotNil(t, state.LastSyncTime)
	assert.True(t, at.Equal(*state.LastSyncTime))

	states, err := store.GetAllSyncStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}
