package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/harperreed/outreach/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCompleteTaskIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, err := store.AddTask(ctx, "Email Ada the proposal", "2030-05-01", "")
	require.NoError(t, err)
	assert.False(t, task.Completed)

	first, err := store.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, first.Completed)
	require.NotNil(t, first.CompletedAt)

	second, err := store.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, second.CompletedAt)
	assert.True(t, first.CompletedAt.Equal(*second.CompletedAt))

	reopened, err := store.ReopenTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, reopened.Completed)
	assert.Nil(t, reopened.CompletedAt)
}

func TestCompleteUnknownTask(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CompleteTask(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAddTaskValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddTask(ctx, "  ", "", "")
	assert.Error(t, err)

	_, err = store.AddTask(ctx, "call", "05/01/2030", "")
	assert.Error(t, err)

	task, err := store.AddTask(ctx, "call", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, task.EntryDate)
}

func TestListTasksFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.AddTask(ctx, "a", "2030-05-01", "")
	require.NoError(t, err)
	_, err = store.AddTask(ctx, "b", "2030-05-01", "2030-05-03")
	require.NoError(t, err)
	_, err = store.AddTask(ctx, "c", "2030-05-02", "")
	require.NoError(t, err)
	_, err = store.CompleteTask(ctx, a.ID)
	require.NoError(t, err)

	onDay, err := store.ListTasks(ctx, TaskFilter{EntryDate: "2030-05-01"})
	require.NoError(t, err)
	assert.Len(t, onDay, 2)

	open := false
	pending, err := store.ListTasks(ctx, TaskFilter{Completed: &open})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	scheduled, err := store.ListTasks(ctx, TaskFilter{ScheduledDate: "2030-05-03"})
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "b", scheduled[0].Text)

	paged, err := store.ListTasks(ctx, TaskFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, paged, 1)

	moved, err := store.RescheduleTask(ctx, a.ID, "2030-06-01")
	require.NoError(t, err)
	assert.Equal(t, "2030-06-01", moved.ScheduledDate)
}

func TestGetOrCreatePlanIsUniquePerDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids := make([]uuid.UUID, 12)
	var g errgroup.Group
	for i := range ids {
		i := i
		g.Go(func() error {
			plan, err := store.GetOrCreatePlan(ctx, "2030-05-01")
			if err != nil {
				return err
			}
			ids[i] = plan.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM daily_plans WHERE date = '2030-05-01'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSavePlanBacksItemsWithTasks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	existing, err := store.AddTask(ctx, "follow up with Ada", "2030-05-01", "")
	require.NoError(t, err)

	plan, err := store.SavePlan(ctx, "2030-05-01", "Close the pilot", []models.PlanItem{
		{TaskID: &existing.ID, Text: existing.Text},
		{Text: "draft case study"},
		{Text: "   "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Close the pilot", plan.MainFocus)
	require.Len(t, plan.Items, 2)
	assert.Equal(t, existing.ID, *plan.Items[0].TaskID)
	require.NotNil(t, plan.Items[1].TaskID)

	created, err := store.GetTask(ctx, *plan.Items[1].TaskID)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "draft case study", created.Text)
	assert.Equal(t, "2030-05-01", created.EntryDate)

	reloaded, err := store.GetPlan(ctx, "2030-05-01")
	require.NoError(t, err)
	assert.Equal(t, plan.ID, reloaded.ID)
	assert.Len(t, reloaded.Items, 2)

	missing, err := store.GetPlan(ctx, "2030-05-02")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSavePlanTwiceReusesTasks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	items := []models.PlanItem{{Text: "Call Dana"}}
	first, err := store.SavePlan(ctx, "2025-03-10", "focus", items)
	require.NoError(t, err)
	second, err := store.SavePlan(ctx, "2025-03-10", "focus", items)
	require.NoError(t, err)

	require.Len(t, second.Items, 1)
	assert.Equal(t, *first.Items[0].TaskID, *second.Items[0].TaskID)

	tasks, err := store.ListTasks(ctx, TaskFilter{EntryDate: "2025-03-10"})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	other, err := store.SavePlan(ctx, "2025-03-11", "", items)
	require.NoError(t, err)
	assert.NotEqual(t, *first.Items[0].TaskID, *other.Items[0].TaskID)
}
