package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/outreach/models"
)

func TestCopyToIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	dst := newTestStore(t)

	contact := &models.Contact{Name: "Ada Lovelace", Email: "ada@example.com"}
	require.NoError(t, src.CreateContact(ctx, contact))
	_, err := src.SavePlan(ctx, "2030-01-02", "Ship it", []models.PlanItem{{Text: "Write proposal"}})
	require.NoError(t, err)
	event := &models.ExternalEvent{Source: "fathom", ExternalID: "call-1", Title: "Intro", ContactID: &contact.ID}
	require.NoError(t, src.CreateEvent(ctx, event))
	require.NoError(t, src.CreateActionItem(ctx, &models.ActionItem{EventID: event.ID, Description: "Send deck"}))

	counts, err := src.CountRows(ctx)
	require.NoError(t, err)
	byTable := map[string]int{}
	for _, c := range counts {
		byTable[c.Table] = c.Read
	}
	assert.Equal(t, 1, byTable["contacts"])
	assert.Equal(t, 1, byTable["tasks"])
	assert.Equal(t, 1, byTable["daily_plans"])

	first, err := src.CopyTo(ctx, dst)
	require.NoError(t, err)
	require.Len(t, first, len(CopyTables))
	for _, r := range first {
		assert.Equal(t, r.Read, r.Inserted, r.Table)
	}

	got, err := dst.GetContact(ctx, contact.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ada@example.com", got.Email)

	plan, err := dst.GetPlan(ctx, "2030-01-02")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "Ship it", plan.MainFocus)
	require.Len(t, plan.Items, 1)

	items, err := dst.ListActionItems(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	second, err := src.CopyTo(ctx, dst)
	require.NoError(t, err)
	for _, r := range second {
		assert.Zero(t, r.Inserted, r.Table)
	}
}
