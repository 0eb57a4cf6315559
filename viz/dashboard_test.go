package viz

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
)

func TestRates(t *testing.T) {
	byStatus := map[models.Status]int{
		models.StatusNew:           4,
		models.StatusContacted:     2,
		models.StatusResponded:     1,
		models.StatusCallScheduled: 1,
		models.StatusClosed:        1,
		models.StatusLost:          1,
	}

	conversion, response := Rates(byStatus, 10)
	assert.Equal(t, 10.0, conversion)
	// 4 responded-or-further over 6 contacted.
	assert.Equal(t, 66.7, response)

	conversion, response = Rates(map[models.Status]int{models.StatusNew: 3}, 3)
	assert.Zero(t, conversion)
	assert.Zero(t, response)

	conversion, response = Rates(nil, 0)
	assert.Zero(t, conversion)
	assert.Zero(t, response)
}

func TestGenerateDashboardStats(t *testing.T) {
	store, err := db.OpenDatabase(filepath.Join(t.TempDir(), "viz.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	now := time.Now().UTC()
	today := now.Format(models.DateLayout)
	lastWeek := now.AddDate(0, 0, -3).Format(models.DateLayout)

	require.NoError(t, store.CreateContact(ctx, &models.Contact{Name: "Ada", Email: "ada@engines.test"}))
	require.NoError(t, store.CreateContact(ctx, &models.Contact{Name: "Bob", Email: "bob@widgets.test", Status: models.StatusClosed}))
	require.NoError(t, store.CreateContact(ctx, &models.Contact{Name: "Cara", Email: "cara@studio.test", Status: models.StatusResponded, NextFollowup: lastWeek}))

	_, err = store.SavePlan(ctx, today, "Close Widgets", []models.PlanItem{{Text: "Send proposal"}})
	require.NoError(t, err)

	stats, err := GenerateDashboardStats(ctx, store, now)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[models.StatusClosed])
	assert.Equal(t, 3, stats.WeekAdded)
	assert.Equal(t, 2, stats.WeekContacted)
	assert.Equal(t, 33.3, stats.ConversionRate)
	assert.Equal(t, 100.0, stats.ResponseRate)
	require.Len(t, stats.OverdueFollowups, 1)
	assert.Equal(t, "Cara", stats.OverdueFollowups[0].Name)
	assert.Equal(t, 3, stats.OverdueFollowups[0].DaysLate)
	require.NotNil(t, stats.Today)
	assert.Equal(t, "Close Widgets", stats.Today.MainFocus)
	assert.Equal(t, 1, stats.OpenTasks)

	out := RenderDashboard(stats)
	assert.Contains(t, out, "OUTREACH DASHBOARD")
	assert.Contains(t, out, "closed")
	assert.Contains(t, out, "Close Widgets")
	assert.Contains(t, out, "1 follow-ups overdue")
}
