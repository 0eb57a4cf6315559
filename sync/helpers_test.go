package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/llm"
	"github.com/harperreed/outreach/models"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fakeSource struct {
	name  string
	items []Item
	err   error
	since []time.Time
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, since time.Time) ([]Item, error) {
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type classifierFunc func(ctx context.Context, p llm.Prompt) (*models.Judgment, error)

func (f classifierFunc) Classify(ctx context.Context, p llm.Prompt) (*models.Judgment, error) {
	return f(ctx, p)
}

type fakeMeetings struct {
	meetings []CalendarMeeting
	err      error
}

func (f *fakeMeetings) Meetings(_ context.Context, _ time.Time) ([]CalendarMeeting, error) {
	return f.meetings, f.err
}
