package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/llm"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/reconcile"
)

var baseTime = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func outreachItem(i int) Item {
	id := fmt.Sprintf("item-%d", i)
	return Item{
		ExternalID: id,
		Title:      "Quick question",
		OccurredAt: baseTime.Add(time.Duration(i) * time.Hour),
		Contact:    models.Contact{Name: fmt.Sprintf("Person %d", i), Email: fmt.Sprintf("person%d@acme.test", i)},
		Subject:    "Quick question",
		Text:       "Would love to schedule a call next week",
		Exchanges:  2,
		Prompt:     &llm.Prompt{Kind: llm.KindEmail, Subject: id},
	}
}

func outreachItems(n int) []Item {
	items := make([]Item, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, outreachItem(i))
	}
	return items
}

// unavailableStore fails event inserts for one external id with a
// connectivity fault.
type unavailableStore struct {
	*db.Store
	failOn string
}

func (s *unavailableStore) CreateEvent(ctx context.Context, event *models.ExternalEvent) error {
	if event.ExternalID == s.failOn {
		return fmt.Errorf("insert event: %w", db.ErrUnavailable)
	}
	return s.Store.CreateEvent(ctx, event)
}

func TestRunIsolatesItemPanic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	classifier := classifierFunc(func(_ context.Context, p llm.Prompt) (*models.Judgment, error) {
		if p.Subject == "item-5" {
			panic("malformed payload")
		}
		return &models.Judgment{IsBusinessOutreach: true, Confidence: 0.8, Sentiment: models.SentimentNeutral}, nil
	})

	orch := NewOrchestrator(Options{Store: store, Classifier: classifier})
	src := &fakeSource{name: "fake", items: outreachItems(10)}

	run, err := orch.Run(ctx, src, RunOptions{Apply: true})
	require.NoError(t, err)

	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 9, run.New)
	assert.Equal(t, 9, run.ContactsCreated)
	assert.Equal(t, 10, run.Processed+run.New+run.NeedsReview+run.Failed)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "item-5")
	assert.Contains(t, run.Errors[0], "panic")

	stored, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.RunCompleted, stored.Status)
	assert.Equal(t, 1, stored.Failed)
	assert.NotNil(t, stored.CompletedAt)

	contact, err := store.FindByIdentity(ctx, "person6@acme.test", "")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, models.StatusCallScheduled, contact.Status)
	assert.True(t, contact.AutoCreated)

	missing, err := store.FindByIdentity(ctx, "person5@acme.test", "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRunFailsOnStoreUnavailable(t *testing.T) {
	base := newTestStore(t)
	ctx := context.Background()

	orch := NewOrchestrator(Options{Store: &unavailableStore{Store: base, failOn: "item-5"}})
	src := &fakeSource{name: "fake", items: outreachItems(10)}

	run, err := orch.Run(ctx, src, RunOptions{Apply: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrUnavailable))
	require.NotNil(t, run)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Equal(t, 4, run.New)

	stored, err := base.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, stored.Status)
	assert.NotEmpty(t, stored.Errors)

	state, err := base.GetSyncState(ctx, "fake")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, state.Status)
	assert.Nil(t, state.LastSyncTime)

	// Items before the fault stay applied.
	for i := 1; i <= 4; i++ {
		c, err := base.FindByIdentity(ctx, fmt.Sprintf("person%d@acme.test", i), "")
		require.NoError(t, err)
		assert.NotNil(t, c, "person%d", i)
	}
	later, err := base.FindByIdentity(ctx, "person6@acme.test", "")
	require.NoError(t, err)
	assert.Nil(t, later)
}

func TestRunFailsWhenFetchFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	orch := NewOrchestrator(Options{Store: store})
	run, err := orch.Run(ctx, &fakeSource{name: "fake", err: errors.New("quota exhausted")}, RunOptions{})
	require.Error(t, err)
	assert.Equal(t, models.RunFailed, run.Status)

	state, err := store.GetSyncState(ctx, "fake")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, state.Status)
	assert.Contains(t, state.ErrorMessage, "quota exhausted")
}

func TestRunIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	orch := NewOrchestrator(Options{Store: store})
	src := &fakeSource{name: "fake", items: outreachItems(10)}

	first, err := orch.Run(ctx, src, RunOptions{Apply: true})
	require.NoError(t, err)
	assert.Equal(t, 10, first.New)

	second, err := orch.Run(ctx, src, RunOptions{Apply: true})
	require.NoError(t, err)
	assert.Equal(t, 10, second.Processed)
	assert.Zero(t, second.New)
	assert.Zero(t, second.ContactsCreated)

	contacts, err := store.ListContacts(ctx, db.ContactFilter{})
	require.NoError(t, err)
	assert.Len(t, contacts, 10)

	require.Len(t, src.since, 2)
	assert.True(t, src.since[1].After(src.since[0]), "second run starts from the last sync time")
}

func TestRunReviewModeAndForceApply(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	orch := NewOrchestrator(Options{Store: store})
	run, err := orch.Run(ctx, &fakeSource{name: "fake", items: outreachItems(3)}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, run.NeedsReview)
	assert.Zero(t, run.New)

	contacts, err := store.ListContacts(ctx, db.ContactFilter{})
	require.NoError(t, err)
	assert.Empty(t, contacts)

	event, err := store.FindEventByExternalID(ctx, "fake", "item-1")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, event.NeedsReview)
	assert.Equal(t, models.StatusCallScheduled, event.ProposedStatus)

	contact, err := orch.ForceApply(ctx, event.ID, nil, models.Contact{Name: "Person 1", Email: "person1@acme.test"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCallScheduled, contact.Status)
	assert.False(t, contact.AutoCreated)

	linked, err := store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, linked.NeedsReview)
	require.NotNil(t, linked.ContactID)
	assert.Equal(t, contact.ID, *linked.ContactID)
	assert.Equal(t, models.ConfidenceManual, linked.MatchConfidence)

	_, err = orch.ForceApply(ctx, event.ID, nil, models.Contact{}, "")
	assert.Error(t, err)
}

func proposalItem() Item {
	return Item{
		ExternalID: "proposal-1",
		Title:      "Proposal",
		OccurredAt: baseTime,
		Contact:    models.Contact{Name: "Lead", Email: "lead@acme.test"},
		Subject:    "Proposal",
		Text:       "Attached is our pricing proposal",
		Exchanges:  1,
	}
}

func TestRunCalendarCrossSignal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meetings := &fakeMeetings{meetings: []CalendarMeeting{{
		Meeting: reconcile.Meeting{Title: "Intro", Start: baseTime.Add(24 * time.Hour), DurationMinutes: 30, Attendees: 2},
		Emails:  []string{"Lead@acme.test"},
	}}}

	orch := NewOrchestrator(Options{Store: store, Meetings: meetings})
	run, err := orch.Run(ctx, &fakeSource{name: "fake", items: []Item{proposalItem()}}, RunOptions{Apply: true})
	require.NoError(t, err)
	assert.Equal(t, 1, run.New)

	event, err := store.FindEventByExternalID(ctx, "fake", "proposal-1")
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceMedium, event.MatchConfidence)
	assert.Contains(t, event.Reasons, "calendar_cross_signal")

	contact, err := store.FindByIdentity(ctx, "lead@acme.test", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResponded, contact.Status)
}

func TestRunCalendarUnavailableDegrades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	orch := NewOrchestrator(Options{Store: store, Meetings: &fakeMeetings{err: errors.New("calendar API returned 403")}})
	run, err := orch.Run(ctx, &fakeSource{name: "fake", items: []Item{proposalItem()}}, RunOptions{Apply: true})
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, 1, run.NeedsReview)
	assert.Zero(t, run.New)
}

func TestRunExcludesNonTargets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := outreachItem(1)
	item.Contact.Email = "noreply@acme.test"

	orch := NewOrchestrator(Options{Store: store})
	run, err := orch.Run(ctx, &fakeSource{name: "fake", items: []Item{item}}, RunOptions{Apply: true})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Processed)
	assert.Zero(t, run.New)

	event, err := store.FindEventByExternalID(ctx, "fake", "item-1")
	require.NoError(t, err)
	assert.True(t, event.Excluded)
	assert.False(t, event.NeedsReview)
	assert.Equal(t, []string{"notification_prefix"}, event.Reasons)
	assert.Empty(t, event.MatchConfidence)
}

func TestRunMeetingMatchesExistingContact(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ada, _, err := store.Upsert(ctx, models.Contact{Name: "Ada Lovelace", Email: "ada@engines.test"}, false)
	require.NoError(t, err)

	item := Item{
		ExternalID:      "call-1",
		Title:           "Ada Lovelace / Harper",
		OccurredAt:      baseTime,
		DurationMinutes: 30,
		Invitees:        []string{"ada@engines.test"},
		Subject:         "Ada Lovelace / Harper",
		Text:            "Agreed to start a pilot next month",
		Meeting:         true,
		ActionItems: []ActionItemDraft{
			{Description: "Send pilot agreement", Assignee: "harper"},
			{Description: "Share onboarding doc"},
			{Description: "   "},
		},
	}

	orch := NewOrchestrator(Options{Store: store})
	run, err := orch.Run(ctx, &fakeSource{name: "fathom", items: []Item{item}}, RunOptions{Apply: true})
	require.NoError(t, err)
	assert.Equal(t, 1, run.New)
	assert.Zero(t, run.ContactsCreated)

	updated, err := store.GetContact(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPilot, updated.Status)

	event, err := store.FindEventByExternalID(ctx, "fathom", "call-1")
	require.NoError(t, err)
	require.NotNil(t, event.ContactID)
	assert.Equal(t, ada.ID, *event.ContactID)
	assert.Equal(t, models.ConfidenceMedium, event.MatchConfidence)
	assert.NotContains(t, event.Reasons, "calendar_cross_signal")

	actions, err := store.ListActionItems(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 2)
}

func TestRunRecordedCallIsNotItsOwnCrossSignal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := Item{
		ExternalID:      "call-2",
		Title:           "Dana / Harper",
		OccurredAt:      baseTime,
		DurationMinutes: 30,
		Invitees:        []string{"dana@bureau.test"},
		Contact:         models.Contact{Name: "Dana", Email: "dana@bureau.test"},
		Subject:         "Dana / Harper",
		Text:            "general discussion",
		Exchanges:       1,
		Meeting:         true,
	}

	orch := NewOrchestrator(Options{Store: store})
	run, err := orch.Run(ctx, &fakeSource{name: "fathom", items: []Item{item}}, RunOptions{Apply: true})
	require.NoError(t, err)
	assert.Zero(t, run.New)
	assert.Equal(t, 1, run.NeedsReview)

	event, err := store.FindEventByExternalID(ctx, "fathom", "call-2")
	require.NoError(t, err)
	assert.True(t, event.NeedsReview)
	assert.Nil(t, event.ContactID)
	assert.Equal(t, models.ConfidenceLow, event.MatchConfidence)
	assert.NotContains(t, event.Reasons, "calendar_cross_signal")

	contacts, err := store.ListContacts(ctx, db.ContactFilter{})
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestRunRecordedCallBoostedByCalendar(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meetings := &fakeMeetings{meetings: []CalendarMeeting{{
		Meeting: reconcile.Meeting{Title: "Dana / Harper", Start: baseTime, DurationMinutes: 30, Attendees: 1},
		Emails:  []string{"dana@bureau.test"},
	}}}
	item := Item{
		ExternalID:      "call-3",
		Title:           "Dana / Harper",
		OccurredAt:      baseTime,
		DurationMinutes: 30,
		Invitees:        []string{"dana@bureau.test"},
		Contact:         models.Contact{Name: "Dana", Email: "dana@bureau.test"},
		Text:            "general discussion",
		Exchanges:       1,
		Meeting:         true,
	}

	orch := NewOrchestrator(Options{Store: store, Meetings: meetings})
	run, err := orch.Run(ctx, &fakeSource{name: "fathom", items: []Item{item}}, RunOptions{Apply: true})
	require.NoError(t, err)
	assert.Equal(t, 1, run.New)

	event, err := store.FindEventByExternalID(ctx, "fathom", "call-3")
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceMedium, event.MatchConfidence)
	assert.Contains(t, event.Reasons, "calendar_cross_signal")
}

func TestRunNeverDowngradesStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c, _, err := store.Upsert(ctx, models.Contact{Name: "Person 1", Email: "person1@acme.test"}, false)
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, c.ID, models.StatusClient, "test"))

	orch := NewOrchestrator(Options{Store: store})
	_, err = orch.Run(ctx, &fakeSource{name: "fake", items: []Item{outreachItem(1)}}, RunOptions{Apply: true})
	require.NoError(t, err)

	got, err := store.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClient, got.Status)
}

func TestRunRecordsItemErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	items := []Item{
		{ExternalID: "msg-1", Err: errors.New("fetch message: 500")},
		{ExternalID: ""},
		outreachItem(3),
	}
	orch := NewOrchestrator(Options{Store: store})
	run, err := orch.Run(ctx, &fakeSource{name: "fake", items: items}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, run.Failed)
	assert.Equal(t, 1, run.NeedsReview)
	assert.Len(t, run.Errors, 2)
}
