// ABOUTME: Sync orchestrator that classifies external items and applies them to the contact store
// ABOUTME: Tracks each run as started -> completed | failed with per-item fault isolation
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/harperreed/outreach/config"
	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/llm"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/reconcile"
)

const (
	defaultLookback = 30 * 24 * time.Hour
	syncActor       = "sync"
)

// Store is the subset of the contact store a sync run needs.
type Store interface {
	StartRun(ctx context.Context, syncType, source string) (*models.SyncRun, error)
	FinishRun(ctx context.Context, run *models.SyncRun) error
	GetSyncState(ctx context.Context, service string) (*models.SyncState, error)
	UpdateSyncStatus(ctx context.Context, service, status, errorMsg string) error
	MarkSynced(ctx context.Context, service string, syncedAt time.Time) error

	ListContacts(ctx context.Context, filter db.ContactFilter) ([]models.Contact, error)
	GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	Upsert(ctx context.Context, candidate models.Contact, auto bool) (*models.Contact, bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.Status, actor string) error

	FindEventByExternalID(ctx context.Context, source, externalID string) (*models.ExternalEvent, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.ExternalEvent, error)
	CreateEvent(ctx context.Context, event *models.ExternalEvent) error
	LinkEvent(ctx context.Context, id, contactID uuid.UUID, confidence models.Confidence) error
	CreateActionItem(ctx context.Context, item *models.ActionItem) error
}

// Source supplies raw items from one external system.
type Source interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]Item, error)
}

// ActionItemDraft is a follow-up captured by a meeting source.
type ActionItemDraft struct {
	Description string
	Assignee    string
}

// Item is one normalised external record.
type Item struct {
	ExternalID      string
	Title           string
	Summary         string
	OccurredAt      time.Time
	DurationMinutes int

	// Contact carries whatever identity the source could extract.
	Contact   models.Contact
	Invitees  []string
	Subject   string
	Text      string
	Exchanges int
	// Meeting marks items that are themselves meetings.
	Meeting bool

	// Prompt is sent to the classifier when one is configured.
	Prompt      *llm.Prompt
	ActionItems []ActionItemDraft
	Raw         json.RawMessage

	// Err is a source-side fault for this item only.
	Err error
}

// RunOptions controls a single run.
type RunOptions struct {
	Type  string
	Apply bool
	// Since overrides the lookback start; zero means last sync or 30 days.
	Since time.Time
}

// Options wires an Orchestrator.
type Options struct {
	Store      Store
	Learning   config.LearningSource
	Owners     []string
	Classifier llm.Classifier
	Meetings   MeetingSource
	Logger     *zap.Logger
}

type Orchestrator struct {
	store      Store
	learning   config.LearningSource
	owners     []string
	classifier llm.Classifier
	meetings   MeetingSource
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewOrchestrator creates an orchestrator. Classifier and Meetings are optional.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	learning := opts.Learning
	if learning == nil {
		learning = config.Static{L: config.DefaultLearning()}
	}
	return &Orchestrator{
		store:      opts.Store,
		learning:   learning,
		owners:     opts.Owners,
		classifier: opts.Classifier,
		meetings:   opts.Meetings,
		logger:     logger,
		tracer:     otel.Tracer("github.com/harperreed/outreach/sync"),
	}
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeNew
	outcomeReview
)

type itemResult struct {
	outcome outcome
	created bool
}

// runState holds everything scoped to one run.
type runState struct {
	run      *models.SyncRun
	source   string
	apply    bool
	learning *config.Learning
	engine   *reconcile.Engine
	matcher  *ContactMatcher
	meetings map[string][]reconcile.Meeting
	logger   *zap.Logger
}

// Run fetches items from src and reconciles each one. Per-item faults are
// recorded on the run and never abort it; a store connectivity fault or a
// failed fetch ends the run as failed. Applied items are not rolled back.
func (o *Orchestrator) Run(ctx context.Context, src Source, opts RunOptions) (*models.SyncRun, error) {
	ctx, span := o.tracer.Start(ctx, "sync.run", trace.WithAttributes(
		attribute.String("sync.source", src.Name()),
		attribute.Bool("sync.apply", opts.Apply),
	))
	defer span.End()

	if opts.Type == "" {
		opts.Type = models.RunManual
	}

	learning := o.learning.Learning()
	run, err := o.store.StartRun(ctx, opts.Type, src.Name())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start run")
		return nil, fmt.Errorf("failed to start sync run: %w", err)
	}

	logger := o.logger.With(zap.String("run_id", run.ID), zap.String("source", src.Name()))
	logger.Info("sync run started", zap.String("type", opts.Type), zap.Bool("apply", opts.Apply))
	span.SetAttributes(attribute.String("sync.run_id", run.ID))

	if err := o.store.UpdateSyncStatus(ctx, src.Name(), models.SyncStatusSyncing, ""); err != nil {
		return o.fail(ctx, span, logger, run, err)
	}

	since := opts.Since
	if since.IsZero() {
		since = time.Now().Add(-defaultLookback)
		state, err := o.store.GetSyncState(ctx, src.Name())
		if err != nil {
			return o.fail(ctx, span, logger, run, err)
		}
		if state != nil && state.LastSyncTime != nil {
			since = *state.LastSyncTime
		}
	}
	startedAt := time.Now()

	items, err := src.Fetch(ctx, since)
	if err != nil {
		return o.fail(ctx, span, logger, run, fmt.Errorf("fetch from %s: %w", src.Name(), err))
	}

	contacts, err := o.store.ListContacts(ctx, db.ContactFilter{})
	if err != nil {
		return o.fail(ctx, span, logger, run, err)
	}

	rs := &runState{
		run:      run,
		source:   src.Name(),
		apply:    opts.Apply,
		learning: learning,
		engine:   reconcile.NewEngine(learning, o.owners),
		matcher:  NewContactMatcher(contacts),
		meetings: o.loadMeetings(ctx, since, learning, logger),
		logger:   logger,
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, span, logger, run, err)
		}

		res, err := o.safeProcess(ctx, rs, item)
		if err != nil {
			if db.IsUnavailable(err) {
				o.recordError(rs, item, err)
				return o.fail(ctx, span, logger, run, err)
			}
			run.Failed++
			o.recordError(rs, item, err)
			continue
		}

		switch res.outcome {
		case outcomeNew:
			run.New++
		case outcomeReview:
			run.NeedsReview++
		default:
			run.Processed++
		}
		if res.created {
			run.ContactsCreated++
		}
	}

	run.Status = models.RunCompleted
	if err := o.store.FinishRun(ctx, run); err != nil {
		return o.fail(ctx, span, logger, run, err)
	}
	if err := o.store.MarkSynced(ctx, src.Name(), startedAt); err != nil {
		logger.Warn("failed to record sync time", zap.Error(err))
	}

	span.SetAttributes(
		attribute.Int("sync.processed", run.Processed),
		attribute.Int("sync.new", run.New),
		attribute.Int("sync.needs_review", run.NeedsReview),
		attribute.Int("sync.failed", run.Failed),
	)
	logger.Info("sync run completed",
		zap.Int("fetched", len(items)),
		zap.Int("processed", run.Processed),
		zap.Int("new", run.New),
		zap.Int("needs_review", run.NeedsReview),
		zap.Int("contacts_created", run.ContactsCreated),
		zap.Int("failed", run.Failed),
	)
	return run, nil
}

// fail finishes run as failed. The returned error always wraps cause.
func (o *Orchestrator) fail(ctx context.Context, span trace.Span, logger *zap.Logger, run *models.SyncRun, cause error) (*models.SyncRun, error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "sync run failed")
	logger.Error("sync run failed", zap.Error(cause))

	if len(run.Errors) == 0 || !strings.Contains(run.Errors[len(run.Errors)-1], cause.Error()) {
		run.Errors = append(run.Errors, cause.Error())
	}
	run.Status = models.RunFailed

	// The caller's context may already be cancelled; bookkeeping still runs.
	bg := context.WithoutCancel(ctx)
	err := fmt.Errorf("sync run %s failed: %w", run.ID, cause)
	if ferr := o.store.FinishRun(bg, run); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if serr := o.store.UpdateSyncStatus(bg, run.Source, models.SyncStatusError, cause.Error()); serr != nil {
		logger.Warn("failed to record sync error state", zap.Error(serr))
	}
	return run, err
}

func (o *Orchestrator) recordError(rs *runState, item Item, err error) {
	rs.logger.Warn("sync item failed", zap.String("external_id", item.ExternalID), zap.Error(err))
	if len(rs.run.Errors) < rs.learning.ErrorLimit {
		rs.run.Errors = append(rs.run.Errors, fmt.Sprintf("%s: %v", item.ExternalID, err))
	}
}

// safeProcess converts a panic in one item into an ordinary error.
func (o *Orchestrator) safeProcess(ctx context.Context, rs *runState, item Item) (res itemResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing item: %v", r)
		}
	}()
	return o.process(ctx, rs, item)
}

func (o *Orchestrator) process(ctx context.Context, rs *runState, item Item) (itemResult, error) {
	if item.Err != nil {
		return itemResult{}, item.Err
	}
	if strings.TrimSpace(item.ExternalID) == "" {
		return itemResult{}, errors.New("item has no external id")
	}

	existing, err := o.store.FindEventByExternalID(ctx, rs.source, item.ExternalID)
	if err != nil {
		return itemResult{}, err
	}
	if existing != nil {
		rs.logger.Debug("sync item already recorded", zap.String("external_id", item.ExternalID))
		return itemResult{outcome: outcomeProcessed}, nil
	}

	candidate := item.Contact
	var matched *models.Contact
	if item.Meeting {
		if c, conf, ok := rs.matcher.MatchMeeting(item.Title, item.Invitees); ok {
			matched = c
			rs.logger.Debug("meeting matched contact",
				zap.String("external_id", item.ExternalID),
				zap.String("contact_id", c.ID.String()),
				zap.String("match_confidence", string(conf)),
			)
		}
	} else if c, ok := rs.matcher.FindMatch(candidate.Email); ok {
		matched = c
	}

	judgment := o.judge(ctx, rs, item)
	if judgment != nil {
		fillFromJudgment(&candidate, judgment)
	}
	if matched != nil && candidate.Email == "" {
		candidate.Email = matched.Email
	}

	result := rs.engine.Classify(reconcile.Candidate{
		Email:      candidate.Email,
		Name:       candidate.Name,
		Company:    candidate.Company,
		Subject:    item.Subject,
		Text:       item.Text,
		Exchanges:  item.Exchanges,
		OccurredAt: item.OccurredAt,
		Judgment:   judgment,
		Meetings:   meetingsFor(rs, candidate.Email),
	})

	event := &models.ExternalEvent{
		Source:          rs.source,
		ExternalID:      item.ExternalID,
		Title:           item.Title,
		Summary:         item.Summary,
		DurationMinutes: item.DurationMinutes,
		MatchConfidence: result.Confidence,
		ProposedStatus:  result.Status,
		Reasons:         result.ReasonCodes,
		Excluded:        result.Excluded,
		Raw:             item.Raw,
	}
	if !item.OccurredAt.IsZero() {
		ts := item.OccurredAt.UTC()
		event.OccurredAt = &ts
	}

	logger := rs.logger.With(
		zap.String("external_id", item.ExternalID),
		zap.String("status", string(result.Status)),
		zap.String("confidence", string(result.Confidence)),
	)

	if result.Excluded {
		if _, err := o.createEvent(ctx, event); err != nil {
			return itemResult{}, err
		}
		logger.Debug("sync item excluded", zap.Strings("reasons", result.ReasonCodes))
		return itemResult{outcome: outcomeProcessed}, nil
	}

	identifiable := matched != nil || candidate.Email != "" || candidate.LinkedIn != ""
	if !rs.apply || !identifiable || !result.Importable(rs.learning.MinConfidence) {
		event.NeedsReview = true
		dup, err := o.createEvent(ctx, event)
		if err != nil {
			return itemResult{}, err
		}
		if dup {
			return itemResult{outcome: outcomeProcessed}, nil
		}
		if err := o.createActionItems(ctx, event.ID, item.ActionItems); err != nil {
			return itemResult{}, err
		}
		logger.Info("sync item needs review")
		return itemResult{outcome: outcomeReview}, nil
	}

	contact, created, err := o.applyContact(ctx, matched, candidate, result.Status, rs.source)
	if err != nil {
		return itemResult{}, err
	}
	rs.matcher.AddContact(contact)

	event.ContactID = &contact.ID
	dup, err := o.createEvent(ctx, event)
	if err != nil {
		return itemResult{}, err
	}
	if dup {
		return itemResult{outcome: outcomeProcessed}, nil
	}
	if err := o.createActionItems(ctx, event.ID, item.ActionItems); err != nil {
		return itemResult{}, err
	}

	logger.Info("sync item applied",
		zap.String("contact_id", contact.ID.String()),
		zap.Bool("contact_created", created),
		zap.Bool("cross_signal", result.CrossSignal),
	)
	return itemResult{outcome: outcomeNew, created: created}, nil
}

// applyContact merges candidate into the store and advances its status
// without moving it backwards.
func (o *Orchestrator) applyContact(ctx context.Context, matched *models.Contact, candidate models.Contact, proposed models.Status, source string) (*models.Contact, bool, error) {
	var contact *models.Contact
	var created bool

	if matched != nil && matched.Email == "" && matched.LinkedIn == "" {
		current, err := o.store.GetContact(ctx, matched.ID)
		if err != nil {
			return nil, false, err
		}
		if current == nil {
			return nil, false, fmt.Errorf("contact %s: %w", matched.ID, db.ErrNotFound)
		}
		contact = current
	} else {
		if matched != nil {
			candidate.Email = matched.Email
			candidate.LinkedIn = matched.LinkedIn
		}
		candidate.Status = ""
		c, isNew, err := o.store.Upsert(ctx, candidate, true)
		if err != nil {
			return nil, false, err
		}
		contact, created = c, isNew
	}

	next := reconcile.NextStatus(contact.Status, proposed)
	if next != contact.Status {
		if err := o.store.SetStatus(ctx, contact.ID, next, syncActor+":"+source); err != nil {
			return nil, false, err
		}
		contact.Status = next
	}
	return contact, created, nil
}

// createEvent reports dup when a concurrent run already recorded the same
// external id.
func (o *Orchestrator) createEvent(ctx context.Context, event *models.ExternalEvent) (dup bool, err error) {
	if err := o.store.CreateEvent(ctx, event); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (o *Orchestrator) createActionItems(ctx context.Context, eventID uuid.UUID, drafts []ActionItemDraft) error {
	for _, d := range drafts {
		if strings.TrimSpace(d.Description) == "" {
			continue
		}
		item := &models.ActionItem{EventID: eventID, Description: d.Description, Assignee: d.Assignee}
		if err := o.store.CreateActionItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// judge asks the classifier for an advisory judgment. Classifier failures
// degrade to keyword-only scoring.
func (o *Orchestrator) judge(ctx context.Context, rs *runState, item Item) *models.Judgment {
	if o.classifier == nil || item.Prompt == nil {
		return nil
	}
	j, err := o.classifier.Classify(ctx, *item.Prompt)
	if err != nil {
		rs.logger.Warn("classifier unavailable, using keyword rules only",
			zap.String("external_id", item.ExternalID), zap.Error(err))
		return nil
	}
	return j
}

func fillFromJudgment(c *models.Contact, j *models.Judgment) {
	if c.Name == "" {
		c.Name = strings.TrimSpace(j.FullName)
	}
	if c.Company == "" {
		c.Company = strings.TrimSpace(j.Company)
	}
	if c.Email == "" {
		c.Email = j.Email
	}
}

// loadMeetings indexes secondary calendar evidence by attendee email. An
// unavailable calendar degrades to single-source scoring.
func (o *Orchestrator) loadMeetings(ctx context.Context, since time.Time, learning *config.Learning, logger *zap.Logger) map[string][]reconcile.Meeting {
	index := make(map[string][]reconcile.Meeting)
	if o.meetings == nil {
		return index
	}

	from := since.AddDate(0, 0, -learning.MaxDaysBetween)
	meetings, err := o.meetings.Meetings(ctx, from)
	if err != nil {
		logger.Warn("calendar unavailable, scoring without cross-signal", zap.Error(err))
		return index
	}

	for _, m := range meetings {
		for _, email := range m.Emails {
			key := normalizeEmail(email)
			if key != "" {
				index[key] = append(index[key], m.Meeting)
			}
		}
	}
	return index
}

// meetingsFor returns calendar evidence for an attendee. A recorded call is
// never evidence for itself, so only the calendar index is consulted.
func meetingsFor(rs *runState, email string) []reconcile.Meeting {
	key := normalizeEmail(email)
	if key == "" {
		return nil
	}
	return rs.meetings[key]
}

// ForceApply links a reviewed event to a contact with manual confidence.
// Either contactID or candidate identifies the contact; an empty status
// applies the event's proposed status.
func (o *Orchestrator) ForceApply(ctx context.Context, eventID uuid.UUID, contactID *uuid.UUID, candidate models.Contact, status models.Status) (*models.Contact, error) {
	event, err := o.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, db.ErrNotFound)
	}
	if status == "" {
		status = event.ProposedStatus
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	var contact *models.Contact
	switch {
	case contactID != nil:
		contact, err = o.store.GetContact(ctx, *contactID)
		if err != nil {
			return nil, err
		}
		if contact == nil {
			return nil, fmt.Errorf("contact %s: %w", *contactID, db.ErrNotFound)
		}
	case strings.TrimSpace(candidate.Name) != "" || strings.TrimSpace(candidate.Email) != "":
		candidate.Status = ""
		contact, _, err = o.store.Upsert(ctx, candidate, false)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("a contact id or contact details are required")
	}

	if contact.Status != status {
		if err := o.store.SetStatus(ctx, contact.ID, status, "review"); err != nil {
			return nil, err
		}
		contact.Status = status
	}
	if err := o.store.LinkEvent(ctx, event.ID, contact.ID, models.ConfidenceManual); err != nil {
		return nil, err
	}

	o.logger.Info("review applied",
		zap.String("event_id", event.ID.String()),
		zap.String("contact_id", contact.ID.String()),
		zap.String("status", string(status)),
	)
	return contact, nil
}
