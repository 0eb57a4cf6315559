// ABOUTME: Sync and review MCP tool handlers
// ABOUTME: Implements run_sync, review_queue, and apply_review tools
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/sync"
)

// Syncer runs sources and applies reviewed events. *sync.Runner satisfies it.
type Syncer interface {
	RunSource(ctx context.Context, name string, opts sync.RunOptions) (*models.SyncRun, error)
	ForceApply(ctx context.Context, eventID uuid.UUID, contactID *uuid.UUID, candidate models.Contact, status models.Status) (*models.Contact, error)
}

type SyncHandlers struct {
	store  *db.Store
	syncer Syncer
}

func NewSyncHandlers(store *db.Store, syncer Syncer) *SyncHandlers {
	return &SyncHandlers{store: store, syncer: syncer}
}

type RunSyncInput struct {
	Source string `json:"source" jsonschema:"Source to sync: gmail, fathom, or another registered source (required)"`
	Apply  bool   `json:"apply,omitempty" jsonschema:"Apply matches to contacts; otherwise record them for review"`
}

type RunSyncOutput struct {
	RunID           string   `json:"run_id"`
	Status          string   `json:"status"`
	Processed       int      `json:"processed"`
	New             int      `json:"new"`
	ContactsCreated int      `json:"contacts_created"`
	NeedsReview     int      `json:"needs_review"`
	Failed          int      `json:"failed"`
	Errors          []string `json:"errors,omitempty"`
}

// RunSync runs a source to completion. A run that fails after it started
// is reported through its status and errors, not as a tool error.
func (h *SyncHandlers) RunSync(ctx context.Context, _ *mcp.CallToolRequest, input RunSyncInput) (*mcp.CallToolResult, RunSyncOutput, error) {
	if h.syncer == nil {
		return nil, RunSyncOutput{}, fmt.Errorf("sync is not configured")
	}
	source := strings.ToLower(strings.TrimSpace(input.Source))
	if source == "" {
		return nil, RunSyncOutput{}, fmt.Errorf("source is required")
	}

	run, err := h.syncer.RunSource(ctx, source, sync.RunOptions{Type: models.RunManual, Apply: input.Apply})
	if run == nil {
		return nil, RunSyncOutput{}, fmt.Errorf("failed to run sync: %w", err)
	}
	return nil, RunSyncOutput{
		RunID:           run.ID,
		Status:          run.Status,
		Processed:       run.Processed,
		New:             run.New,
		ContactsCreated: run.ContactsCreated,
		NeedsReview:     run.NeedsReview,
		Failed:          run.Failed,
		Errors:          run.Errors,
	}, nil
}

type ReviewQueueInput struct {
	Source string `json:"source,omitempty" jsonschema:"Only events from this source"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of events (default 20)"`
}

type ReviewItem struct {
	EventID        string   `json:"event_id"`
	Source         string   `json:"source"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary,omitempty"`
	OccurredAt     string   `json:"occurred_at,omitempty"`
	ProposedStatus string   `json:"proposed_status,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
	ContactID      string   `json:"contact_id,omitempty"`
	Reasons        []string `json:"reasons,omitempty"`
}

type ReviewQueueOutput struct {
	Items []ReviewItem `json:"items"`
}

func (h *SyncHandlers) ReviewQueue(ctx context.Context, _ *mcp.CallToolRequest, input ReviewQueueInput) (*mcp.CallToolResult, ReviewQueueOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	needsReview := true
	events, err := h.store.ListEvents(ctx, db.EventFilter{Source: input.Source, NeedsReview: &needsReview, Limit: limit})
	if err != nil {
		return nil, ReviewQueueOutput{}, fmt.Errorf("failed to list review queue: %w", err)
	}

	out := ReviewQueueOutput{Items: make([]ReviewItem, 0, len(events))}
	for _, e := range events {
		item := ReviewItem{
			EventID:        e.ID.String(),
			Source:         e.Source,
			Title:          e.Title,
			Summary:        e.Summary,
			ProposedStatus: string(e.ProposedStatus),
			Confidence:     string(e.MatchConfidence),
			Reasons:        e.Reasons,
		}
		if e.OccurredAt != nil {
			item.OccurredAt = e.OccurredAt.Format(models.DateLayout)
		}
		if e.ContactID != nil {
			item.ContactID = e.ContactID.String()
		}
		out.Items = append(out.Items, item)
	}
	return nil, out, nil
}

type ApplyReviewInput struct {
	EventID   string `json:"event_id" jsonschema:"Event to apply (required)"`
	ContactID string `json:"contact_id,omitempty" jsonschema:"Existing prospect to link; otherwise name or email creates or matches one"`
	Name      string `json:"name,omitempty" jsonschema:"Prospect name"`
	Email     string `json:"email,omitempty" jsonschema:"Prospect email"`
	Company   string `json:"company,omitempty" jsonschema:"Prospect company"`
	Status    string `json:"status,omitempty" jsonschema:"Status to set; defaults to the proposed status"`
}

func (h *SyncHandlers) ApplyReview(ctx context.Context, _ *mcp.CallToolRequest, input ApplyReviewInput) (*mcp.CallToolResult, ProspectOutput, error) {
	if h.syncer == nil {
		return nil, ProspectOutput{}, fmt.Errorf("sync is not configured")
	}
	eventID, err := uuid.Parse(input.EventID)
	if err != nil {
		return nil, ProspectOutput{}, fmt.Errorf("invalid event ID: %w", err)
	}
	var contactID *uuid.UUID
	if input.ContactID != "" {
		id, err := uuid.Parse(input.ContactID)
		if err != nil {
			return nil, ProspectOutput{}, fmt.Errorf("invalid contact ID: %w", err)
		}
		contactID = &id
	}
	var status models.Status
	if input.Status != "" {
		if status, err = models.ParseStatus(input.Status); err != nil {
			return nil, ProspectOutput{}, err
		}
	}

	candidate := models.Contact{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Company: strings.TrimSpace(input.Company),
	}
	contact, err := h.syncer.ForceApply(ctx, eventID, contactID, candidate, status)
	if err != nil {
		return nil, ProspectOutput{}, fmt.Errorf("failed to apply review: %w", err)
	}
	return nil, prospectToOutput(contact), nil
}
