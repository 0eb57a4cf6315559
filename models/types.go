// ABOUTME: Data models for outreach entities
// ABOUTME: Defines Contact, Task, DailyPlan, ExternalEvent, ActionItem, and SyncRun structs
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

type Contact struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Company         string    `json:"company,omitempty"`
	Email           string    `json:"email,omitempty"`
	LinkedIn        string    `json:"linkedin,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Status          Status    `json:"status"`
	NextFollowup    string    `json:"next_followup,omitempty"`
	NextAction      string    `json:"next_action,omitempty"`
	NextActionDue   string    `json:"next_action_due_date,omitempty"`
	ActionChannel   string    `json:"action_channel,omitempty"`
	ActionObjective string    `json:"action_objective,omitempty"`
	AutoCreated     bool      `json:"auto_created"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Task struct {
	ID            uuid.UUID  `json:"id"`
	Text          string     `json:"text"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	EntryDate     string     `json:"date_entered"`
	ScheduledDate string     `json:"date_scheduled,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PlanItem is one ordered entry of a daily plan. TaskID is nil until the
// item has been backed by a task row.
type PlanItem struct {
	TaskID *uuid.UUID `json:"task_id,omitempty"`
	Text   string     `json:"text"`
}

type DailyPlan struct {
	ID        uuid.UUID  `json:"id"`
	Date      string     `json:"date"`
	MainFocus string     `json:"one_thing,omitempty"`
	Items     []PlanItem `json:"tasks"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ExternalEvent is one record pulled from an outside source. The pair
// (Source, ExternalID) is unique and makes sync runs re-runnable.
type ExternalEvent struct {
	ID              uuid.UUID       `json:"id"`
	Source          string          `json:"source"`
	ExternalID      string          `json:"external_id"`
	Title           string          `json:"title"`
	Summary         string          `json:"summary,omitempty"`
	OccurredAt      *time.Time      `json:"occurred_at,omitempty"`
	DurationMinutes int             `json:"duration_minutes,omitempty"`
	ContactID       *uuid.UUID      `json:"contact_id,omitempty"`
	MatchConfidence Confidence      `json:"match_confidence,omitempty"`
	NeedsReview     bool            `json:"needs_review"`
	ProposedStatus  Status          `json:"proposed_status,omitempty"`
	Reasons         []string        `json:"reasons,omitempty"`
	Excluded        bool            `json:"excluded"`
	Raw             json.RawMessage `json:"raw,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type ActionItem struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"event_id"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TaskID      *uuid.UUID `json:"task_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Sync run status constants.
const (
	RunStarted   = "started"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Sync run type constants.
const (
	RunManual    = "manual"
	RunScheduled = "scheduled"
)

type SyncRun struct {
	ID              string     `json:"id"`
	Type            string     `json:"sync_type"`
	Source          string     `json:"source"`
	Status          string     `json:"status"`
	Processed       int        `json:"processed"`
	New             int        `json:"new"`
	ContactsCreated int        `json:"contacts_created"`
	NeedsReview     int        `json:"needs_review"`
	Failed          int        `json:"failed"`
	Errors          []string   `json:"errors,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Sync status constants.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusError   = "error"
)

type SyncState struct {
	Service      string     `json:"service"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Outreach type values produced by the classifier.
const (
	OutreachMeetingRequest = "meeting_request"
	OutreachProposal       = "proposal"
	OutreachPartnership    = "partnership"
	OutreachIntro          = "intro"
	OutreachFollowUp       = "follow_up"
	OutreachOther          = "other"
)

// Sentiment values produced by the classifier.
const (
	SentimentInterested    = "interested"
	SentimentNeutral       = "neutral"
	SentimentNotInterested = "not_interested"
)

// Relationship type values produced by meeting extraction.
const (
	RelationshipClient   = "client"
	RelationshipProspect = "prospect"
	RelationshipUnknown  = "unknown"
)

// Judgment is the structured answer of the LLM classifier. It is advisory:
// the reconciliation rules decide what to do with it.
type Judgment struct {
	IsBusinessOutreach bool    `json:"is_business_outreach"`
	OutreachType       string  `json:"outreach_type"`
	IntentLevel        string  `json:"intent_level"`
	Sentiment          string  `json:"sentiment"`
	Confidence         float64 `json:"confidence"`
	Summary            string  `json:"summary"`
	FullName           string  `json:"full_name,omitempty"`
	Company            string  `json:"company,omitempty"`
	Email              string  `json:"email,omitempty"`
	RelationshipType   string  `json:"relationship_type,omitempty"`
}
