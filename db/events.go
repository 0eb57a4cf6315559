// ABOUTME: External event and action item store operations
// ABOUTME: Idempotent event records keyed by (source, external_id) plus meeting action items
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/outreach/models"
)

const eventColumns = `id, source, external_id, title, summary, occurred_at, duration_minutes, contact_id,
	match_confidence, needs_review, proposed_status, reasons, excluded, raw, created_at`

// EventFilter narrows ListEvents.
type EventFilter struct {
	Source      string
	NeedsReview *bool
	ContactID   *uuid.UUID
	Limit       int
	Offset      int
}

func scanEvent(row rowScanner) (*models.ExternalEvent, error) {
	var e models.ExternalEvent
	var occurredAt sql.NullTime
	var contactID uuid.NullUUID
	var confidence, proposed, reasons, raw string

	err := row.Scan(&e.ID, &e.Source, &e.ExternalID, &e.Title, &e.Summary, &occurredAt, &e.DurationMinutes,
		&contactID, &confidence, &e.NeedsReview, &proposed, &reasons, &e.Excluded, &raw, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	if occurredAt.Valid {
		ts := occurredAt.Time
		e.OccurredAt = &ts
	}
	if contactID.Valid {
		id := contactID.UUID
		e.ContactID = &id
	}
	e.MatchConfidence = models.Confidence(confidence)
	e.ProposedStatus = models.Status(proposed)
	if reasons != "" {
		if err := json.Unmarshal([]byte(reasons), &e.Reasons); err != nil {
			return nil, fmt.Errorf("failed to decode reasons: %w", err)
		}
	}
	if raw != "" {
		e.Raw = json.RawMessage(raw)
	}
	return &e, nil
}

// FindEventByExternalID returns nil, nil when the source has not seen id.
func (s *Store) FindEventByExternalID(ctx context.Context, source, externalID string) (*models.ExternalEvent, error) {
	e, err := scanEvent(s.queryRow(ctx, s.db, `
		SELECT `+eventColumns+` FROM external_events WHERE source = ? AND external_id = ?
	`, source, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", classify(err))
	}
	return e, nil
}

// GetEvent returns nil, nil when the id is unknown.
func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*models.ExternalEvent, error) {
	e, err := scanEvent(s.queryRow(ctx, s.db, `SELECT `+eventColumns+` FROM external_events WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", classify(err))
	}
	return e, nil
}

// CreateEvent records an external event. A second record for the same
// (source, external_id) yields ErrConflict.
func (s *Store) CreateEvent(ctx context.Context, event *models.ExternalEvent) error {
	event.ID = uuid.New()
	event.CreatedAt = time.Now().UTC()

	reasons, err := json.Marshal(event.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	var contactID any
	if event.ContactID != nil {
		contactID = event.ContactID.String()
	}
	var occurredAt any
	if event.OccurredAt != nil {
		occurredAt = event.OccurredAt.UTC()
	}

	_, err = s.exec(ctx, s.db, `
		INSERT INTO external_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID.String(), event.Source, event.ExternalID, event.Title, event.Summary, occurredAt,
		event.DurationMinutes, contactID, string(event.MatchConfidence), event.NeedsReview,
		string(event.ProposedStatus), string(reasons), event.Excluded, string(event.Raw), event.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("event %s/%s: %w", event.Source, event.ExternalID, ErrConflict)
		}
		return fmt.Errorf("failed to create event: %w", classify(err))
	}
	return nil
}

// LinkEvent attaches an event to a contact and clears its review flag.
func (s *Store) LinkEvent(ctx context.Context, id, contactID uuid.UUID, confidence models.Confidence) error {
	res, err := s.exec(ctx, s.db, `
		UPDATE external_events SET contact_id = ?, match_confidence = ?, needs_review = ? WHERE id = ?
	`, contactID.String(), string(confidence), false, id.String())
	if err != nil {
		return fmt.Errorf("failed to link event: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListEvents returns events newest first.
func (s *Store) ListEvents(ctx context.Context, filter EventFilter) ([]models.ExternalEvent, error) {
	var where []string
	var args []any

	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.NeedsReview != nil {
		where = append(where, "needs_review = ?")
		args = append(args, *filter.NeedsReview)
	}
	if filter.ContactID != nil {
		where = append(where, "contact_id = ?")
		args = append(args, filter.ContactID.String())
	}

	query := `SELECT ` + eventColumns + ` FROM external_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var events []models.ExternalEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", classify(err))
	}
	return events, nil
}

const actionItemColumns = `id, event_id, description, assignee, completed, completed_at, task_id, created_at`

func scanActionItem(row rowScanner) (*models.ActionItem, error) {
	var a models.ActionItem
	var completedAt sql.NullTime
	var taskID uuid.NullUUID
	if err := row.Scan(&a.ID, &a.EventID, &a.Description, &a.Assignee, &a.Completed, &completedAt, &taskID, &a.CreatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		ts := completedAt.Time
		a.CompletedAt = &ts
	}
	if taskID.Valid {
		id := taskID.UUID
		a.TaskID = &id
	}
	return &a, nil
}

// CreateActionItem records a follow-up captured from a meeting.
func (s *Store) CreateActionItem(ctx context.Context, item *models.ActionItem) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now().UTC()

	_, err := s.exec(ctx, s.db, `
		INSERT INTO action_items (`+actionItemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID.String(), item.EventID.String(), item.Description, item.Assignee, false, nil, nil, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create action item: %w", classify(err))
	}
	return nil
}

// GetActionItem returns nil, nil when the id is unknown.
func (s *Store) GetActionItem(ctx context.Context, id uuid.UUID) (*models.ActionItem, error) {
	a, err := scanActionItem(s.queryRow(ctx, s.db, `SELECT `+actionItemColumns+` FROM action_items WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action item: %w", classify(err))
	}
	return a, nil
}

// ListActionItems returns the action items of an event in creation order.
func (s *Store) ListActionItems(ctx context.Context, eventID uuid.UUID) ([]models.ActionItem, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+actionItemColumns+` FROM action_items WHERE event_id = ? ORDER BY created_at
	`, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list action items: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var items []models.ActionItem
	for rows.Next() {
		a, err := scanActionItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action item: %w", err)
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

// SetActionItemCompleted toggles completion. Completing an item that is not
// yet linked to a task creates one so the follow-up shows in the task list.
func (s *Store) SetActionItemCompleted(ctx context.Context, id uuid.UUID, completed bool) (*models.ActionItem, error) {
	var result *models.ActionItem
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		item, err := scanActionItem(s.queryRow(ctx, tx, `SELECT `+actionItemColumns+` FROM action_items WHERE id = ?`, id.String()))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("action item %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get action item: %w", classify(err))
		}

		now := time.Now().UTC()
		if completed && item.TaskID == nil {
			today := now.Format(models.DateLayout)
			task, err := s.addTask(ctx, tx, item.Description, today, "")
			if err != nil {
				return err
			}
			item.TaskID = &task.ID
		}
		if completed && !item.Completed {
			item.CompletedAt = &now
		}
		if !completed {
			item.CompletedAt = nil
		}
		item.Completed = completed

		var taskID any
		if item.TaskID != nil {
			taskID = item.TaskID.String()
			if _, err := s.exec(ctx, tx, `
				UPDATE tasks SET completed = ?, completed_at = ?, updated_at = ? WHERE id = ?
			`, completed, nullableTime(item.CompletedAt), now, taskID); err != nil {
				return fmt.Errorf("failed to sync linked task: %w", classify(err))
			}
		}

		if _, err := s.exec(ctx, tx, `
			UPDATE action_items SET completed = ?, completed_at = ?, task_id = ? WHERE id = ?
		`, completed, nullableTime(item.CompletedAt), taskID, id.String()); err != nil {
			return fmt.Errorf("failed to update action item: %w", classify(err))
		}

		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
