// ABOUTME: Task store operations
// ABOUTME: Add, idempotent complete, reopen, reschedule, and filtered listing; tasks are never deleted
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/outreach/models"
)

const taskColumns = `id, text, completed, completed_at, date_entered, date_scheduled, created_at, updated_at`

// TaskFilter narrows ListTasks. Completed is tri-state: nil lists everything.
type TaskFilter struct {
	EntryDate     string
	ScheduledDate string
	Completed     *bool
	Limit         int
	Offset        int
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.Text, &t.Completed, &completedAt, &t.EntryDate, &t.ScheduledDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		ts := completedAt.Time
		t.CompletedAt = &ts
	}
	return &t, nil
}

// AddTask creates an open task. entryDate defaults to today.
func (s *Store) AddTask(ctx context.Context, text, entryDate, scheduledDate string) (*models.Task, error) {
	return s.addTask(ctx, s.db, text, entryDate, scheduledDate)
}

func (s *Store) addTask(ctx context.Context, q querier, text, entryDate, scheduledDate string) (*models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("task text is required")
	}
	if entryDate == "" {
		entryDate = time.Now().Format(models.DateLayout)
	}
	if err := validDate(entryDate); err != nil {
		return nil, err
	}
	if scheduledDate != "" {
		if err := validDate(scheduledDate); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:            uuid.New(),
		Text:          text,
		EntryDate:     entryDate,
		ScheduledDate: scheduledDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.exec(ctx, q, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID.String(), task.Text, false, nil, task.EntryDate, task.ScheduledDate, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", classify(err))
	}
	return task, nil
}

// findTask returns the task entered on entryDate with exactly text, or nil.
func (s *Store) findTask(ctx context.Context, q querier, text, entryDate string) (*models.Task, error) {
	t, err := scanTask(s.queryRow(ctx, q, `
		SELECT `+taskColumns+` FROM tasks
		WHERE date_entered = ? AND text = ?
		ORDER BY created_at LIMIT 1
	`, entryDate, strings.TrimSpace(text)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", classify(err))
	}
	return t, nil
}

func (s *Store) findOrAddTask(ctx context.Context, q querier, text, entryDate string) (*models.Task, error) {
	existing, err := s.findTask(ctx, q, text, entryDate)
	if err != nil || existing != nil {
		return existing, err
	}
	return s.addTask(ctx, q, text, entryDate, entryDate)
}

// GetTask returns nil, nil when the id is unknown.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.getTask(ctx, s.db, id)
}

func (s *Store) getTask(ctx context.Context, q querier, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(s.queryRow(ctx, q, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", classify(err))
	}
	return t, nil
}

// CompleteTask marks a task done. Completing an already completed task is a
// no-op and keeps the original completed_at.
func (s *Store) CompleteTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	now := time.Now().UTC()
	_, err := s.exec(ctx, s.db, `
		UPDATE tasks SET completed = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND completed = ?
	`, true, now, now, id.String(), false)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", classify(err))
	}
	return s.mustGetTask(ctx, id)
}

// ReopenTask clears completion.
func (s *Store) ReopenTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	_, err := s.exec(ctx, s.db, `
		UPDATE tasks SET completed = ?, completed_at = NULL, updated_at = ?
		WHERE id = ?
	`, false, time.Now().UTC(), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to reopen task: %w", classify(err))
	}
	return s.mustGetTask(ctx, id)
}

// RescheduleTask moves a task to date. An empty date unschedules it.
func (s *Store) RescheduleTask(ctx context.Context, id uuid.UUID, date string) (*models.Task, error) {
	if date != "" {
		if err := validDate(date); err != nil {
			return nil, err
		}
	}
	_, err := s.exec(ctx, s.db, `UPDATE tasks SET date_scheduled = ?, updated_at = ? WHERE id = ?`, date, time.Now().UTC(), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule task: %w", classify(err))
	}
	return s.mustGetTask(ctx, id)
}

// UpdateTaskText edits the task text.
func (s *Store) UpdateTaskText(ctx context.Context, id uuid.UUID, text string) (*models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("task text is required")
	}
	_, err := s.exec(ctx, s.db, `UPDATE tasks SET text = ?, updated_at = ? WHERE id = ?`, text, time.Now().UTC(), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", classify(err))
	}
	return s.mustGetTask(ctx, id)
}

func (s *Store) mustGetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// ListTasks returns tasks ordered by entry date, newest first.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	var where []string
	var args []any

	if filter.EntryDate != "" {
		where = append(where, "date_entered = ?")
		args = append(args, filter.EntryDate)
	}
	if filter.ScheduledDate != "" {
		where = append(where, "date_scheduled = ?")
		args = append(args, filter.ScheduledDate)
	}
	if filter.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, *filter.Completed)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date_entered DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", classify(err))
	}
	return tasks, nil
}

func validDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return nil
}
