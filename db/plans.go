// ABOUTME: Daily plan store operations
// ABOUTME: Race-free get-or-create per date and plan saves that back items with task rows
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

func scanPlan(row rowScanner) (*models.DailyPlan, error) {
	var p models.DailyPlan
	var items string
	if err := row.Scan(&p.ID, &p.Date, &p.MainFocus, &items, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &p.Items); err != nil {
		return nil, fmt.Errorf("failed to decode plan items: %w", err)
	}
	if p.Items == nil {
		p.Items = []models.PlanItem{}
	}
	return &p, nil
}

// GetPlan returns nil, nil when no plan exists for date.
func (s *Store) GetPlan(ctx context.Context, date string) (*models.DailyPlan, error) {
	p, err := s.getPlan(ctx, s.db, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Store) getPlan(ctx context.Context, q querier, date string) (*models.DailyPlan, error) {
	p, err := scanPlan(s.queryRow(ctx, q, `
		SELECT id, date, one_thing, tasks, created_at, updated_at
		FROM daily_plans WHERE date = ?
	`, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get plan: %w", classify(err))
	}
	return p, nil
}

// GetOrCreatePlan returns the plan for date, creating an empty one if needed.
// Concurrent callers for the same date always observe the same row.
func (s *Store) GetOrCreatePlan(ctx context.Context, date string) (*models.DailyPlan, error) {
	if err := validDate(date); err != nil {
		return nil, err
	}
	return s.getOrCreatePlan(ctx, s.db, date)
}

func (s *Store) getOrCreatePlan(ctx context.Context, q querier, date string) (*models.DailyPlan, error) {
	now := time.Now().UTC()
	_, err := s.exec(ctx, q, `
		INSERT INTO daily_plans (id, date, one_thing, tasks, created_at, updated_at)
		VALUES (?, ?, '', '[]', ?, ?)
		ON CONFLICT(date) DO NOTHING
	`, uuid.New().String(), date, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", classify(err))
	}
	return s.getPlan(ctx, q, date)
}

// SavePlan sets the main focus and ordered items of the plan for date. Items
// that carry only text are linked to the task entered that day with the same
// text, or to a new one, so every plan item is backed by exactly one task.
func (s *Store) SavePlan(ctx context.Context, date, mainFocus string, items []models.PlanItem) (*models.DailyPlan, error) {
	if err := validDate(date); err != nil {
		return nil, err
	}

	var plan *models.DailyPlan
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getOrCreatePlan(ctx, tx, date)
		if err != nil {
			return err
		}

		backed := make([]models.PlanItem, 0, len(items))
		for _, item := range items {
			item.Text = strings.TrimSpace(item.Text)
			if item.TaskID == nil {
				if item.Text == "" {
					continue
				}
				task, err := s.findOrAddTask(ctx, tx, item.Text, date)
				if err != nil {
					return err
				}
				item.TaskID = &task.ID
			}
			backed = append(backed, item)
		}

		p.MainFocus = strings.TrimSpace(mainFocus)
		p.Items = backed
		if err := s.writePlan(ctx, tx, p); err != nil {
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Store) writePlan(ctx context.Context, q querier, p *models.DailyPlan) error {
	encoded, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("failed to encode plan items: %w", err)
	}
	p.UpdatedAt = time.Now().UTC()

	if _, err := s.exec(ctx, q, `
		UPDATE daily_plans SET one_thing = ?, tasks = ?, updated_at = ? WHERE id = ?
	`, p.MainFocus, string(encoded), p.UpdatedAt, p.ID.String()); err != nil {
		return fmt.Errorf("failed to save plan: %w", classify(err))
	}
	return nil
}

// ApplyPlanEdit changes the focus and numbered slots of the plan for date,
// leaving other slots alone. An edited slot keeps its task row with the new
// text and cleared completion; a slot past the end of the plan is appended.
func (s *Store) ApplyPlanEdit(ctx context.Context, date string, edit models.PlanEdit) (*models.DailyPlan, error) {
	if err := validDate(date); err != nil {
		return nil, err
	}

	var plan *models.DailyPlan
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getOrCreatePlan(ctx, tx, date)
		if err != nil {
			return err
		}

		if edit.Focus != nil {
			p.MainFocus = strings.TrimSpace(*edit.Focus)
		}
		for _, slot := range edit.Slots() {
			text := strings.TrimSpace(edit.Items[slot])
			if text == "" || slot < 0 || slot >= models.MaxPlanItems {
				continue
			}
			if slot < len(p.Items) {
				task, err := s.retextPlanTask(ctx, tx, p.Items[slot], text, date)
				if err != nil {
					return err
				}
				p.Items[slot] = models.PlanItem{TaskID: &task.ID, Text: text}
				continue
			}
			task, err := s.findOrAddTask(ctx, tx, text, date)
			if err != nil {
				return err
			}
			p.Items = append(p.Items, models.PlanItem{TaskID: &task.ID, Text: text})
		}

		if err := s.writePlan(ctx, tx, p); err != nil {
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// retextPlanTask finds the task behind item (by id, then by its old text,
// then by the new text) and rewrites it as an open task with text. Without
// a match a new task is entered on date.
func (s *Store) retextPlanTask(ctx context.Context, q querier, item models.PlanItem, text, date string) (*models.Task, error) {
	var task *models.Task
	var err error
	if item.TaskID != nil {
		if task, err = s.getTask(ctx, q, *item.TaskID); err != nil {
			return nil, err
		}
	}
	if task == nil && item.Text != "" {
		if task, err = s.findTask(ctx, q, item.Text, date); err != nil {
			return nil, err
		}
	}
	if task == nil {
		if task, err = s.findTask(ctx, q, text, date); err != nil {
			return nil, err
		}
	}
	if task == nil {
		return s.addTask(ctx, q, text, date, date)
	}

	now := time.Now().UTC()
	if _, err := s.exec(ctx, q, `
		UPDATE tasks SET text = ?, completed = ?, completed_at = NULL, updated_at = ?
		WHERE id = ?
	`, text, false, now, task.ID.String()); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", classify(err))
	}
	task.Text = text
	task.Completed = false
	task.CompletedAt = nil
	task.UpdatedAt = now
	return task, nil
}

// RolloverPlan starts the day of a plan written in advance: tasks behind its
// items that were completed before date are reopened. It returns the plan
// (nil when date has none) and how many tasks were reopened. Running it
// again the same day changes nothing.
func (s *Store) RolloverPlan(ctx context.Context, date string) (*models.DailyPlan, int, error) {
	dayStart, err := time.ParseInLocation(models.DateLayout, date, time.Local)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}

	var plan *models.DailyPlan
	reopened := 0
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getPlan(ctx, tx, date)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		plan = p

		now := time.Now().UTC()
		for _, item := range p.Items {
			if item.TaskID == nil {
				continue
			}
			task, err := s.getTask(ctx, tx, *item.TaskID)
			if err != nil {
				return err
			}
			if task == nil || !task.Completed || task.CompletedAt == nil || !task.CompletedAt.Before(dayStart) {
				continue
			}
			if _, err := s.exec(ctx, tx, `
				UPDATE tasks SET completed = ?, completed_at = NULL, updated_at = ? WHERE id = ?
			`, false, now, task.ID.String()); err != nil {
				return fmt.Errorf("failed to reopen task: %w", classify(err))
			}
			reopened++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return plan, reopened, nil
}
