// ABOUTME: Task and daily plan MCP tool handlers
// ABOUTME: Implements add_task, complete_task, plan_day, and update_plan tools
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
)

type TaskHandlers struct {
	store *db.Store
	now   func() time.Time
}

func NewTaskHandlers(store *db.Store) *TaskHandlers {
	return &TaskHandlers{store: store, now: time.Now}
}

type AddTaskInput struct {
	Text          string `json:"text" jsonschema:"Task text (required)"`
	DateScheduled string `json:"date_scheduled,omitempty" jsonschema:"Day the task is planned for (YYYY-MM-DD)"`
}

type TaskOutput struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Completed     bool   `json:"completed"`
	DateEntered   string `json:"date_entered"`
	DateScheduled string `json:"date_scheduled,omitempty"`
}

func (h *TaskHandlers) AddTask(ctx context.Context, _ *mcp.CallToolRequest, input AddTaskInput) (*mcp.CallToolResult, TaskOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, TaskOutput{}, fmt.Errorf("text is required")
	}
	task, err := h.store.AddTask(ctx, input.Text, h.today(), input.DateScheduled)
	if err != nil {
		return nil, TaskOutput{}, fmt.Errorf("failed to add task: %w", err)
	}
	return nil, taskToOutput(task), nil
}

type CompleteTaskInput struct {
	ID string `json:"id" jsonschema:"Task ID (required)"`
}

func (h *TaskHandlers) CompleteTask(ctx context.Context, _ *mcp.CallToolRequest, input CompleteTaskInput) (*mcp.CallToolResult, TaskOutput, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, TaskOutput{}, fmt.Errorf("invalid task ID: %w", err)
	}
	task, err := h.store.CompleteTask(ctx, id)
	if err != nil {
		return nil, TaskOutput{}, fmt.Errorf("failed to complete task: %w", err)
	}
	return nil, taskToOutput(task), nil
}

type PlanDayInput struct {
	Date     string   `json:"date,omitempty" jsonschema:"Day to plan (YYYY-MM-DD, default today)"`
	OneThing string   `json:"one_thing,omitempty" jsonschema:"The single most important thing for the day"`
	Tasks    []string `json:"tasks,omitempty" jsonschema:"Ordered task texts; each becomes a task entered on that day"`
}

type PlanOutput struct {
	Date     string       `json:"date"`
	OneThing string       `json:"one_thing,omitempty"`
	Tasks    []TaskOutput `json:"tasks"`
}

// PlanDay replaces the plan for a day. Without tasks and focus it only
// reads the plan.
func (h *TaskHandlers) PlanDay(ctx context.Context, _ *mcp.CallToolRequest, input PlanDayInput) (*mcp.CallToolResult, PlanOutput, error) {
	date := input.Date
	if date == "" {
		date = h.today()
	}

	var plan *models.DailyPlan
	var err error
	if strings.TrimSpace(input.OneThing) == "" && len(input.Tasks) == 0 {
		plan, err = h.store.GetOrCreatePlan(ctx, date)
	} else {
		items := make([]models.PlanItem, 0, len(input.Tasks))
		for _, text := range input.Tasks {
			items = append(items, models.PlanItem{Text: text})
		}
		plan, err = h.store.SavePlan(ctx, date, input.OneThing, items)
	}
	if err != nil {
		return nil, PlanOutput{}, fmt.Errorf("failed to plan day: %w", err)
	}

	out, err := h.planOutput(ctx, plan)
	if err != nil {
		return nil, PlanOutput{}, err
	}
	return nil, out, nil
}

func (h *TaskHandlers) planOutput(ctx context.Context, plan *models.DailyPlan) (PlanOutput, error) {
	out := PlanOutput{Date: plan.Date, OneThing: plan.MainFocus, Tasks: []TaskOutput{}}
	for _, item := range plan.Items {
		task := TaskOutput{Text: item.Text, DateEntered: plan.Date}
		if item.TaskID != nil {
			stored, err := h.store.GetTask(ctx, *item.TaskID)
			if err != nil {
				return PlanOutput{}, fmt.Errorf("failed to fetch plan task: %w", err)
			}
			if stored != nil {
				task = taskToOutput(stored)
			}
		}
		out.Tasks = append(out.Tasks, task)
	}
	return out, nil
}

type UpdatePlanInput struct {
	Text string `json:"text" jsonschema:"One edit per line, e.g. 'one thing: Close Acme', '2: Call Dana', 'tomorrow 1: Send contract' (required)"`
}

type UpdatePlanOutput struct {
	Today    *PlanOutput `json:"today,omitempty"`
	Tomorrow *PlanOutput `json:"tomorrow,omitempty"`
	Ignored  []string    `json:"ignored"`
}

// UpdatePlan edits numbered slots and the focus of today's and tomorrow's
// plans from short text lines.
func (h *TaskHandlers) UpdatePlan(ctx context.Context, _ *mcp.CallToolRequest, input UpdatePlanInput) (*mcp.CallToolResult, UpdatePlanOutput, error) {
	update := models.ParsePlanUpdate(input.Text)
	if update.Today.Empty() && update.Tomorrow.Empty() {
		return nil, UpdatePlanOutput{}, fmt.Errorf("no plan edits found in text")
	}

	now := h.now()
	out := UpdatePlanOutput{Ignored: []string{}}
	for _, line := range update.Ignored {
		out.Ignored = append(out.Ignored, strings.TrimSpace(line))
	}

	apply := func(date string, edit models.PlanEdit) (*PlanOutput, error) {
		if edit.Empty() {
			return nil, nil
		}
		plan, err := h.store.ApplyPlanEdit(ctx, date, edit)
		if err != nil {
			return nil, fmt.Errorf("failed to update plan: %w", err)
		}
		po, err := h.planOutput(ctx, plan)
		if err != nil {
			return nil, err
		}
		return &po, nil
	}

	var err error
	if out.Today, err = apply(now.Format(models.DateLayout), update.Today); err != nil {
		return nil, UpdatePlanOutput{}, err
	}
	if out.Tomorrow, err = apply(now.AddDate(0, 0, 1).Format(models.DateLayout), update.Tomorrow); err != nil {
		return nil, UpdatePlanOutput{}, err
	}
	return nil, out, nil
}

func (h *TaskHandlers) today() string {
	return h.now().Format(models.DateLayout)
}

func taskToOutput(t *models.Task) TaskOutput {
	return TaskOutput{
		ID:            t.ID.String(),
		Text:          t.Text,
		Completed:     t.Completed,
		DateEntered:   t.EntryDate,
		DateScheduled: t.ScheduledDate,
	}
}
