// ABOUTME: Daily summary of the pipeline with yesterday's completions and today's plan
// ABOUTME: Plain text rendering suited to a chat message or a terminal
package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/outreach/models"
)

// SummaryStore adds task lookups to StatsStore.
type SummaryStore interface {
	StatsStore
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

type PlanLine struct {
	Text      string `json:"text"`
	TaskID    string `json:"task_id,omitempty"`
	Completed bool   `json:"completed"`
}

type DailySummary struct {
	Date               string          `json:"date"`
	Stats              *DashboardStats `json:"stats"`
	CompletedYesterday []string        `json:"completed_yesterday"`
	Focus              string          `json:"one_thing,omitempty"`
	Today              []PlanLine      `json:"today"`
}

// GenerateDailySummary reports the pipeline as of now, what got done from
// yesterday's plan, and today's plan with completion.
func GenerateDailySummary(ctx context.Context, store SummaryStore, now time.Time) (*DailySummary, error) {
	stats, err := GenerateDashboardStats(ctx, store, now)
	if err != nil {
		return nil, err
	}

	summary := &DailySummary{
		Date:               now.Format(models.DateLayout),
		Stats:              stats,
		CompletedYesterday: []string{},
		Today:              []PlanLine{},
	}

	yesterday, err := store.GetPlan(ctx, now.AddDate(0, 0, -1).Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch yesterday's plan: %w", err)
	}
	done, err := planLines(ctx, store, yesterday)
	if err != nil {
		return nil, err
	}
	for _, line := range done {
		if line.Completed {
			summary.CompletedYesterday = append(summary.CompletedYesterday, line.Text)
		}
	}

	if stats.Today != nil {
		summary.Focus = stats.Today.MainFocus
		if summary.Today, err = planLines(ctx, store, stats.Today); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func planLines(ctx context.Context, store SummaryStore, plan *models.DailyPlan) ([]PlanLine, error) {
	lines := []PlanLine{}
	if plan == nil {
		return lines, nil
	}
	for _, item := range plan.Items {
		if item.Text == "" {
			continue
		}
		line := PlanLine{Text: item.Text}
		if item.TaskID != nil {
			line.TaskID = item.TaskID.String()
			task, err := store.GetTask(ctx, *item.TaskID)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch plan task: %w", err)
			}
			line.Completed = task != nil && task.Completed
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func RenderDailySummary(s *DailySummary) string {
	var out strings.Builder

	out.WriteString(fmt.Sprintf("📊 Daily outreach update, %s\n\n", s.Date))
	out.WriteString(fmt.Sprintf("Total prospects: %d\n", s.Stats.Total))
	out.WriteString(fmt.Sprintf("Conversion rate: %.1f%%\n\n", s.Stats.ConversionRate))

	out.WriteString("Pipeline:\n")
	for _, status := range models.AllStatuses {
		out.WriteString(fmt.Sprintf("- %s: %d\n", status, s.Stats.ByStatus[status]))
	}

	if len(s.CompletedYesterday) > 0 {
		out.WriteString("\n✅ Completed yesterday:\n")
		for _, text := range s.CompletedYesterday {
			out.WriteString(fmt.Sprintf("- %s\n", text))
		}
	}

	if s.Focus != "" || len(s.Today) > 0 {
		out.WriteString("\n🎯 Today's focus:\n")
		if s.Focus != "" {
			out.WriteString(fmt.Sprintf("- One thing: %s\n", s.Focus))
		}
		for _, line := range s.Today {
			icon := "•"
			if line.Completed {
				icon = "✓"
			}
			out.WriteString(fmt.Sprintf("%s %s\n", icon, line.Text))
		}
	}

	return out.String()
}
