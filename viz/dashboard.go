// ABOUTME: Pipeline statistics and terminal dashboard rendering
// ABOUTME: Counts by status, conversion and response rates, overdue follow-ups, and today's plan
package viz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
)

// StatsStore is the read side of the store the dashboard needs.
type StatsStore interface {
	ListContacts(ctx context.Context, filter db.ContactFilter) ([]models.Contact, error)
	GetPlan(ctx context.Context, date string) (*models.DailyPlan, error)
	ListTasks(ctx context.Context, filter db.TaskFilter) ([]models.Task, error)
}

type DashboardStats struct {
	Total          int                   `json:"total"`
	ByStatus       map[models.Status]int `json:"by_status"`
	WeekAdded      int                   `json:"week_added"`
	WeekContacted  int                   `json:"week_contacted"`
	ConversionRate float64               `json:"conversion_rate"`
	ResponseRate   float64               `json:"response_rate"`

	// Needs attention
	OverdueFollowups []FollowupItem `json:"overdue_followups,omitempty"`

	Today     *models.DailyPlan `json:"today,omitempty"`
	OpenTasks int               `json:"open_tasks"`
}

type FollowupItem struct {
	ContactID string        `json:"contact_id"`
	Name      string        `json:"name"`
	Status    models.Status `json:"status"`
	Due       string        `json:"due"`
	DaysLate  int           `json:"days_late"`
}

// GenerateDashboardStats computes pipeline stats as of now. Rates are
// percentages rounded to one decimal.
func GenerateDashboardStats(ctx context.Context, store StatsStore, now time.Time) (*DashboardStats, error) {
	contacts, err := store.ListContacts(ctx, db.ContactFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contacts: %w", err)
	}

	stats := &DashboardStats{
		Total:    len(contacts),
		ByStatus: make(map[models.Status]int),
	}

	today := now.Format(models.DateLayout)
	weekAgo := now.AddDate(0, 0, -7)
	for _, c := range contacts {
		status := c.Status
		if status == "" {
			status = models.StatusNew
		}
		stats.ByStatus[status]++

		if c.CreatedAt.After(weekAgo) {
			stats.WeekAdded++
		}
		if status != models.StatusNew && c.UpdatedAt.After(weekAgo) {
			stats.WeekContacted++
		}

		if c.NextFollowup != "" && c.NextFollowup < today && status != models.StatusLost && status != models.StatusClient {
			due, err := time.Parse(models.DateLayout, c.NextFollowup)
			if err != nil {
				continue
			}
			stats.OverdueFollowups = append(stats.OverdueFollowups, FollowupItem{
				ContactID: c.ID.String(),
				Name:      c.Name,
				Status:    status,
				Due:       c.NextFollowup,
				DaysLate:  int(now.Sub(due).Hours() / 24),
			})
		}
	}

	stats.ConversionRate, stats.ResponseRate = Rates(stats.ByStatus, stats.Total)

	plan, err := store.GetPlan(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch today's plan: %w", err)
	}
	stats.Today = plan

	open := false
	tasks, err := store.ListTasks(ctx, db.TaskFilter{Completed: &open})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open tasks: %w", err)
	}
	stats.OpenTasks = len(tasks)

	return stats, nil
}

// Rates returns the conversion rate (closed share of all prospects) and the
// response rate (responded or further, over everyone past new).
func Rates(byStatus map[models.Status]int, total int) (conversion, response float64) {
	if total > 0 {
		conversion = round1(float64(byStatus[models.StatusClosed]) / float64(total) * 100)
	}

	respondedPlus := byStatus[models.StatusResponded] +
		byStatus[models.StatusCallScheduled] +
		byStatus[models.StatusClosed] +
		byStatus[models.StatusLost]
	contacted := total - byStatus[models.StatusNew]
	if contacted > 0 {
		response = round1(float64(respondedPlus) / float64(contacted) * 100)
	}
	return conversion, response
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  OUTREACH DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	out.WriteString("PIPELINE\n")
	renderPipeline(&out, stats.ByStatus)
	out.WriteString("\n")

	out.WriteString("STATS\n")
	out.WriteString(fmt.Sprintf("  %d prospects  %d added this week  %d touched this week\n",
		stats.Total, stats.WeekAdded, stats.WeekContacted))
	out.WriteString(fmt.Sprintf("  conversion %.1f%%  response %.1f%%  %d open tasks\n\n",
		stats.ConversionRate, stats.ResponseRate, stats.OpenTasks))

	if stats.Today != nil {
		out.WriteString("TODAY\n")
		if stats.Today.MainFocus != "" {
			out.WriteString(fmt.Sprintf("  ★ %s\n", stats.Today.MainFocus))
		}
		for i, item := range stats.Today.Items {
			out.WriteString(fmt.Sprintf("  %d. %s\n", i+1, item.Text))
		}
		out.WriteString("\n")
	}

	if len(stats.OverdueFollowups) > 0 {
		out.WriteString("NEEDS ATTENTION\n")
		out.WriteString(fmt.Sprintf("  ⚠️  %d follow-ups overdue\n", len(stats.OverdueFollowups)))
		for _, f := range stats.OverdueFollowups {
			out.WriteString(fmt.Sprintf("     %s (%s) due %s, %d days late\n", f.Name, f.Status, f.Due, f.DaysLate))
		}
	}

	return out.String()
}

func renderPipeline(out *strings.Builder, byStatus map[models.Status]int) {
	maxCount := 0
	for _, n := range byStatus {
		if n > maxCount {
			maxCount = n
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, status := range models.AllStatuses {
		n, exists := byStatus[status]
		if !exists {
			continue
		}

		barLength := (n * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)
		out.WriteString(fmt.Sprintf("  %-15s %s  %2d\n", status, bar, n))
	}
}
