// ABOUTME: Task, daily plan, and dashboard subcommands
// ABOUTME: Keeps the day's to-do list and the single main focus in the store
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/viz"
)

func today() string {
	return time.Now().Format(models.DateLayout)
}

func newTaskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks", "t"},
		Short:   "Manage tasks",
	}
	cmd.AddCommand(
		newTaskAddCmd(app),
		newTaskListCmd(app),
		newTaskCompleteCmd(app),
		newTaskReopenCmd(app),
		newTaskRescheduleCmd(app),
	)
	return cmd
}

func newTaskAddCmd(app *App) *cobra.Command {
	var scheduled string

	cmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			task, err := app.store.AddTask(cmd.Context(), text, today(), scheduled)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "✓ Added task %s\n", task.ID.String()[:8])
			return nil
		},
	}
	cmd.Flags().StringVar(&scheduled, "on", "", "Schedule for a date (YYYY-MM-DD)")
	return cmd
}

func newTaskListCmd(app *App) *cobra.Command {
	var filter db.TaskFilter
	var all, done bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case done:
				completed := true
				filter.Completed = &completed
			case !all:
				open := false
				filter.Completed = &open
			}

			tasks, err := app.store.ListTasks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out(cmd), "No tasks")
				return nil
			}
			for _, t := range tasks {
				printTask(cmd, t)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&all, "all", false, "Include completed tasks")
	f.BoolVar(&done, "done", false, "Only completed tasks")
	f.StringVar(&filter.ScheduledDate, "on", "", "Only tasks scheduled for a date")
	f.IntVar(&filter.Limit, "limit", 100, "Maximum results")
	return cmd
}

func printTask(cmd *cobra.Command, t models.Task) {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	line := fmt.Sprintf("%s %s  %s", box, t.ID.String()[:8], t.Text)
	if t.ScheduledDate != "" {
		line += fmt.Sprintf("  (%s)", t.ScheduledDate)
	}
	fmt.Fprintln(out(cmd), line)
}

func newTaskCompleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "complete ID",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.resolveTask(cmd, args[0])
			if err != nil {
				return err
			}
			task, err := app.store.CompleteTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "✓ Completed: %s\n", task.Text)
			return nil
		},
	}
}

func newTaskReopenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen ID",
		Short: "Mark a task not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.resolveTask(cmd, args[0])
			if err != nil {
				return err
			}
			task, err := app.store.ReopenTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "✓ Reopened: %s\n", task.Text)
			return nil
		},
	}
}

func newTaskRescheduleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule ID DATE",
		Short: "Move a task to another date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.resolveTask(cmd, args[0])
			if err != nil {
				return err
			}
			task, err := app.store.RescheduleTask(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "✓ %s scheduled for %s\n", task.Text, task.ScheduledDate)
			return nil
		},
	}
}

// resolveTask accepts a full id or an unambiguous prefix of an id.
func (a *App) resolveTask(cmd *cobra.Command, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	tasks, err := a.store.ListTasks(cmd.Context(), db.TaskFilter{})
	if err != nil {
		return uuid.Nil, err
	}
	var found []uuid.UUID
	for _, t := range tasks {
		if strings.HasPrefix(t.ID.String(), strings.ToLower(ref)) {
			found = append(found, t.ID)
		}
	}
	switch len(found) {
	case 0:
		return uuid.Nil, fmt.Errorf("task %s: %w", ref, db.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return uuid.Nil, fmt.Errorf("task id %q is ambiguous", ref)
	}
}

func newPlanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show or set a daily plan",
	}
	cmd.AddCommand(newPlanShowCmd(app), newPlanSetCmd(app), newPlanUpdateCmd(app), newPlanRolloverCmd(app))
	return cmd
}

func newPlanShowCmd(app *App) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the plan for a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if date == "" {
				date = today()
			}
			plan, err := app.store.GetPlan(cmd.Context(), date)
			if err != nil {
				return err
			}
			if plan == nil {
				fmt.Fprintf(out(cmd), "No plan for %s\n", date)
				return nil
			}
			printPlan(cmd, plan)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to show (default today)")
	return cmd
}

func newPlanSetCmd(app *App) *cobra.Command {
	var date, focus string
	var items []string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the plan for a day",
		Example: `  outreach plan set --focus "Close Acme pilot" \
    --item "Send Acme proposal" --item "Call Jordan"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if date == "" {
				date = today()
			}
			planItems := make([]models.PlanItem, 0, len(items))
			for _, text := range items {
				planItems = append(planItems, models.PlanItem{Text: text})
			}
			plan, err := app.store.SavePlan(cmd.Context(), date, focus, planItems)
			if err != nil {
				return err
			}
			printPlan(cmd, plan)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&date, "date", "", "Day to plan (default today)")
	f.StringVar(&focus, "focus", "", "The one thing that matters today")
	f.StringArrayVar(&items, "item", nil, "Planned task, repeatable and in order")
	return cmd
}

func newPlanUpdateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update [LINE...]",
		Short: "Edit today's or tomorrow's plan with short lines",
		Long: `Each line sets the main focus or one numbered item of a plan. Lines
starting with "tomorrow" edit tomorrow; everything else edits today. With no
arguments the lines are read from stdin.`,
		Example: `  outreach plan update "one thing: Close Acme" "2: Call Dana"
  outreach plan update "tomorrow 1: Send contract"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, "\n")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read plan lines: %w", err)
				}
				text = string(raw)
			}

			update := models.ParsePlanUpdate(text)
			if update.Today.Empty() && update.Tomorrow.Empty() {
				return fmt.Errorf("no plan edits found, use lines like \"2: Call Dana\" or \"tomorrow one thing: Ship\"")
			}

			now := time.Now()
			days := []struct {
				date string
				edit models.PlanEdit
			}{
				{now.Format(models.DateLayout), update.Today},
				{now.AddDate(0, 0, 1).Format(models.DateLayout), update.Tomorrow},
			}
			for _, day := range days {
				if day.edit.Empty() {
					continue
				}
				plan, err := app.store.ApplyPlanEdit(cmd.Context(), day.date, day.edit)
				if err != nil {
					return err
				}
				printPlan(cmd, plan)
			}
			for _, line := range update.Ignored {
				fmt.Fprintf(stderr(cmd), "ignored: %s\n", strings.TrimSpace(line))
			}
			return nil
		},
	}
}

func newPlanRolloverCmd(app *App) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Start the day on a plan made in advance",
		Long:  "Reopens plan tasks that were marked done before the plan's day began.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if date == "" {
				date = today()
			}
			plan, reopened, err := app.store.RolloverPlan(cmd.Context(), date)
			if err != nil {
				return err
			}
			if plan == nil {
				fmt.Fprintf(out(cmd), "No plan for %s\n", date)
				return nil
			}
			fmt.Fprintf(out(cmd), "✓ Rolled over %s (%d reopened)\n", date, reopened)
			printPlan(cmd, plan)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to start (default today)")
	return cmd
}

func printPlan(cmd *cobra.Command, plan *models.DailyPlan) {
	w := out(cmd)
	fmt.Fprintf(w, "Plan for %s\n", plan.Date)
	if plan.MainFocus != "" {
		fmt.Fprintf(w, "  ★ %s\n", plan.MainFocus)
	}
	for i, item := range plan.Items {
		fmt.Fprintf(w, "  %d. %s\n", i+1, item.Text)
	}
}

func newStatsCmd(app *App) *cobra.Command {
	var daily bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the pipeline dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if daily {
				summary, err := viz.GenerateDailySummary(cmd.Context(), app.store, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprint(out(cmd), viz.RenderDailySummary(summary))
				return nil
			}
			stats, err := viz.GenerateDashboardStats(cmd.Context(), app.store, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprint(out(cmd), viz.RenderDashboard(stats))
			return nil
		},
	}
	cmd.Flags().BoolVar(&daily, "daily", false, "Show the daily summary with yesterday's completions")
	return cmd
}
