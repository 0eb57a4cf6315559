// ABOUTME: Review queue subcommands
// ABOUTME: Lists synced events that need a human decision and applies them to contacts
package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
)

func newReviewCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work through synced events that need review",
	}
	cmd.AddCommand(newReviewListCmd(app), newReviewApplyCmd(app))
	return cmd
}

func newReviewListCmd(app *App) *cobra.Command {
	var source string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events waiting for review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pending := true
			events, err := app.store.ListEvents(cmd.Context(), db.EventFilter{
				Source:      source,
				NeedsReview: &pending,
				Limit:       limit,
			})
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(out(cmd), "Review queue is empty")
				return nil
			}

			w := out(cmd)
			for _, e := range events {
				when := ""
				if e.OccurredAt != nil {
					when = e.OccurredAt.Format(models.DateLayout)
				}
				fmt.Fprintf(w, "%s  [%s] %s  %s\n", e.ID, e.Source, when, e.Title)
				if e.ProposedStatus != "" {
					fmt.Fprintf(w, "    proposed: %s (%s)\n", e.ProposedStatus, e.MatchConfidence)
				}
				if len(e.Reasons) > 0 {
					fmt.Fprintf(w, "    why: %s\n", strings.Join(e.Reasons, "; "))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Only events from this source")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum results")
	return cmd
}

func newReviewApplyCmd(app *App) *cobra.Command {
	var contactRef, status string
	var candidate models.Contact

	cmd := &cobra.Command{
		Use:   "apply EVENT_ID",
		Short: "Link an event to a prospect and apply its status",
		Long: `Links the event to an existing prospect (--contact) or to one matched or
created from --name/--email, then applies --status or the proposed status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid event id %q", args[0])
			}

			var contactID *uuid.UUID
			if contactRef != "" {
				c, err := app.resolveContact(cmd, contactRef)
				if err != nil {
					return err
				}
				contactID = &c.ID
			} else if candidate.Name == "" && candidate.Email == "" {
				return fmt.Errorf("--contact or --name/--email is required")
			}

			var st models.Status
			if status != "" {
				if st, err = models.ParseStatus(status); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			runner, err := app.syncRunner(ctx)
			if err != nil {
				return err
			}
			contact, err := runner.ForceApply(ctx, eventID, contactID, candidate, st)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "✓ Linked to %s (%s)\n", contact.Name, contact.Status)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&contactRef, "contact", "", "Existing prospect id")
	f.StringVar(&candidate.Name, "name", "", "Prospect name when matching or creating")
	f.StringVar(&candidate.Email, "email", "", "Prospect email when matching or creating")
	f.StringVar(&candidate.Company, "company", "", "Prospect company when creating")
	f.StringVar(&status, "status", "", "Status to apply (default: proposed status)")
	return cmd
}
