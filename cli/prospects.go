// ABOUTME: Prospect management subcommands
// ABOUTME: Adds, lists, shows, moves through the pipeline, and deletes prospects
package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
)

func newProspectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prospect",
		Aliases: []string{"prospects", "p"},
		Short:   "Manage prospects",
	}
	cmd.AddCommand(
		newProspectAddCmd(app),
		newProspectListCmd(app),
		newProspectShowCmd(app),
		newProspectStatusCmd(app),
		newProspectDeleteCmd(app),
	)
	return cmd
}

func newProspectAddCmd(app *App) *cobra.Command {
	var c models.Contact
	var status string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a prospect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Name = strings.TrimSpace(args[0])
			if c.Name == "" {
				return fmt.Errorf("name is required")
			}
			if status != "" {
				st, err := models.ParseStatus(status)
				if err != nil {
					return err
				}
				c.Status = st
			}
			if missing := c.MissingNextAction(); len(missing) > 0 {
				return fmt.Errorf("missing required fields for active deal: %s", strings.Join(missing, ", "))
			}

			if err := app.store.CreateContact(cmd.Context(), &c); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "✓ Added %s (%s) as %s\n", c.Name, c.ID, c.Status)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&c.Email, "email", "", "Email address")
	f.StringVar(&c.Company, "company", "", "Company name")
	f.StringVar(&c.LinkedIn, "linkedin", "", "LinkedIn profile URL")
	f.StringVar(&c.Notes, "notes", "", "Free-form notes")
	f.StringVar(&status, "status", "", "Pipeline status (default new)")
	f.StringVar(&c.NextFollowup, "followup", "", "Next follow-up date (YYYY-MM-DD)")
	addNextActionFlags(cmd, &c)
	return cmd
}

func addNextActionFlags(cmd *cobra.Command, c *models.Contact) {
	f := cmd.Flags()
	f.StringVar(&c.NextAction, "next-action", "", "Next action for an active deal")
	f.StringVar(&c.NextActionDue, "due", "", "Next action due date (YYYY-MM-DD)")
	f.StringVar(&c.ActionChannel, "channel", "", "Channel for the next action")
	f.StringVar(&c.ActionObjective, "objective", "", "Objective of the next action")
}

func newProspectListCmd(app *App) *cobra.Command {
	var filter db.ContactFilter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prospects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				st, err := models.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			contacts, err := app.store.ListContacts(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(contacts) == 0 {
				fmt.Fprintln(out(cmd), "No prospects found")
				return nil
			}

			tw := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tSTATUS\tNEXT ACTION\tDUE")
			for _, c := range contacts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					c.ID.String()[:8], c.Name, c.Company, c.Status, c.NextAction, c.NextActionDue)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVarP(&filter.Query, "query", "q", "", "Match name, email, or company")
	f.StringVar(&status, "status", "", "Only prospects in this status")
	f.StringVar(&filter.Company, "company", "", "Only prospects at this company")
	f.IntVar(&filter.Limit, "limit", 50, "Maximum results")
	return cmd
}

func newProspectShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one prospect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.resolveContact(cmd, args[0])
			if err != nil {
				return err
			}
			w := out(cmd)
			fmt.Fprintf(w, "%s\n", c.Name)
			fmt.Fprintf(w, "  id:       %s\n", c.ID)
			fmt.Fprintf(w, "  status:   %s\n", c.Status)
			printField(w, "company", c.Company)
			printField(w, "email", c.Email)
			printField(w, "linkedin", c.LinkedIn)
			printField(w, "followup", c.NextFollowup)
			printField(w, "next", c.NextAction)
			printField(w, "due", c.NextActionDue)
			printField(w, "channel", c.ActionChannel)
			printField(w, "goal", c.ActionObjective)
			printField(w, "notes", c.Notes)
			if c.AutoCreated {
				fmt.Fprintln(w, "  (created by sync)")
			}
			return nil
		},
	}
}

func newProspectStatusCmd(app *App) *cobra.Command {
	var next models.Contact

	cmd := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Move a prospect to a new pipeline status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := models.ParseStatus(args[1])
			if err != nil {
				return err
			}
			c, err := app.resolveContact(cmd, args[0])
			if err != nil {
				return err
			}

			c.Status = status
			changed := mergeNextAction(c, next)
			if missing := c.MissingNextAction(); len(missing) > 0 {
				return fmt.Errorf("missing required fields for active deal: %s", strings.Join(missing, ", "))
			}

			ctx := cmd.Context()
			if changed {
				err = app.store.UpdateContact(ctx, c)
			} else {
				err = app.store.SetStatus(ctx, c.ID, status, "cli")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "✓ %s is now %s\n", c.Name, status)
			return nil
		},
	}
	addNextActionFlags(cmd, &next)
	return cmd
}

// mergeNextAction copies the non-empty next-action fields of src into c.
func mergeNextAction(c *models.Contact, src models.Contact) bool {
	changed := false
	set := func(dst *string, val string) {
		if val != "" {
			*dst = val
			changed = true
		}
	}
	set(&c.NextAction, src.NextAction)
	set(&c.NextActionDue, src.NextActionDue)
	set(&c.ActionChannel, src.ActionChannel)
	set(&c.ActionObjective, src.ActionObjective)
	return changed
}

func newProspectDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a prospect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.resolveContact(cmd, args[0])
			if err != nil {
				return err
			}
			if err := app.store.DeleteContact(cmd.Context(), c.ID); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "✓ Deleted %s\n", c.Name)
			return nil
		},
	}
}

// resolveContact accepts a full id or an unambiguous id prefix as printed
// by prospect list.
func (a *App) resolveContact(cmd *cobra.Command, ref string) (*models.Contact, error) {
	ctx := cmd.Context()
	if id, err := uuid.Parse(ref); err == nil {
		c, err := a.store.GetContact(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("prospect %s: %w", ref, db.ErrNotFound)
		}
		return c, nil
	}

	contacts, err := a.store.ListContacts(ctx, db.ContactFilter{})
	if err != nil {
		return nil, err
	}
	var found *models.Contact
	for i := range contacts {
		if strings.HasPrefix(contacts[i].ID.String(), strings.ToLower(ref)) {
			if found != nil {
				return nil, fmt.Errorf("prospect id %q is ambiguous", ref)
			}
			found = &contacts[i]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("prospect %s: %w", ref, db.ErrNotFound)
	}
	return found, nil
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "  %-9s %s\n", label+":", value)
}
