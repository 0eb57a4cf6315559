// ABOUTME: MCP prompt handlers for recurring outreach workflows
// ABOUTME: Prospect summaries and the morning pipeline review
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/viz"
)

type PromptHandlers struct {
	store *db.Store
	now   func() time.Time
}

func NewPromptHandlers(store *db.Store) *PromptHandlers {
	return &PromptHandlers{store: store, now: time.Now}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "prospect-summary":
		return h.prospectSummary(ctx, request.Params.Arguments)
	case "daily-review":
		return h.dailyReview(ctx)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) prospectSummary(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	idStr, ok := args["prospect_id"]
	if !ok {
		return nil, fmt.Errorf("prospect_id is required")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid prospect_id: %w", err)
	}

	contact, err := h.store.GetContact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prospect: %w", err)
	}
	if contact == nil {
		return nil, fmt.Errorf("prospect not found: %s", id)
	}

	events, err := h.store.ListEvents(ctx, db.EventFilter{ContactID: &id, Limit: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	var b strings.Builder
	b.WriteString("Please summarize where this prospect stands:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", contact.Name)
	if contact.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", contact.Company)
	}
	if contact.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", contact.Email)
	}
	fmt.Fprintf(&b, "Status: %s\n", contact.Status)
	if contact.NextAction != "" {
		fmt.Fprintf(&b, "Next action: %s (due %s via %s)\n", contact.NextAction, contact.NextActionDue, contact.ActionChannel)
	}
	if contact.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", contact.Notes)
	}
	if len(events) > 0 {
		b.WriteString("\nRecent activity:\n")
		for _, e := range events {
			when := ""
			if e.OccurredAt != nil {
				when = e.OccurredAt.Format("2006-01-02") + " "
			}
			fmt.Fprintf(&b, "- %s[%s] %s\n", when, e.Source, e.Title)
		}
	}
	b.WriteString("\nSuggest the next best step and a short message to send.")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Summary for prospect: %s", contact.Name),
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}, nil
}

func (h *PromptHandlers) dailyReview(ctx context.Context) (*mcp.GetPromptResult, error) {
	stats, err := viz.GenerateDashboardStats(ctx, h.store, h.now())
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("Here is my outreach pipeline this morning:\n\n")
	b.WriteString(viz.RenderDashboard(stats))
	b.WriteString("\nHelp me pick the one thing to focus on today and list up to five tasks, ")
	b.WriteString("starting with overdue follow-ups.")

	return &mcp.GetPromptResult{
		Description: "Morning pipeline review",
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}, nil
}
