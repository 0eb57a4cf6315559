// ABOUTME: Prospect MCP tool handlers
// ABOUTME: Implements add_prospect, find_prospects, and update_prospect_status tools
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

type ProspectHandlers struct {
	store *db.Store
}

func NewProspectHandlers(store *db.Store) *ProspectHandlers {
	return &ProspectHandlers{store: store}
}

type AddProspectInput struct {
	Name     string `json:"name" jsonschema:"Prospect name (required)"`
	Company  string `json:"company,omitempty" jsonschema:"Company name"`
	Email    string `json:"email,omitempty" jsonschema:"Email address, unique across prospects"`
	LinkedIn string `json:"linkedin,omitempty" jsonschema:"LinkedIn profile URL"`
	Notes    string `json:"notes,omitempty" jsonschema:"Free-form notes"`
}

type ProspectOutput struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Company         string `json:"company,omitempty"`
	Email           string `json:"email,omitempty"`
	LinkedIn        string `json:"linkedin,omitempty"`
	Status          string `json:"status"`
	NextFollowup    string `json:"next_followup,omitempty"`
	NextAction      string `json:"next_action,omitempty"`
	NextActionDue   string `json:"next_action_due_date,omitempty"`
	ActionChannel   string `json:"action_channel,omitempty"`
	ActionObjective string `json:"action_objective,omitempty"`
	Notes           string `json:"notes,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

func (h *ProspectHandlers) AddProspect(ctx context.Context, _ *mcp.CallToolRequest, input AddProspectInput) (*mcp.CallToolResult, ProspectOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ProspectOutput{}, fmt.Errorf("name is required")
	}

	contact := &models.Contact{
		Name:     strings.TrimSpace(input.Name),
		Company:  strings.TrimSpace(input.Company),
		Email:    strings.TrimSpace(input.Email),
		LinkedIn: strings.TrimSpace(input.LinkedIn),
		Notes:    input.Notes,
		Status:   models.StatusNew,
	}
	if err := h.store.CreateContact(ctx, contact); err != nil {
		return nil, ProspectOutput{}, fmt.Errorf("failed to create prospect: %w", err)
	}

	return nil, prospectToOutput(contact), nil
}

type FindProspectsInput struct {
	Query   string `json:"query,omitempty" jsonschema:"Search name, email, and company"`
	Status  string `json:"status,omitempty" jsonschema:"Filter by pipeline status"`
	Company string `json:"company,omitempty" jsonschema:"Filter by exact company name"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 20)"`
}

type FindProspectsOutput struct {
	Prospects []ProspectOutput `json:"prospects"`
}

func (h *ProspectHandlers) FindProspects(ctx context.Context, _ *mcp.CallToolRequest, input FindProspectsInput) (*mcp.CallToolResult, FindProspectsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	filter := db.ContactFilter{Query: input.Query, Company: input.Company, Limit: limit}
	if input.Status != "" {
		status, err := models.ParseStatus(input.Status)
		if err != nil {
			return nil, FindProspectsOutput{}, err
		}
		filter.Status = status
	}

	contacts, err := h.store.ListContacts(ctx, filter)
	if err != nil {
		return nil, FindProspectsOutput{}, fmt.Errorf("failed to find prospects: %w", err)
	}

	result := make([]ProspectOutput, len(contacts))
	for i := range contacts {
		result[i] = prospectToOutput(&contacts[i])
	}
	return nil, FindProspectsOutput{Prospects: result}, nil
}

type UpdateProspectStatusInput struct {
	ID              string `json:"id" jsonschema:"Prospect ID (required)"`
	Status          string `json:"status" jsonschema:"New pipeline status (required)"`
	NextAction      string `json:"next_action,omitempty" jsonschema:"Next action, required for active deals unless already set"`
	NextActionDue   string `json:"next_action_due_date,omitempty" jsonschema:"Next action due date (YYYY-MM-DD)"`
	ActionChannel   string `json:"action_channel,omitempty" jsonschema:"Channel for the next action, e.g. email or call"`
	ActionObjective string `json:"action_objective,omitempty" jsonschema:"Objective of the next action"`
}

// UpdateProspectStatus sets any valid status. Active statuses need the
// next-action fields, either stored already or given in the call.
func (h *ProspectHandlers) UpdateProspectStatus(ctx context.Context, _ *mcp.CallToolRequest, input UpdateProspectStatusInput) (*mcp.CallToolResult, ProspectOutput, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, ProspectOutput{}, fmt.Errorf("invalid prospect ID: %w", err)
	}
	status, err := models.ParseStatus(input.Status)
	if err != nil {
		return nil, ProspectOutput{}, err
	}
	if input.NextActionDue != "" {
		if _, err := time.Parse(models.DateLayout, input.NextActionDue); err != nil {
			return nil, ProspectOutput{}, fmt.Errorf("next_action_due_date must be YYYY-MM-DD")
		}
	}

	contact, err := h.store.GetContact(ctx, id)
	if err != nil {
		return nil, ProspectOutput{}, fmt.Errorf("failed to fetch prospect: %w", err)
	}
	if contact == nil {
		return nil, ProspectOutput{}, fmt.Errorf("prospect not found: %s", id)
	}

	contact.Status = status
	setIfGiven(&contact.NextAction, input.NextAction)
	setIfGiven(&contact.NextActionDue, input.NextActionDue)
	setIfGiven(&contact.ActionChannel, input.ActionChannel)
	setIfGiven(&contact.ActionObjective, input.ActionObjective)
	if missing := contact.MissingNextAction(); len(missing) > 0 {
		return nil, ProspectOutput{}, fmt.Errorf("missing required fields for active deal: %s", strings.Join(missing, ", "))
	}

	if err := h.store.UpdateContact(ctx, contact); err != nil {
		return nil, ProspectOutput{}, fmt.Errorf("failed to update prospect: %w", err)
	}
	return nil, prospectToOutput(contact), nil
}

func setIfGiven(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func prospectToOutput(c *models.Contact) ProspectOutput {
	return ProspectOutput{
		ID:              c.ID.String(),
		Name:            c.Name,
		Company:         c.Company,
		Email:           c.Email,
		LinkedIn:        c.LinkedIn,
		Status:          string(c.Status),
		NextFollowup:    c.NextFollowup,
		NextAction:      c.NextAction,
		NextActionDue:   c.NextActionDue,
		ActionChannel:   c.ActionChannel,
		ActionObjective: c.ActionObjective,
		Notes:           c.Notes,
		UpdatedAt:       c.UpdatedAt.Format(time.RFC3339),
	}
}
