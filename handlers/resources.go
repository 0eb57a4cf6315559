// ABOUTME: MCP resource handlers for exposing outreach data
// ABOUTME: Read-only access to prospects, pipeline stats, and today's plan via outreach:// URIs
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/viz"
)

const uriScheme = "outreach://"

type ResourceHandlers struct {
	store *db.Store
	now   func() time.Time
}

func NewResourceHandlers(store *db.Store) *ResourceHandlers {
	return &ResourceHandlers{store: store, now: time.Now}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", uriScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, uriScheme), "/")
	switch parts[0] {
	case "prospects":
		if len(parts) == 1 || parts[1] == "" {
			return h.readAllProspects(ctx, uri)
		}
		return h.readProspect(ctx, uri, parts[1])
	case "pipeline":
		return h.readPipeline(ctx, uri)
	case "today":
		return h.readToday(ctx, uri)
	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func (h *ResourceHandlers) readAllProspects(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	contacts, err := h.store.ListContacts(ctx, db.ContactFilter{Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prospects: %w", err)
	}
	return jsonResource(uri, contacts)
}

func (h *ResourceHandlers) readProspect(ctx context.Context, uri, idStr string) (*mcp.ReadResourceResult, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid prospect ID: %w", err)
	}
	contact, err := h.store.GetContact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prospect: %w", err)
	}
	if contact == nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return jsonResource(uri, contact)
}

func (h *ResourceHandlers) readPipeline(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	stats, err := viz.GenerateDashboardStats(ctx, h.store, h.now())
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, stats)
}

func (h *ResourceHandlers) readToday(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	date := h.now().Format(models.DateLayout)
	plan, err := h.store.GetPlan(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch plan: %w", err)
	}
	if plan == nil {
		plan = &models.DailyPlan{Date: date, Items: []models.PlanItem{}}
	}
	return jsonResource(uri, plan)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
