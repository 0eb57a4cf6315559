// ABOUTME: MCP server assembly for the outreach tools, resources, and prompts
// ABOUTME: Shared by the stdio command and tests over in-memory transports
package handlers

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/outreach/db"
)

// NewServer registers every outreach tool on a new MCP server. A nil syncer
// leaves the sync tools registered but failing with a clear error.
func NewServer(store *db.Store, syncer Syncer, version string) *mcp.Server {
	prospectHandlers := NewProspectHandlers(store)
	taskHandlers := NewTaskHandlers(store)
	syncHandlers := NewSyncHandlers(store, syncer)
	resourceHandlers := NewResourceHandlers(store)
	promptHandlers := NewPromptHandlers(store)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "outreach",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_prospect",
		Description: "Add a new prospect to the outreach pipeline",
	}, prospectHandlers.AddProspect)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_prospects",
		Description: "Search prospects by name, email, company, or status",
	}, prospectHandlers.FindProspects)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_prospect_status",
		Description: "Move a prospect to a new pipeline status, recording the next action for active deals",
	}, prospectHandlers.UpdateProspectStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_task",
		Description: "Add a task, optionally scheduled for a day",
	}, taskHandlers.AddTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "complete_task",
		Description: "Mark a task as completed",
	}, taskHandlers.CompleteTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "plan_day",
		Description: "Read or set the daily plan: one main focus and an ordered task list",
	}, taskHandlers.PlanDay)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_plan",
		Description: "Edit today's or tomorrow's plan with short lines such as '2: Call Dana' or 'tomorrow one thing: Ship'",
	}, taskHandlers.UpdatePlan)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_sync",
		Description: "Sync a source (gmail, fathom) and reconcile it against prospects",
	}, syncHandlers.RunSync)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "review_queue",
		Description: "List synced events waiting for manual review",
	}, syncHandlers.ReviewQueue)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_review",
		Description: "Apply a reviewed event to a prospect with manual confidence",
	}, syncHandlers.ApplyReview)

	for _, r := range []*mcp.Resource{
		{URI: uriScheme + "prospects", Name: "prospects", Description: "All prospects", MIMEType: "application/json"},
		{URI: uriScheme + "pipeline", Name: "pipeline", Description: "Pipeline counts, rates, and overdue follow-ups", MIMEType: "application/json"},
		{URI: uriScheme + "today", Name: "today", Description: "Today's plan", MIMEType: "application/json"},
	} {
		server.AddResource(r, resourceHandlers.ReadResource)
	}
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "prospects/{id}",
		Name:        "prospect",
		Description: "A single prospect",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddPrompt(&mcp.Prompt{
		Name:        "prospect-summary",
		Description: "Summarize a prospect and suggest the next step",
		Arguments:   []*mcp.PromptArgument{{Name: "prospect_id", Description: "Prospect ID", Required: true}},
	}, promptHandlers.GetPrompt)
	server.AddPrompt(&mcp.Prompt{
		Name:        "daily-review",
		Description: "Review the pipeline and plan the day",
	}, promptHandlers.GetPrompt)

	return server
}
