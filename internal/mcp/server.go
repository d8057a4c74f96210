package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/NachoColl/agilevibecoding-sub003/internal/backlog"
	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
	"github.com/NachoColl/agilevibecoding-sub003/internal/store"
	"github.com/NachoColl/agilevibecoding-sub003/internal/validation"
)

// Validator is the slice of the validation engine the MCP tools drive.
type Validator interface {
	Validate(ctx context.Context, itemID string, opts validation.Options) (*validation.Result, error)
	PreviewPanel(ctx context.Context, itemID string, reselect bool) (*models.WorkItem, []string, error)
	LoadFeedback(ctx context.Context, itemID string) (*models.AggregatedVerdict, error)
}

var _ Validator = (*validation.Engine)(nil)

// Server wraps the avc data layer and validation engine and exposes them
// as MCP tools.
type Server struct {
	store  store.Store
	engine Validator
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, engine Validator) *Server {
	return &Server{store: s, engine: engine}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("avc", "1.0.0", server.WithToolCapabilities(true))

	// Register all tools
	srv.AddTool(s.listItemsTool())
	srv.AddTool(s.showItemTool())
	srv.AddTool(s.importBacklogTool())
	srv.AddTool(s.selectPanelTool())
	srv.AddTool(s.validateItemTool())
	srv.AddTool(s.getFeedbackTool())
	srv.AddTool(s.listRunsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// avc_list_items
func (s *Server) listItemsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("avc_list_items",
		mcp.WithDescription("List backlog work items. Returns a JSON array of epics and stories with id, kind, parent_id, title, domain, features, the selected reviewer panel, and the last validation time."),
		mcp.WithString("kind", mcp.Description("Filter by kind: epic or story")),
		mcp.WithString("parent", mcp.Description("Filter by owning epic ID, e.g. EPIC-001")),
		mcp.WithString("domain", mcp.Description("Filter by business domain, e.g. user-management")),
	)
	return tool, s.handleListItems
}

func (s *Server) handleListItems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.WorkItemFilter{
		ParentID: request.GetString("parent", ""),
		Domain:   request.GetString("domain", ""),
	}

	if kind := request.GetString("kind", ""); kind != "" {
		filter.Kind = models.WorkItemKind(kind)
		if !filter.Kind.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid kind: %s (must be epic or story)", kind)), nil
		}
	}

	items, err := s.store.ListWorkItems(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list work items: %v", err)), nil
	}

	type itemOut struct {
		ID                 string   `json:"id"`
		Kind               string   `json:"kind"`
		ParentID           string   `json:"parent_id,omitempty"`
		Title              string   `json:"title"`
		Description        string   `json:"description,omitempty"`
		Domain             string   `json:"domain,omitempty"`
		Features           []string `json:"features,omitempty"`
		SelectedValidators []string `json:"selected_validators,omitempty"`
		LastValidated      string   `json:"last_validated,omitempty"`
	}

	out := make([]itemOut, len(items))
	for i, item := range items {
		out[i] = itemOut{
			ID:                 item.ID,
			Kind:               string(item.Kind),
			ParentID:           item.ParentID,
			Title:              item.Title,
			Description:        item.Description,
			Domain:             item.Domain,
			Features:           item.Features,
			SelectedValidators: item.SelectedValidators,
		}
		if item.LastValidated != nil {
			out[i].LastValidated = item.LastValidated.Format(time.RFC3339)
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal work items: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// avc_show_item
func (s *Server) showItemTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("avc_show_item",
		mcp.WithDescription("Show one work item in full, including acceptance criteria, child stories for epics, and a summary of the last review verdict if one exists."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Work item ID, e.g. EPIC-001 or EPIC-001-S01")),
	)
	return tool, s.handleShowItem
}

func (s *Server) handleShowItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	item, err := s.store.GetWorkItem(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("work item not found: %s", id)), nil
	}

	itemMap := map[string]any{
		"id":          item.ID,
		"kind":        string(item.Kind),
		"title":       item.Title,
		"description": item.Description,
		"domain":      item.Domain,
		"features":    item.Features,
		"created_at":  item.CreatedAt.Format(time.RFC3339),
		"updated_at":  item.UpdatedAt.Format(time.RFC3339),
	}
	if item.ParentID != "" {
		itemMap["parent_id"] = item.ParentID
	}
	if len(item.AcceptanceCriteria) > 0 {
		itemMap["acceptance_criteria"] = item.AcceptanceCriteria
	}
	if len(item.SelectedValidators) > 0 {
		itemMap["selected_validators"] = item.SelectedValidators
	}
	if item.LastValidated != nil {
		itemMap["last_validated"] = item.LastValidated.Format(time.RFC3339)
	}

	result := map[string]any{"item": itemMap}

	if item.Kind == models.KindEpic {
		children, _ := s.store.ListChildren(ctx, item.ID)
		stories := make([]map[string]any, len(children))
		for i, c := range children {
			stories[i] = map[string]any{
				"id":    c.ID,
				"title": c.Title,
			}
			if c.LastValidated != nil {
				stories[i]["last_validated"] = c.LastValidated.Format(time.RFC3339)
			}
		}
		result["stories"] = stories
	}

	// The last verdict summary rides along when one exists (best-effort)
	if verdict, err := s.store.GetVerdict(ctx, item.ID); err == nil {
		result["feedback"] = map[string]any{
			"average_score":   verdict.AverageScore,
			"overall_status":  string(verdict.OverallStatus),
			"critical_issues": len(verdict.CriticalIssues),
			"major_issues":    len(verdict.MajorIssues),
			"minor_issues":    len(verdict.MinorIssues),
			"validated_at":    verdict.ValidatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal work item: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// avc_import_backlog
func (s *Server) importBacklogTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("avc_import_backlog",
		mcp.WithDescription("Import a YAML backlog document of epics and nested stories. Existing items are updated in place; reviewer panels and validation stamps survive a re-import. Returns counts of created and updated items."),
		mcp.WithString("yaml", mcp.Required(), mcp.Description("Backlog document in YAML form: a top-level epics list, each epic with id, title, domain, features, and stories")),
	)
	return tool, s.handleImportBacklog
}

func (s *Server) handleImportBacklog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("yaml")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: yaml"), nil
	}

	b, err := backlog.Parse([]byte(text))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid backlog: %v", err)), nil
	}

	created, updated, err := backlog.Import(ctx, s.store, b)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to import backlog: %v", err)), nil
	}

	result := map[string]any{
		"epics":   len(b.Epics),
		"created": created,
		"updated": updated,
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal import result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// avc_select_panel
func (s *Server) selectPanelTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("avc_select_panel",
		mcp.WithDescription("Select the reviewer panel for a work item without running any reviews. The selection is cached per item, so a later avc_validate_item call reuses it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Work item ID")),
		mcp.WithBoolean("reselect", mcp.Description("Discard the cached panel and select a fresh one")),
	)
	return tool, s.handleSelectPanel
}

func (s *Server) handleSelectPanel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	reselect := request.GetBool("reselect", false)

	item, panel, err := s.engine.PreviewPanel(ctx, id, reselect)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to select panel: %v", err)), nil
	}

	result := map[string]any{
		"item_id":    item.ID,
		"kind":       string(item.Kind),
		"panel":      panel,
		"panel_size": len(panel),
	}
	if item.Domain != "" {
		result["domain"] = item.Domain
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal panel: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// avc_validate_item
func (s *Server) validateItemTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("avc_validate_item",
		mcp.WithDescription("Run the full reviewer panel against a work item: select reviewers, dispatch them in parallel, aggregate their reviews into one verdict, and store it. Returns a verdict summary; use avc_get_feedback for the full document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Work item ID")),
		mcp.WithBoolean("reselect", mcp.Description("Discard the cached reviewer panel and select a fresh one before dispatch")),
	)
	return tool, s.handleValidateItem
}

func (s *Server) handleValidateItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	reselect := request.GetBool("reselect", false)

	res, err := s.engine.Validate(ctx, id, validation.Options{Reselect: reselect})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("validation failed: %v", err)), nil
	}

	reviewers := make([]map[string]any, len(res.Verdict.PerReviewerSummary))
	for i, row := range res.Verdict.PerReviewerSummary {
		reviewers[i] = map[string]any{
			"reviewer_id": row.ReviewerID,
			"status":      string(row.Status),
			"score":       row.Score,
			"issues":      row.IssueCount,
		}
	}

	result := map[string]any{
		"item_id": res.Item.ID,
		"panel":   res.Panel,
		"verdict": map[string]any{
			"average_score":   res.Verdict.AverageScore,
			"overall_status":  string(res.Verdict.OverallStatus),
			"critical_issues": len(res.Verdict.CriticalIssues),
			"major_issues":    len(res.Verdict.MajorIssues),
			"minor_issues":    len(res.Verdict.MinorIssues),
			"validated_at":    res.Verdict.ValidatedAt.Format(time.RFC3339),
		},
		"run": map[string]any{
			"panel_size":  res.Run.PanelSize,
			"succeeded":   res.Run.Succeeded,
			"failed":      res.Run.Failed,
			"duration_ms": res.Run.Duration.Milliseconds(),
		},
		"reviewers": reviewers,
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal verdict: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// avc_get_feedback
func (s *Server) getFeedbackTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("avc_get_feedback",
		mcp.WithDescription("Get the full stored review verdict for a work item: average score, issues by severity with the reviewer that raised each, strengths, ranked improvement priorities, and the per-reviewer breakdown."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Work item ID")),
	)
	return tool, s.handleGetFeedback
}

func (s *Server) handleGetFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	verdict, err := s.engine.LoadFeedback(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load feedback: %v", err)), nil
	}

	data, err := json.Marshal(verdict)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal feedback: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// avc_list_runs
func (s *Server) listRunsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("avc_list_runs",
		mcp.WithDescription("List validation run telemetry, newest first. Each run records panel size, how many reviewers succeeded or failed, the per-reviewer outcome, and the wall-clock duration."),
		mcp.WithString("item", mcp.Description("Work item ID to filter by")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (default 20)")),
	)
	return tool, s.handleListRuns
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID := request.GetString("item", "")
	limit := request.GetInt("limit", 20)

	runs, err := s.store.ListValidationRuns(ctx, itemID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list validation runs: %v", err)), nil
	}

	type runOut struct {
		ID         string                   `json:"id"`
		WorkItemID string                   `json:"work_item_id"`
		PanelSize  int                      `json:"panel_size"`
		Succeeded  int                      `json:"succeeded"`
		Failed     int                      `json:"failed"`
		Reviewers  []models.ReviewerOutcome `json:"reviewers"`
		DurationMS int64                    `json:"duration_ms"`
		CreatedAt  string                   `json:"created_at"`
	}

	out := make([]runOut, len(runs))
	for i, run := range runs {
		out[i] = runOut{
			ID:         run.ID,
			WorkItemID: run.WorkItemID,
			PanelSize:  run.PanelSize,
			Succeeded:  run.Succeeded,
			Failed:     run.Failed,
			Reviewers:  run.Reviewers,
			DurationMS: run.Duration.Milliseconds(),
			CreatedAt:  run.CreatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal validation runs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
