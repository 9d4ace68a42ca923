package library

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListArgument takes no parameters.
type ListArgument struct{}

// ListHandler handles the list_manuals tool.
type ListHandler struct {
	service *Service
}

// NewListHandler creates a new list handler.
func NewListHandler(service *Service) *ListHandler {
	return &ListHandler{service: service}
}

// Handle lists the served pages.
func (h *ListHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ListArgument) (*mcp.CallToolResult, any, error) {
	pages := h.service.Pages()
	if len(pages) == 0 {
		return textResult("No manual pages are loaded. Check the configured sources."), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d manual pages:\n\n", len(pages))
	for _, p := range pages {
		fmt.Fprintf(&sb, "- **%s** (%s): %s, %d entries, fetched %s\n",
			p.ID, p.Title, p.Source, p.Entries, p.FetchedAt.Format(time.RFC3339))
		if p.Error != "" {
			fmt.Fprintf(&sb, "  last refresh failed: %s\n", p.Error)
		}
	}
	if !h.service.IsReady() {
		sb.WriteString("\nCross-manual search is not available yet.\n")
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ListHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_manuals",
		Description: "List the manual pages that can be searched",
	}
}

// RegisterListTool registers the list tool with an MCP server.
func RegisterListTool(server *mcp.Server, service *Service) {
	handler := NewListHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// RefreshArgument takes no parameters.
type RefreshArgument struct{}

// RefreshHandler handles the refresh_manuals tool.
type RefreshHandler struct {
	service *Service
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(service *Service) *RefreshHandler {
	return &RefreshHandler{service: service}
}

// Handle reloads every page and reindexes the ones that changed.
func (h *RefreshHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args RefreshArgument) (*mcp.CallToolResult, any, error) {
	report, err := h.service.Refresh(ctx)
	if report == nil {
		return errorResult("Refresh failed: %s", err), nil, nil
	}

	res := textResult(formatReport(report))
	res.IsError = err != nil
	return res, nil, nil
}

func formatReport(r *SyncReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Refreshed %d pages: %d reindexed, %d unchanged, %d removed, %d failed\n",
		r.Pages, len(r.Reindexed), len(r.Unchanged), len(r.Removed), len(r.Failed))

	list := func(label string, ids []string) {
		if len(ids) > 0 {
			fmt.Fprintf(&sb, "%s: %s\n", label, strings.Join(ids, ", "))
		}
	}
	list("Reindexed", r.Reindexed)
	list("Removed", r.Removed)

	failed := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		failed = append(failed, id)
	}
	slices.Sort(failed)
	for _, id := range failed {
		fmt.Fprintf(&sb, "Failed %s: %s\n", id, r.Failed[id])
	}
	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *RefreshHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "refresh_manuals",
		Description: "Reload all manual sources and reindex pages that changed",
	}
}

// RegisterRefreshTool registers the refresh tool with an MCP server.
func RegisterRefreshTool(server *mcp.Server, service *Service) {
	handler := NewRefreshHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
