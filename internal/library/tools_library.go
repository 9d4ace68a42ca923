package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-manual-server/internal/manual"
)

// LibrarySearchArgument defines cross-manual search parameters.
type LibrarySearchArgument struct {
	Query string `json:"query" jsonschema_description:"Search query (supports wildcards and phrases)"`
	Page  string `json:"page,omitempty" jsonschema_description:"Filter by manual page ID"`
	Type  string `json:"type,omitempty" jsonschema_description:"Filter by entry type: section, procedure or news"`
}

// LibrarySearchHandler handles the search_library tool.
type LibrarySearchHandler struct {
	service *Service
}

// NewLibrarySearchHandler creates a new library search handler.
func NewLibrarySearchHandler(service *Service) *LibrarySearchHandler {
	return &LibrarySearchHandler{
		service: service,
	}
}

// Handle searches the indexes of all pages and returns formatted results.
func (h *LibrarySearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args LibrarySearchArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult("Search is not available. The manuals are still being indexed. Please try again later."), nil, nil
	}
	if res := requireArgs("Query", args.Query); res != nil {
		return res, nil, nil
	}

	results, err := h.service.SearchLibrary(ctx, LibraryQuery{Query: args.Query, Page: args.Page, Type: args.Type})
	if err != nil {
		return errorResult("Search failed: %s", err), nil, nil
	}
	return formatLibraryResults(results, args.Query), nil, nil
}

func formatLibraryResults(results *LibraryResult, queryStr string) *mcp.CallToolResult {
	if results.Total == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", queryStr))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s':\n\n", results.Total, queryStr)

	for i, hit := range results.Hits {
		fmt.Fprintf(&sb, "### %d. %s: %s\n", i+1, hit.Page, hit.Title)
		if hit.SectionTitle != "" && hit.Type != string(manual.EntrySection) {
			fmt.Fprintf(&sb, "**Section**: %s\n", hit.SectionTitle)
		}
		fmt.Fprintf(&sb, "**Anchor**: %s | **Target**: #%s | **Score**: %.4f\n\n", hit.Anchor, hit.Section, hit.Score)

		for _, fragment := range hit.Fragments {
			sb.WriteString(fragment)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if results.Total > uint64(len(results.Hits)) {
		fmt.Fprintf(&sb, "... and %d more results\n", results.Total-uint64(len(results.Hits)))
	}
	return textResult(sb.String())
}

// GetToolDefinition returns the MCP tool definition.
func (h *LibrarySearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_library",
		Description: "Full-text search across all indexed manual pages",
	}
}

// RegisterLibrarySearchTool registers the library search tool with an MCP server.
func RegisterLibrarySearchTool(server *mcp.Server, service *Service) {
	handler := NewLibrarySearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
