package library

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-manual-server/internal/manual"
)

// SearchArgument defines in-page search parameters.
type SearchArgument struct {
	Page  string `json:"page" jsonschema_description:"Manual page ID as returned by list_manuals"`
	Query string `json:"query" jsonschema_description:"Search text; matched as words, phrases and substrings, and Hiragana matches Katakana"`
}

// SearchHandler handles the search_manual tool.
type SearchHandler struct {
	service *Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *Service) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

// Handle runs the page's search, which also renders the page's results
// panel, and returns the ranked results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if res := requireArgs("Page", args.Page, "Query", args.Query); res != nil {
		return res, nil, nil
	}

	results, err := h.service.Search(args.Page, args.Query)
	if err != nil {
		return lookupErrorResult(err), nil, nil
	}
	return formatResults(args.Page, args.Query, results), nil, nil
}

func formatResults(pageID, query string, results []manual.Result) *mcp.CallToolResult {
	if len(results) == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", query))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s' on %s:\n\n", len(results), query, pageID)

	for i, r := range results {
		e := r.Entry
		fmt.Fprintf(&sb, "### %d. %s\n", i+1, e.Title)
		if e.Type != manual.EntrySection && e.SectionTitle != "" {
			fmt.Fprintf(&sb, "**Section**: %s\n", e.SectionTitle)
		}
		fmt.Fprintf(&sb, "**Anchor**: %s | **Target**: #%s | **Score**: %d\n\n", e.AnchorID, e.SectionID, r.Score)
		if r.Snippet != "" {
			sb.WriteString(snippetMarkdown(r.Snippet))
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("Use jump_to_result with an anchor and target to highlight the match in the page.\n")
	return textResult(sb.String())
}

var snippetMarks = strings.NewReplacer(
	`<mark class="`+manual.SnippetMarkClass+`">`, "**",
	"</mark>", "**",
)

// snippetMarkdown turns an escaped snippet with match marks into Markdown.
func snippetMarkdown(snippet string) string {
	return html.UnescapeString(snippetMarks.Replace(snippet))
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_manual",
		Description: "Search within one manual page by section and procedure, ranked by relevance",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service *Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
