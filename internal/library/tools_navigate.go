package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// JumpArgument identifies a search result to jump to.
type JumpArgument struct {
	Page    string `json:"page" jsonschema_description:"Manual page ID"`
	Anchor  string `json:"anchor" jsonschema_description:"Anchor ID of the result"`
	Section string `json:"section" jsonschema_description:"Target section of the result, e.g. #section1"`
}

// JumpHandler handles the jump_to_result tool.
type JumpHandler struct {
	service *Service
}

// NewJumpHandler creates a new jump handler.
func NewJumpHandler(service *Service) *JumpHandler {
	return &JumpHandler{service: service}
}

// Handle highlights the last query inside the result's section and reports
// the element the page scrolled to, with the highlighted section markup.
func (h *JumpHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args JumpArgument) (*mcp.CallToolResult, any, error) {
	if res := requireArgs("Page", args.Page); res != nil {
		return res, nil, nil
	}
	if strings.TrimSpace(args.Anchor) == "" && strings.TrimSpace(args.Section) == "" {
		return errorResult("Anchor or section is required"), nil, nil
	}

	jump, err := h.service.JumpTo(args.Page, args.Anchor, args.Section)
	if err != nil {
		return lookupErrorResult(err), nil, nil
	}
	if jump.Target == nil {
		return errorResult("Nothing to jump to for anchor %q in section %q", args.Anchor, args.Section), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Scrolled to <%s>", jump.Target.Tag)
	if jump.Target.ID != "" {
		fmt.Fprintf(&sb, " in #%s", jump.Target.ID)
	}
	fmt.Fprintf(&sb, ": %s\n", jump.Target.Text)
	if jump.SectionHTML != "" {
		fmt.Fprintf(&sb, "\n```html\n%s\n```\n", jump.SectionHTML)
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *JumpHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "jump_to_result",
		Description: "Jump to a search result: highlights the last query in its section and returns the section",
	}
}

// RegisterJumpTool registers the jump tool with an MCP server.
func RegisterJumpTool(server *mcp.Server, service *Service) {
	handler := NewJumpHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// ClearArgument identifies the page whose search is cleared.
type ClearArgument struct {
	Page string `json:"page" jsonschema_description:"Manual page ID"`
}

// ClearHandler handles the clear_search tool.
type ClearHandler struct {
	service *Service
}

// NewClearHandler creates a new clear handler.
func NewClearHandler(service *Service) *ClearHandler {
	return &ClearHandler{service: service}
}

// Handle empties the page's search input, hides its results and removes all
// highlights.
func (h *ClearHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ClearArgument) (*mcp.CallToolResult, any, error) {
	if res := requireArgs("Page", args.Page); res != nil {
		return res, nil, nil
	}
	if err := h.service.ClearSearch(args.Page); err != nil {
		return lookupErrorResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("Search cleared on %s", args.Page)), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ClearHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "clear_search",
		Description: "Clear a manual page's search query, results and highlights",
	}
}

// RegisterClearTool registers the clear tool with an MCP server.
func RegisterClearTool(server *mcp.Server, service *Service) {
	handler := NewClearHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
