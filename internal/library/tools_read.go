package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReadArgument identifies an element of a manual page.
type ReadArgument struct {
	Page    string `json:"page" jsonschema_description:"Manual page ID"`
	Section string `json:"section" jsonschema_description:"Element ID of a section or anchor, with or without a leading #"`
}

// ReadHandler handles the read_section tool.
type ReadHandler struct {
	service *Service
}

// NewReadHandler creates a new read handler.
func NewReadHandler(service *Service) *ReadHandler {
	return &ReadHandler{
		service: service,
	}
}

// Handle returns the element's markup as it currently stands, including
// live highlights.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgument) (*mcp.CallToolResult, any, error) {
	if res := requireArgs("Page", args.Page, "Section", args.Section); res != nil {
		return res, nil, nil
	}

	markup, err := h.service.ReadSection(args.Page, args.Section)
	if err != nil {
		return lookupErrorResult(err), nil, nil
	}

	maxSize := h.service.GetSettings().MaxPageSize
	if int64(len(markup)) > maxSize {
		return errorResult("Section too large (%.2f KB). Maximum allowed size is %.2f KB", float64(len(markup))/1024, float64(maxSize)/1024), nil, nil
	}

	return textResult(fmt.Sprintf("## %s#%s\n\n```html\n%s\n```\n", args.Page, strings.TrimPrefix(args.Section, "#"), markup)), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReadHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "read_section",
		Description: "Read the HTML of a section of a manual page, including current search highlights",
	}
}

// RegisterReadTool registers the read tool with an MCP server.
func RegisterReadTool(server *mcp.Server, service *Service) {
	handler := NewReadHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
