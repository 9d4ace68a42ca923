package library

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools registers every manual tool with an MCP server.
func RegisterTools(server *mcp.Server, service *Service) {
	RegisterSearchTool(server, service)
	RegisterLibrarySearchTool(server, service)
	RegisterJumpTool(server, service)
	RegisterClearTool(server, service)
	RegisterReadTool(server, service)
	RegisterListTool(server, service)
	RegisterRefreshTool(server, service)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

// lookupErrorResult turns a page or section lookup failure into a tool error
// that names what the caller can do about it.
func lookupErrorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, ErrPageNotFound):
		return errorResult("%s. Use list_manuals to see available pages.", err)
	case errors.Is(err, ErrSectionNotFound):
		return errorResult("%s", err)
	default:
		return errorResult("Request failed: %s", err)
	}
}

// requireArgs returns an error result naming the first blank argument.
func requireArgs(named ...string) *mcp.CallToolResult {
	for i := 0; i+1 < len(named); i += 2 {
		if strings.TrimSpace(named[i+1]) == "" {
			return errorResult("%s cannot be empty", named[i])
		}
	}
	return nil
}
