package mcp

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-manual-server/internal/library"
)

const instructions = "Searches static user manuals. Call list_manuals to find page IDs, " +
	"search_manual to rank sections and procedures on a page, then jump_to_result to " +
	"highlight a result and read it. search_library searches every page at once."

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	// Library is optional; without it the server has no tools.
	Library *library.Service
	Logger  *slog.Logger
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &mcp.ServerOptions{
		Instructions: instructions,
		Logger:       cfg.Logger,
	})

	if cfg.Library != nil {
		library.RegisterTools(s, cfg.Library)
	}

	return s
}
