package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-manual-server/internal/config"
	"github.com/sha1n/mcp-manual-server/internal/library"
	mcputil "github.com/sha1n/mcp-manual-server/internal/mcp"
	"github.com/spf13/pflag"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *library.Service, *config.Settings) error
	CreateServer      func(*config.Settings, string) (*mcp.Server, *library.Service, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// stderr keeps stdout free for the stdio transport
	slog.SetDefault(config.NewLogger(settings, os.Stderr))

	slog.Info("Starting manual MCP server", "version", version)
	config.Log(settings)

	mcpServer, svc, cleanup, err := params.CreateServer(settings, version)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if settings.Transport == config.TransportStdio {
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(mcpServer, svc, settings)
}

// CreateMCPServer loads the manual pages and creates the MCP server with the
// manual tools registered. A failed initial sync is logged; pages that did
// load are still served.
func CreateMCPServer(settings *config.Settings, version string) (*mcp.Server, *library.Service, func(), error) {
	svc, err := library.NewService(&settings.Manuals)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create manual library: %w", err)
	}

	// not tied to any request
	if err := svc.Initialize(context.Background()); err != nil {
		slog.Error("Manual library initialization failed", "error", err)
	}

	cleanup := func() {
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close manual library", "error", err)
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "manual-mcp",
		Version: version,
		Library: svc,
		Logger:  slog.Default(),
	})

	return server, svc, cleanup, nil
}
