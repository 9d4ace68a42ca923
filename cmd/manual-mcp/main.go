package main

import (
	"context"
	"os"

	"github.com/sha1n/mcp-manual-server/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "manual-mcp"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Manual MCP Server",
		Long:    "Serves static HTML user manuals to MCP clients: in-page search, highlighting and cross-manual full-text search",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.Flags())
	rootCmd.AddCommand(newIndexCommand())
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Fetch and index the manual pages, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunIndex(cmd.Context(), cmd.Flags(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringP("log-level", "l", "", "Log level: debug, info, warn or error")
	app.RegisterManualFlags(cmd.Flags())
	return cmd
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}
