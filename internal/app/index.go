package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/sha1n/mcp-manual-server/internal/config"
	"github.com/sha1n/mcp-manual-server/internal/library"
	"github.com/sha1n/mcp-manual-server/internal/progress"
	"github.com/spf13/pflag"
)

// RunIndex syncs and indexes the configured manual pages once and writes a
// summary to out. Progress goes to stderr.
func RunIndex(ctx context.Context, flags *pflag.FlagSet, out io.Writer) error {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	slog.SetDefault(config.NewLogger(settings, os.Stderr))

	svc, err := library.NewService(&settings.Manuals)
	if err != nil {
		return fmt.Errorf("failed to create manual library: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close manual library", "error", err)
		}
	}()
	svc.SetProgress(progress.NewReporter(os.Stderr))

	report, err := svc.Refresh(ctx)
	if report != nil {
		writeSyncReport(out, report)
	}
	return err
}

func writeSyncReport(w io.Writer, r *library.SyncReport) {
	fmt.Fprintf(w, "Indexed %d pages: %d reindexed, %d unchanged, %d removed, %d failed\n",
		r.Pages, len(r.Reindexed), len(r.Unchanged), len(r.Removed), len(r.Failed))

	for _, id := range r.Removed {
		fmt.Fprintf(w, "  removed %s\n", id)
	}
	failed := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		failed = append(failed, id)
	}
	slices.Sort(failed)
	for _, id := range failed {
		fmt.Fprintf(w, "  failed %s: %s\n", id, strings.TrimSpace(r.Failed[id]))
	}
}
