package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	RegisterManualFlags(flags)
}

// RegisterManualFlags registers the flags that control page loading and
// search. They are shared by the serve and index commands.
func RegisterManualFlags(flags *pflag.FlagSet) {
	flags.StringSliceP("sources", "s", nil, "Manual pages: file globs or http(s) URLs (comma-separated)")
	flags.StringSliceP("exclude", "e", nil, "Glob patterns of files to skip (comma-separated)")
	flags.StringP("base-dir", "d", "", "Directory for indexes and the manifest")
	flags.Duration("sync-timeout", 0, "Maximum time to wait for another instance's sync")
	flags.Duration("fetch-timeout", 0, "Timeout for fetching a remote page")
	flags.Int64("max-page-size", 0, "Maximum page size in bytes")
	flags.Int("max-results", 0, "Maximum results of an in-page search")
	flags.Int("library-max-results", 0, "Maximum results of a cross-manual search")
	flags.String("sections-selector", "", "CSS selector of page sections")
	flags.String("items-selector", "", "CSS selector of procedure and news items")
	flags.String("content-selector", "", "CSS selector of the content root cleared by clear_search")
	flags.String("input-selector", "", "CSS selector of the search input")
	flags.String("results-selector", "", "CSS selector of the results panel")
	flags.String("highlight-targets", "", "CSS selector of elements that receive highlights")
	flags.Int("strong-token-length", 0, "Minimum token length for exact match bonuses")
	flags.Int("highlight-min-length", 0, "Minimum token length for highlights and snippets")
	flags.Int("snippet-radius", 0, "Characters kept around a snippet match")
	flags.Duration("debounce-delay", 0, "Delay before search-as-you-type runs")
	flags.StringP("changelog", "c", "", "Changelog feed (YAML or JSON) rendered into pages")
	flags.String("changelog-container", "", "CSS selector of the changelog container")
	flags.Bool("show-ticket-ids", false, "Show ticket IDs in changelog entries")
}
