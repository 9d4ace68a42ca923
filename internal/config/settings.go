package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sha1n/mcp-manual-server/internal/changelog"
	"github.com/sha1n/mcp-manual-server/internal/dom"
	"github.com/sha1n/mcp-manual-server/internal/manual"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Transport and log constants
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

const envPrefix = "MANUAL_MCP"

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ManualSettings configures which manual pages are served and how each
// page's search behaves.
type ManualSettings struct {
	Sources      []string      `mapstructure:"sources"` // file globs or http(s) URLs
	Exclude      []string      `mapstructure:"exclude"`
	BaseDir      string        `mapstructure:"base_dir"`
	SyncTimeout  time.Duration `mapstructure:"sync_timeout"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxPageSize  int64         `mapstructure:"max_page_size"`

	MaxResults        int `mapstructure:"max_results"`
	LibraryMaxResults int `mapstructure:"library_max_results"`

	SectionsSelector string `mapstructure:"sections_selector"`
	ItemsSelector    string `mapstructure:"items_selector"`
	ContentSelector  string `mapstructure:"content_selector"`
	InputSelector    string `mapstructure:"input_selector"`
	ResultsSelector  string `mapstructure:"results_selector"`
	HighlightTargets string `mapstructure:"highlight_targets"`

	StrongTokenLength  int           `mapstructure:"strong_token_length"`
	HighlightMinLength int           `mapstructure:"highlight_min_length"`
	SnippetRadius      int           `mapstructure:"snippet_radius"`
	DebounceDelay      time.Duration `mapstructure:"debounce_delay"`

	Changelog          string `mapstructure:"changelog"`
	ChangelogContainer string `mapstructure:"changelog_container"`
	ShowTicketIDs      bool   `mapstructure:"show_ticket_ids"`
}

// Settings application settings
type Settings struct {
	Transport string         `mapstructure:"transport"`
	Host      string         `mapstructure:"host"`
	Port      int            `mapstructure:"port"`
	LogLevel  string         `mapstructure:"log_level"`
	LogFormat string         `mapstructure:"log_format"`
	Auth      AuthSettings   `mapstructure:"auth"`
	Manuals   ManualSettings `mapstructure:"manuals"`
}

// settingKeys maps each nested key to its CLI flag name. Env names are
// derived from the key.
var settingKeys = []struct {
	key  string
	flag string
}{
	{"transport", "transport"},
	{"host", "host"},
	{"port", "port"},
	{"log_level", "log-level"},
	{"log_format", "log-format"},
	{"auth.type", "auth-type"},
	{"auth.basic.username", "auth-basic-username"},
	{"auth.basic.password", "auth-basic-password"},
	{"auth.api_keys", "auth-api-keys"},
	{"manuals.sources", "sources"},
	{"manuals.exclude", "exclude"},
	{"manuals.base_dir", "base-dir"},
	{"manuals.sync_timeout", "sync-timeout"},
	{"manuals.fetch_timeout", "fetch-timeout"},
	{"manuals.max_page_size", "max-page-size"},
	{"manuals.max_results", "max-results"},
	{"manuals.library_max_results", "library-max-results"},
	{"manuals.sections_selector", "sections-selector"},
	{"manuals.items_selector", "items-selector"},
	{"manuals.content_selector", "content-selector"},
	{"manuals.input_selector", "input-selector"},
	{"manuals.results_selector", "results-selector"},
	{"manuals.highlight_targets", "highlight-targets"},
	{"manuals.strong_token_length", "strong-token-length"},
	{"manuals.highlight_min_length", "highlight-min-length"},
	{"manuals.snippet_radius", "snippet-radius"},
	{"manuals.debounce_delay", "debounce-delay"},
	{"manuals.changelog", "changelog"},
	{"manuals.changelog_container", "changelog-container"},
	{"manuals.show_ticket_ids", "show-ticket-ids"},
}

// EnvName returns the environment variable bound to a settings key.
func EnvName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("transport", TransportStdio)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", LogFormatText)
	v.SetDefault("auth.type", AuthTypeNone)

	v.SetDefault("manuals.base_dir", defaultBaseDir())
	v.SetDefault("manuals.sync_timeout", 60*time.Second)
	v.SetDefault("manuals.fetch_timeout", 15*time.Second)
	v.SetDefault("manuals.max_page_size", int64(4*1024*1024)) // 4MB
	v.SetDefault("manuals.max_results", manual.DefaultMaxResults)
	v.SetDefault("manuals.library_max_results", 20)
	v.SetDefault("manuals.sections_selector", manual.DefaultSectionsSelector)
	v.SetDefault("manuals.items_selector", manual.DefaultItemsSelector)
	v.SetDefault("manuals.content_selector", manual.DefaultContentSelector)
	v.SetDefault("manuals.input_selector", "#manualSearch")
	v.SetDefault("manuals.results_selector", "#manualSearchResults")
	v.SetDefault("manuals.highlight_targets", manual.DefaultHighlightTargets)
	v.SetDefault("manuals.strong_token_length", manual.DefaultStrongTokenLength)
	v.SetDefault("manuals.highlight_min_length", manual.DefaultHighlightMinLength)
	v.SetDefault("manuals.snippet_radius", manual.DefaultSnippetRadius)
	v.SetDefault("manuals.debounce_delay", manual.DefaultDebounceDelay)
	v.SetDefault("manuals.changelog_container", changelog.DefaultContainer)
	v.SetDefault("manuals.show_ticket_ids", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, k := range settingKeys {
		_ = v.BindEnv(k.key, EnvName(k.key))
		if flags != nil {
			if f := flags.Lookup(k.flag); f != nil {
				_ = v.BindPFlag(k.key, f)
			}
		}
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.Auth.APIKeys = envList("auth.api_keys", settings.Auth.APIKeys)
	settings.Manuals.Sources = envList("manuals.sources", settings.Manuals.Sources)
	settings.Manuals.Exclude = envList("manuals.exclude", settings.Manuals.Exclude)
	settings.Manuals.BaseDir = expandHomeDir(settings.Manuals.BaseDir)
	settings.Manuals.Changelog = expandHomeDir(settings.Manuals.Changelog)

	return &settings, nil
}

// envList splits a comma separated env value that viper left as a single
// element, then trims and drops empty items.
func envList(key string, current []string) []string {
	raw := os.Getenv(EnvName(key))
	if raw != "" {
		if len(current) == 0 || (len(current) == 1 && strings.Contains(current[0], ",")) {
			current = strings.Split(raw, ",")
		}
	}
	for i := range current {
		current[i] = strings.TrimSpace(current[i])
	}
	return filterEmptyStrings(current)
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".manual-mcp"
	}
	return filepath.Join(home, ".manual-mcp")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting or incomplete configuration.
func ValidateSettings(s *Settings) error {
	switch s.Transport {
	case TransportStdio, TransportSSE:
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	switch strings.ToLower(s.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("log-level must be one of debug, info, warn, error, got: " + s.LogLevel)
	}
	switch s.LogFormat {
	case "", LogFormatText, LogFormatJSON:
	default:
		return errors.New("log-format must be 'text' or 'json', got: " + s.LogFormat)
	}

	if err := validateAuthSettings(&s.Auth); err != nil {
		return err
	}
	return validateManualSettings(&s.Manuals)
}

func validateAuthSettings(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

func validateManualSettings(m *ManualSettings) error {
	if len(m.Sources) == 0 {
		return errors.New("at least one manual source is required (sources)")
	}
	if m.BaseDir == "" {
		return errors.New("base-dir cannot be empty")
	}

	positive := []struct {
		name  string
		value int64
	}{
		{"sync-timeout", int64(m.SyncTimeout)},
		{"fetch-timeout", int64(m.FetchTimeout)},
		{"max-page-size", m.MaxPageSize},
		{"max-results", int64(m.MaxResults)},
		{"library-max-results", int64(m.LibraryMaxResults)},
		{"strong-token-length", int64(m.StrongTokenLength)},
		{"highlight-min-length", int64(m.HighlightMinLength)},
		{"snippet-radius", int64(m.SnippetRadius)},
		{"debounce-delay", int64(m.DebounceDelay)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}

	selectors := []struct {
		name  string
		value string
	}{
		{"sections-selector", m.SectionsSelector},
		{"items-selector", m.ItemsSelector},
		{"content-selector", m.ContentSelector},
		{"input-selector", m.InputSelector},
		{"results-selector", m.ResultsSelector},
		{"highlight-targets", m.HighlightTargets},
		{"changelog-container", m.ChangelogContainer},
	}
	for _, s := range selectors {
		if s.value == "" {
			continue
		}
		if _, err := dom.Compile(s.value); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	if m.Changelog != "" && m.ChangelogContainer == "" {
		return errors.New("changelog requires changelog-container")
	}
	return nil
}
