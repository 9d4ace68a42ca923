package app

import (
	"testing"
	"time"

	"github.com/sha1n/mcp-manual-server/internal/config"
	"github.com/spf13/pflag"
)

func TestRegisterFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	expectedFlags := []string{
		"transport",
		"host",
		"port",
		"log-level",
		"log-format",
		"auth-type",
		"auth-basic-username",
		"auth-basic-password",
		"auth-api-keys",
		"sources",
		"exclude",
		"base-dir",
		"changelog",
		"show-ticket-ids",
	}

	for _, name := range expectedFlags {
		if flags.Lookup(name) == nil {
			t.Errorf("Expected flag %q to be registered", name)
		}
	}
}

func TestRegisterFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	shorthandFlags := map[string]string{
		"transport":           "t",
		"host":                "H",
		"port":                "p",
		"log-level":           "l",
		"auth-type":           "a",
		"auth-basic-username": "u",
		"auth-basic-password": "P",
		"auth-api-keys":       "k",
		"sources":             "s",
		"exclude":             "e",
		"base-dir":            "d",
		"changelog":           "c",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterFlags_LoadSettings(t *testing.T) {
	t.Chdir(t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	err := flags.Parse([]string{
		"--transport", "sse",
		"--port", "9090",
		"-s", "docs/*.html,https://example.com/faq.html",
		"--base-dir", "/tmp/manuals",
		"--sync-timeout", "2m",
		"--show-ticket-ids",
	})
	if err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("LoadSettingsWithFlags failed: %v", err)
	}

	if settings.Transport != "sse" || settings.Port != 9090 {
		t.Errorf("Expected sse on 9090, got %s on %d", settings.Transport, settings.Port)
	}
	if len(settings.Manuals.Sources) != 2 || settings.Manuals.Sources[1] != "https://example.com/faq.html" {
		t.Errorf("Unexpected sources: %v", settings.Manuals.Sources)
	}
	if settings.Manuals.BaseDir != "/tmp/manuals" {
		t.Errorf("Expected base dir '/tmp/manuals', got %q", settings.Manuals.BaseDir)
	}
	if settings.Manuals.SyncTimeout != 2*time.Minute {
		t.Errorf("Expected sync timeout 2m, got %v", settings.Manuals.SyncTimeout)
	}
	if !settings.Manuals.ShowTicketIDs {
		t.Error("Expected show-ticket-ids to be set")
	}
	// Unset flags keep their defaults.
	if settings.Manuals.FetchTimeout != 15*time.Second {
		t.Errorf("Expected default fetch timeout, got %v", settings.Manuals.FetchTimeout)
	}
}
