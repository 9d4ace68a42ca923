package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/mcp-manual-server/internal/changelog"
	"github.com/sha1n/mcp-manual-server/internal/config"
	"github.com/sha1n/mcp-manual-server/internal/manual"
)

const (
	setupURL = "https://docs.example.com/setup.html"
	setupID  = "docs.example.com_setup"
	faqURL   = "https://docs.example.com/faq.html"
	faqID    = "docs.example.com_faq"
)

const setupPage = `<!DOCTYPE html>
<html><head><title>Setup Guide</title></head>
<body>
<input id="manualSearch" type="search"/>
<div id="manualSearchResults" class="search-results"></div>
<div class="content-panel">
<section class="step-section" id="section1">
<div class="step-header"><h2>Account Setup</h2></div>
<div class="step-content">
<p>Create an account before first use.</p>
<div class="procedure-item">
<h4 id="sign-in">Sign-in Process</h4>
<p class="procedure-text">Sign in using your registered email address</p>
</div>
</div>
</section>
<section class="step-section" id="whats-new">
<div class="step-header"><h2>What's New</h2></div>
<div id="whatsNewContainer"></div>
</section>
</div>
</body></html>`

const faqPage = `<!DOCTYPE html>
<html><head><title>FAQ</title></head>
<body>
<input id="manualSearch" type="search"/>
<div id="manualSearchResults" class="search-results"></div>
<div class="content-panel">
<section class="step-section" id="faq">
<div class="step-header"><h2>Frequently Asked</h2></div>
<div class="step-content">
<div class="procedure-item">
<h4>Password Reset</h4>
<p class="procedure-text">Reset your password from the sign-in page</p>
</div>
</div>
</section>
</div>
</body></html>`

const feedYAML = `
releases:
  - date: "2025-03-01"
    version: "1.1"
    title: Dark mode arrives
    contents:
      - heading: Dark theme
        text: Switch to the **dark** theme in settings.
`

func createTestFile(t *testing.T, baseDir, relPath, content string) string {
	t.Helper()
	path := filepath.Join(baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	return path
}

func newTestSettings(t *testing.T, sources ...string) *config.ManualSettings {
	t.Helper()
	return &config.ManualSettings{
		Sources:            sources,
		BaseDir:            t.TempDir(),
		SyncTimeout:        5 * time.Second,
		FetchTimeout:       5 * time.Second,
		MaxPageSize:        1 << 20,
		MaxResults:         manual.DefaultMaxResults,
		LibraryMaxResults:  20,
		InputSelector:      "#manualSearch",
		ResultsSelector:    "#manualSearchResults",
		DebounceDelay:      10 * time.Millisecond,
		ChangelogContainer: changelog.DefaultContainer,
	}
}

// newTestService returns an initialized service serving the setup and FAQ
// pages through a mock fetcher.
func newTestService(t *testing.T) (*Service, *MockFetcher) {
	t.Helper()
	fetcher := NewMockFetcher()
	fetcher.SetPage(setupURL, setupPage)
	fetcher.SetPage(faqURL, faqPage)

	svc := newServiceWithFetcher(t, newTestSettings(t, setupURL, faqURL), fetcher)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return svc, fetcher
}

func newServiceWithFetcher(t *testing.T, settings *config.ManualSettings, fetcher Fetcher) *Service {
	t.Helper()
	svc, err := NewService(settings)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	svc.SetFetcher(fetcher)
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Logf("Warning: Close failed: %v", err)
		}
	})
	return svc
}
