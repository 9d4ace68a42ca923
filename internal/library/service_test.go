package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/mcp-manual-server/internal/manual"
)

type recordingReporter struct {
	mu       sync.Mutex
	total    int
	updates  int
	finished bool
}

func (r *recordingReporter) Start(total int) { r.total = total }
func (r *recordingReporter) Finish()         { r.finished = true }

func (r *recordingReporter) Update(int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
}

func TestNewService_NilSettings(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Error("Expected error for nil settings")
	}
}

func TestNewService_InvalidSelector(t *testing.T) {
	settings := newTestSettings(t)
	settings.InputSelector = "[["
	if _, err := NewService(settings); err == nil {
		t.Error("Expected error for invalid input selector")
	}
}

func TestService_Initialize(t *testing.T) {
	svc, fetcher := newTestService(t)

	fetcher.MustGetCallCount(t, setupURL, 1)
	fetcher.MustGetCallCount(t, faqURL, 1)

	pages := svc.Pages()
	if len(pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(pages))
	}
	if pages[0].ID != setupID || pages[1].ID != faqID {
		t.Errorf("Expected pages in source order, got %s, %s", pages[0].ID, pages[1].ID)
	}
	if pages[0].Title != "Setup Guide" {
		t.Errorf("Expected title 'Setup Guide', got %q", pages[0].Title)
	}
	if pages[0].Entries == 0 || pages[0].ContentHash == "" {
		t.Errorf("Expected entries and content hash, got %+v", pages[0])
	}

	if !svc.IsReady() {
		t.Fatal("Expected service to be ready")
	}
	alias, err := svc.GetIndexAlias()
	if err != nil {
		t.Fatalf("GetIndexAlias failed: %v", err)
	}
	res, err := alias.Search(bleve.NewSearchRequest(bleve.NewMatchQuery("password")))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Total == 0 {
		t.Error("Expected a cross-page hit for 'password'")
	}

	state := svc.manifest.PageState(setupID)
	if state.ContentHash != pages[0].ContentHash || state.EntryCount != pages[0].Entries {
		t.Errorf("Manifest state out of sync: %+v", state)
	}
}

func TestService_Initialize_ReportsProgress(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(setupURL, setupPage)
	fetcher.SetPage(faqURL, faqPage)

	svc := newServiceWithFetcher(t, newTestSettings(t, setupURL, faqURL), fetcher)
	reporter := &recordingReporter{}
	svc.SetProgress(reporter)

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if reporter.total != 2 || reporter.updates != 2 || !reporter.finished {
		t.Errorf("Unexpected progress: total=%d updates=%d finished=%v", reporter.total, reporter.updates, reporter.finished)
	}
}

func TestService_Refresh(t *testing.T) {
	svc, fetcher := newTestService(t)
	ctx := context.Background()

	report, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(report.Reindexed) != 0 || len(report.Unchanged) != 2 {
		t.Errorf("Expected all pages unchanged, got %+v", report)
	}

	fetcher.SetPage(setupURL, strings.Replace(setupPage, "registered email", "work email", 1))
	report, err = svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !slices.Equal(report.Reindexed, []string{setupID}) {
		t.Errorf("Expected only %s reindexed, got %v", setupID, report.Reindexed)
	}
	if !svc.IsReady() {
		t.Error("Expected service to be ready after refresh")
	}

	results, err := svc.Search(setupID, "work")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Error("Expected refreshed page content to be searchable")
	}
}

func TestService_Refresh_FailedPageKeepsPrevious(t *testing.T) {
	svc, fetcher := newTestService(t)

	fetcher.SetError(faqURL, errors.New("connection refused"))
	report, err := svc.Refresh(context.Background())
	if err == nil {
		t.Error("Expected refresh to report the failed page")
	}
	if _, ok := report.Failed[faqID]; !ok {
		t.Errorf("Expected %s in failed pages, got %v", faqID, report.Failed)
	}

	pages := svc.Pages()
	if len(pages) != 2 {
		t.Fatalf("Expected failed page to keep serving, got %d pages", len(pages))
	}
	if pages[1].Error == "" {
		t.Error("Expected error recorded for failed page")
	}
	if results, _ := svc.Search(faqID, "password"); len(results) == 0 {
		t.Error("Expected previous FAQ module to still answer searches")
	}
}

func TestService_Refresh_RemovesStalePages(t *testing.T) {
	svc, _ := newTestService(t)

	svc.GetSettings().Sources = []string{setupURL}
	report, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !slices.Equal(report.Removed, []string{faqID}) {
		t.Errorf("Expected %s removed, got %v", faqID, report.Removed)
	}
	if svc.indexer.IndexExists(faqID) {
		t.Error("Expected stale index to be deleted")
	}
	if _, err := svc.Search(faqID, "password"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Expected ErrPageNotFound, got %v", err)
	}
}

func TestService_LocalSources(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "manuals/setup.html", setupPage)
	createTestFile(t, dir, "manuals/drafts/faq.html", faqPage)

	settings := newTestSettings(t, filepath.Join(dir, "manuals", "**", "*.html"))
	settings.Exclude = []string{"drafts/**"}
	svc, err := NewService(settings)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	pages := svc.Pages()
	if len(pages) != 1 || pages[0].ID != "setup" {
		t.Errorf("Expected only the setup page, got %+v", pages)
	}
}

func TestService_Changelog(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(setupURL, setupPage)

	settings := newTestSettings(t, setupURL)
	settings.Changelog = createTestFile(t, t.TempDir(), "feed.yaml", feedYAML)
	svc := newServiceWithFetcher(t, settings, fetcher)

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	results, err := svc.Search(setupID, "dark theme")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	found := false
	for _, r := range results {
		if r.Entry.Type == manual.EntryNews {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a news entry from the changelog, got %+v", results)
	}

	// A feed change alone changes the page hash.
	createTestFile(t, filepath.Dir(settings.Changelog), "feed.yaml", strings.Replace(feedYAML, "Dark theme", "Night theme", 1))
	report, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !slices.Equal(report.Reindexed, []string{setupID}) {
		t.Errorf("Expected page reindexed after feed change, got %+v", report)
	}
}

func TestService_InvalidChangelogStillServes(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(setupURL, setupPage)

	settings := newTestSettings(t, setupURL)
	settings.Changelog = createTestFile(t, t.TempDir(), "feed.yaml", "releases: nope")
	svc := newServiceWithFetcher(t, settings, fetcher)

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if len(svc.Pages()) != 1 {
		t.Error("Expected page to be served without the changelog")
	}
}

func TestService_Follower(t *testing.T) {
	fetcher := NewMockFetcher()
	fetcher.SetPage(setupURL, setupPage)

	settings := newTestSettings(t, setupURL)
	settings.SyncTimeout = 100 * time.Millisecond
	holdLock(t, filepath.Join(settings.BaseDir, LockFilename))

	svc := newServiceWithFetcher(t, settings, fetcher)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if len(svc.Pages()) != 1 {
		t.Error("Expected follower to serve pages")
	}
	if svc.IsReady() {
		t.Error("Expected follower without leader indexes to be not ready")
	}
	if _, err := svc.GetIndexAlias(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestService_SearchJumpAndClear(t *testing.T) {
	svc, _ := newTestService(t)

	results, err := svc.Search(setupID, "email")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Expected results for 'email'")
	}
	if _, visible, _ := svc.ResultsHTML(setupID); !visible {
		t.Error("Expected results panel to be visible")
	}

	jump, err := svc.JumpTo(setupID, "sign-in", "#section1")
	if err != nil {
		t.Fatalf("JumpTo failed: %v", err)
	}
	if jump.Target == nil {
		t.Fatal("Expected a scroll target")
	}
	if jump.Target.ID != "section1" {
		t.Errorf("Expected target within section1, got %q", jump.Target.ID)
	}
	if !strings.Contains(jump.SectionHTML, manual.LiveMarkClass) {
		t.Errorf("Expected live highlights in section, got %s", jump.SectionHTML)
	}

	if err := svc.ClearSearch(setupID); err != nil {
		t.Fatalf("ClearSearch failed: %v", err)
	}
	if _, visible, _ := svc.ResultsHTML(setupID); visible {
		t.Error("Expected results panel to be hidden after clear")
	}
	section, err := svc.ReadSection(setupID, "#section1")
	if err != nil {
		t.Fatalf("ReadSection failed: %v", err)
	}
	if strings.Contains(section, manual.LiveMarkClass) {
		t.Error("Expected highlights removed after clear")
	}
}

func TestService_Input(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.Input(setupID, "email"); err != nil {
		t.Fatalf("Input failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, visible, _ := svc.ResultsHTML(setupID); visible {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected debounced search to show the results panel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestService_Errors(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ReadSection(setupID, "missing"); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("Expected ErrSectionNotFound, got %v", err)
	}
	if _, err := svc.JumpTo("nope", "a", "#b"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Expected ErrPageNotFound, got %v", err)
	}
	if err := svc.ClearSearch("nope"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Expected ErrPageNotFound, got %v", err)
	}
	if err := svc.Input("nope", "x"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Expected ErrPageNotFound, got %v", err)
	}
}

func TestService_Render(t *testing.T) {
	svc, _ := newTestService(t)

	var buf bytes.Buffer
	if err := svc.Render(faqID, &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Password Reset") {
		t.Errorf("Expected rendered page content, got %s", buf.String())
	}
}

func TestService_JumpTo_ConcurrentTargets(t *testing.T) {
	const stepsURL = "https://docs.example.com/steps.html"
	const stepsPage = `<html><head><title>Steps</title></head><body>
<div class="content-panel">
<section class="step-section" id="steps">
<div class="step-header"><h2>Steps</h2></div>
<div class="step-content">
<div class="procedure-item"><h4 id="step-a">First step</h4></div>
<div class="procedure-item"><h4 id="step-b">Second step</h4></div>
</div>
</section>
</div></body></html>`

	fetcher := NewMockFetcher()
	fetcher.SetPage(stepsURL, stepsPage)
	svc := newServiceWithFetcher(t, newTestSettings(t, stepsURL), fetcher)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	pageID := PageID(stepsURL)

	var wg sync.WaitGroup
	errs := make(chan string, 100)
	for i := 0; i < 100; i++ {
		anchor := "step-a"
		if i%2 == 1 {
			anchor = "step-b"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.JumpTo(pageID, anchor, "#steps")
			if err != nil {
				errs <- err.Error()
				return
			}
			if res.Target == nil || res.Target.ID != anchor {
				errs <- "jump to " + anchor + " reported " + fmt.Sprint(res.Target)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}
