package manual

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/sha1n/mcp-manual-server/internal/dom"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Error("Expected error for nil document")
	}

	doc := parsePage(t, accountPage)
	tests := []Options{
		{SectionsSelector: "[["},
		{ItemsSelector: "[["},
		{ContentSelector: "[["},
		{HighlightTargets: "[["},
	}
	for _, opts := range tests {
		if _, err := New(doc, opts); err == nil {
			t.Errorf("Expected error for options %+v", opts)
		}
	}
}

func TestSearch_SignScenario(t *testing.T) {
	m, doc := newTestModule(t, accountPage, Options{})

	results := m.Search("sign")

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Entry.ID != "section1__proc__0" {
		t.Errorf("Expected Sign-in Process first, got %q", results[0].Entry.ID)
	}
	if results[1].Entry.ID != "section2__proc__0" {
		t.Errorf("Expected Password Reset second, got %q", results[1].Entry.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("Expected first score > second, got %d and %d", results[0].Score, results[1].Score)
	}
	for _, r := range results {
		if !strings.Contains(strings.ToLower(r.Snippet), `<mark class="search-hit">sign</mark>`) {
			t.Errorf("Expected highlighted sign in snippet, got %q", r.Snippet)
		}
	}

	if !m.PanelVisible() {
		t.Error("Expected results panel to be shown")
	}
	if got := dom.AttrOr(dom.ByID(doc, "search"), "value", ""); got != "sign" {
		t.Errorf("Expected input value 'sign', got %q", got)
	}
	newGoldie(t).Assert(t, "panel_sign", []byte(m.ResultsHTML()))
}

func TestSearch_EmptyQuery(t *testing.T) {
	m, _ := newTestModule(t, accountPage, Options{})

	for _, q := range []string{"", "   "} {
		if got := m.Search(q); len(got) != 0 {
			t.Errorf("Expected no results for %q, got %d", q, len(got))
		}
		if m.PanelVisible() {
			t.Errorf("Expected hidden panel for %q", q)
		}
		if html := m.ResultsHTML(); html != "" {
			t.Errorf("Expected empty panel for %q, got %q", q, html)
		}
	}

	m.Search("sign")
	m.Search(" ")
	if m.PanelVisible() || m.ResultsHTML() != "" {
		t.Error("Expected blank query to hide previous results")
	}
}

func TestSearch_NoResults(t *testing.T) {
	m, _ := newTestModule(t, accountPage, Options{})

	if got := m.Search("zzzz"); len(got) != 0 {
		t.Fatalf("Expected no results, got %d", len(got))
	}
	if !m.PanelVisible() {
		t.Error("Expected panel shown with empty state")
	}
	newGoldie(t).Assert(t, "panel_empty", []byte(m.ResultsHTML()))
}

func TestSearch_NoResultsEscapesQuery(t *testing.T) {
	m, _ := newTestModule(t, accountPage, Options{})
	m.Search("<b>")

	out := m.ResultsHTML()
	if strings.Contains(out, "<b>") {
		t.Errorf("Expected query to be escaped, got %s", out)
	}
	if !strings.Contains(out, "&lt;b&gt;") {
		t.Errorf("Expected escaped query in hint, got %s", out)
	}
}

func TestSearch_CustomMessages(t *testing.T) {
	m, _ := newTestModule(t, accountPage, Options{
		Messages: Messages{ResultCount: "%d 件ヒット"},
	})
	m.Search("sign")
	if !strings.Contains(m.ResultsHTML(), `<div class="sr-head">2 件ヒット</div>`) {
		t.Errorf("Expected localized count, got %s", m.ResultsHTML())
	}
}

func TestSearch_SectionWinsTies(t *testing.T) {
	page := `<html><body><div class="content-panel">
<section class="step-section" id="intro"><div class="step-header"><h2>Intro</h2></div>
<div class="step-content"><div class="procedure-item"><h4>Alpha</h4></div></div></section>
<section class="step-section" id="alpha"><div class="step-header"><h2>Alpha</h2></div></section>
</div></body></html>`
	m, _ := newTestModule(t, page, Options{})

	results := m.Search("alpha")
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Score != results[1].Score {
		t.Fatalf("Expected equal scores, got %d and %d", results[0].Score, results[1].Score)
	}
	if results[0].Entry.Type != EntrySection {
		t.Errorf("Expected section first on tie, got %s", results[0].Entry.Type)
	}
}

func TestSearch_MaxResults(t *testing.T) {
	m, _ := newTestModule(t, accountPage, Options{MaxResults: 1})
	if got := m.Search("sign"); len(got) != 1 {
		t.Errorf("Expected 1 result, got %d", len(got))
	}
}

func TestSearch_WithoutInputOrPanel(t *testing.T) {
	page := `<html><body><div class="content-panel">
<section class="step-section" id="s"><div class="step-header"><h2>Sign up</h2></div></section>
</div></body></html>`
	m, _ := newTestModule(t, page, Options{})

	if got := m.Search("sign"); len(got) != 1 {
		t.Errorf("Expected 1 result, got %d", len(got))
	}
	m.ClearSearch()
	if m.PanelVisible() {
		t.Error("Expected no panel")
	}
}

func TestSearch_Concurrent(t *testing.T) {
	m, _ := newTestModule(t, accountPage, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.Search("sign")
			} else {
				m.JumpTo("section2-proc-1", "#section2")
			}
		}(i)
	}
	wg.Wait()
}

func TestJumpTo_HighlightsAndTargetsFirstMark(t *testing.T) {
	vp := &fakeViewport{}
	m, _ := newTestModule(t, accountPage, Options{Viewport: vp})
	m.Search("sign")

	target := m.JumpTo("section1-proc-1", "#section1")

	if target == nil || target.Data != "mark" {
		t.Fatalf("Expected a live mark as target, got %v", target)
	}
	if target.Parent.Data != "h4" {
		t.Errorf("Expected mark inside the item heading, got <%s>", target.Parent.Data)
	}
	if len(vp.scrolled) != 1 || vp.scrolled[0] != target {
		t.Errorf("Expected viewport scrolled to target, got %v", vp.scrolled)
	}

	section, ok := m.Section("section1")
	if !ok {
		t.Fatal("Expected section1")
	}
	newGoldie(t).Assert(t, "jump_section1", []byte(section))

	other, _ := m.Section("section2")
	if strings.Contains(other, "<mark") {
		t.Errorf("Expected other sections untouched, got %s", other)
	}
}

func TestJumpTo_Fallbacks(t *testing.T) {
	page := `<html><body><div class="content-panel">
<section class="step-section" id="s">
<div class="step-header"><h2>Section</h2></div>
<div class="step-content">
<div class="procedure-item" data-anchor-id="legacy"><h4>Legacy item</h4></div>
<div class="procedure-item"><h4>Second item</h4></div>
</div>
</section>
</div></body></html>`

	tests := []struct {
		name        string
		anchor      string
		hash        string
		wantHeading string
	}{
		{"by data attribute", "legacy", "#s", "Legacy item"},
		{"by id", "s-proc-2", "#s", "Second item"},
		{"section fallback", "missing", "#s", "Legacy item"},
		{"blank hash", "s-proc-2", "  ", "Second item"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModule(t, page, Options{})
			target := m.JumpTo(tt.anchor, tt.hash)
			if target == nil {
				t.Fatal("Expected a target")
			}
			if target.Data != "h4" || dom.Text(target) != tt.wantHeading {
				t.Errorf("Expected heading %q, got <%s> %q", tt.wantHeading, target.Data, dom.Text(target))
			}
		})
	}
}

func TestJumpTo_LegacyAnchorAfterSearch(t *testing.T) {
	page := `<html><body>
<input id="search" type="search"/>
<div id="results"></div>
<div class="content-panel">
<section class="step-section" id="s">
<div class="step-header"><h2>Section</h2></div>
<div class="step-content">
<div class="procedure-item" data-anchor-id="legacy-a"><h4>Reset item one</h4></div>
<div class="procedure-item" data-anchor-id="legacy-b"><h4>Reset item two</h4></div>
</div>
</section>
</div></body></html>`

	m, doc := newTestModule(t, page, Options{})
	if results := m.Search("reset"); len(results) < 2 {
		t.Fatalf("Expected both items in results, got %d", len(results))
	}
	if !strings.Contains(m.ResultsHTML(), `data-anchor-id="legacy-b"`) {
		t.Fatal("Expected the panel to link the legacy anchor")
	}

	target := m.JumpTo("legacy-b", "#s")
	if target == nil {
		t.Fatal("Expected a target")
	}
	item := dom.Closest(target, dom.MustCompile(".procedure-item"))
	if item == nil {
		t.Fatalf("Expected the target inside an item, got <%s>", target.Data)
	}
	if got := dom.AttrOr(item, AnchorAttr, ""); got != "legacy-b" {
		t.Errorf("Expected to land in item legacy-b, got %q (%q)", got, dom.Text(item))
	}
	if dom.Closest(target, dom.MustCompile("#results")) != nil {
		t.Error("Expected the target outside the results panel")
	}

	heading := dom.ByID(doc, "legacy-b")
	if heading == nil || heading.Data != "h4" {
		t.Error("Expected the legacy anchor to be written as the heading id")
	}
}

func TestJumpTo_AttributeFallbackSkipsPanel(t *testing.T) {
	page := `<html><body>
<div id="results"><a class="sr-item" data-anchor-id="only-attr">link</a></div>
<section class="step-section" id="s">
<div class="step-header"><h2>Section</h2></div>
<div class="step-content"><p>Intro</p></div>
<div class="note" data-anchor-id="only-attr">Note</div>
</section>
</body></html>`

	m, _ := newTestModule(t, page, Options{})
	target := m.JumpTo("only-attr", "#s")
	if target == nil || dom.Text(target) != "Note" {
		t.Errorf("Expected the content note, got %v", target)
	}
}

func TestJumpTo_Unresolvable(t *testing.T) {
	vp := &fakeViewport{}
	m, _ := newTestModule(t, accountPage, Options{Viewport: vp})

	if target := m.JumpTo("missing", ""); target != nil {
		t.Errorf("Expected nil target, got %v", target)
	}
	if len(vp.scrolled) != 0 {
		t.Error("Expected no scroll")
	}
}

func TestClearSearch(t *testing.T) {
	vp := &fakeViewport{}
	m, doc := newTestModule(t, accountPage, Options{Viewport: vp})
	input := dom.ByID(doc, "search")

	m.Search("sign")
	m.JumpTo("section1-proc-1", "#section1")
	m.ClearSearch()

	if m.PanelVisible() || m.ResultsHTML() != "" {
		t.Error("Expected panel hidden and empty")
	}
	if got := dom.AttrOr(input, "value", "x"); got != "" {
		t.Errorf("Expected empty input value, got %q", got)
	}
	if m.LastQuery() != "" {
		t.Errorf("Expected last query reset, got %q", m.LastQuery())
	}
	if len(dom.QueryAll(doc, liveMarkSel)) != 0 {
		t.Error("Expected all live highlights removed")
	}
	if len(vp.focused) != 1 || vp.focused[0] != input {
		t.Errorf("Expected input focused, got %v", vp.focused)
	}
}

func TestActivate(t *testing.T) {
	t.Run("callback", func(t *testing.T) {
		var gotAnchor, gotHash string
		vp := &fakeViewport{}
		m, _ := newTestModule(t, accountPage, Options{
			Viewport: vp,
			OnJump: func(anchorID, sectionHash string) {
				gotAnchor, gotHash = anchorID, sectionHash
			},
		})
		m.Search("sign")
		m.Activate("section1-proc-1", "#section1")

		if gotAnchor != "section1-proc-1" || gotHash != "#section1" {
			t.Errorf("Expected callback with anchor and hash, got %q %q", gotAnchor, gotHash)
		}
		if m.PanelVisible() {
			t.Error("Expected panel hidden after activation")
		}
		if len(vp.scrolled) != 0 {
			t.Error("Expected callback to replace the built-in jump")
		}
	})

	t.Run("default jump", func(t *testing.T) {
		vp := &fakeViewport{}
		m, _ := newTestModule(t, accountPage, Options{Viewport: vp})
		m.Search("sign")
		m.Activate("section2-proc-1", "#section2")

		if len(vp.scrolled) != 1 {
			t.Errorf("Expected one scroll, got %d", len(vp.scrolled))
		}
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for condition")
}

func TestInput_Debounced(t *testing.T) {
	m, _ := newTestModule(t, accountPage, Options{DebounceDelay: 20 * time.Millisecond})

	m.Input("pass")
	m.Input("sign")
	if m.PanelVisible() {
		t.Error("Expected search to wait for the debounce delay")
	}

	waitFor(t, m.PanelVisible)
	if m.LastQuery() != "sign" {
		t.Errorf("Expected latest input to win, got %q", m.LastQuery())
	}

	m.Input("   ")
	waitFor(t, func() bool { return !m.PanelVisible() })
	if m.ResultsHTML() != "" {
		t.Errorf("Expected empty panel, got %q", m.ResultsHTML())
	}
}

func TestInput_ClearSearchSupersedesPendingSearch(t *testing.T) {
	m, _ := newTestModule(t, accountPage, Options{DebounceDelay: time.Hour})

	m.Input("sign")
	m.mu.Lock()
	gen := m.inputGen
	m.mu.Unlock()

	m.ClearSearch()
	// the timer already fired and passed the debouncer's own check
	m.runInput(gen, "sign")

	if m.PanelVisible() {
		t.Error("Expected a superseded search to leave the panel hidden")
	}
	if m.LastQuery() != "" {
		t.Errorf("Expected no query after clear, got %q", m.LastQuery())
	}
}

func TestInput_ClearSearchBeforeDelay(t *testing.T) {
	m, _ := newTestModule(t, accountPage, Options{DebounceDelay: 20 * time.Millisecond})

	m.Input("sign")
	m.ClearSearch()
	time.Sleep(60 * time.Millisecond)

	if m.PanelVisible() {
		t.Error("Expected cleared input not to search")
	}
}
