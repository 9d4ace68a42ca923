package manual

import (
	"testing"

	"github.com/sha1n/mcp-manual-server/internal/dom"
	"golang.org/x/net/html"
)

const accountPage = `<!DOCTYPE html>
<html><head><title>Manual</title></head>
<body>
<input id="search" type="search"/>
<div id="results" class="search-results"></div>
<div class="content-panel">
<section class="step-section" id="section1">
<div class="step-header"><h2>Account Setup</h2></div>
<div class="step-content">
<p>Create an account before first use.</p>
<div class="procedure-item">
<h4>Sign-in Process</h4>
<p class="procedure-text">Sign in using your registered email address</p>
</div>
</div>
</section>
<section class="step-section" id="section2">
<div class="step-header"><h2>FAQ</h2></div>
<div class="step-content">
<div class="procedure-item">
<h4>Password Reset</h4>
<p class="procedure-text">Reset your password from the sign-in page</p>
</div>
</div>
</section>
</div>
</body></html>`

type fakeViewport struct {
	scrolled []*html.Node
	focused  []*html.Node
}

func (v *fakeViewport) ScrollTo(n *html.Node) { v.scrolled = append(v.scrolled, n) }
func (v *fakeViewport) Focus(n *html.Node)    { v.focused = append(v.focused, n) }

func parsePage(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("Failed to parse page: %v", err)
	}
	return doc
}

func newTestModule(t *testing.T, page string, opts Options) (*Module, *html.Node) {
	t.Helper()
	doc := parsePage(t, page)
	if opts.Input == nil {
		opts.Input = dom.ByID(doc, "search")
	}
	if opts.Results == nil {
		opts.Results = dom.ByID(doc, "results")
	}
	m, err := New(doc, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(m.Close)
	return m, doc
}
