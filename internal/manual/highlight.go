package manual

import (
	"fmt"
	"strings"

	"github.com/sha1n/mcp-manual-server/internal/dom"
	"golang.org/x/net/html"
)

const (
	// SnippetMarkClass marks matches inside result snippets and titles.
	SnippetMarkClass = "search-hit"
	// LiveMarkClass marks matches highlighted in the page content.
	LiveMarkClass = "search-hit-live"

	// DefaultHighlightTargets lists the content elements whose text is highlighted.
	DefaultHighlightTargets = ".step-header h2, .step-content h3, .procedure-item h4, .procedure-text, p, li, dt, dd"

	// DefaultHighlightMinLength is the shortest token shown as a highlight.
	DefaultHighlightMinLength = 2
)

var (
	excludedSel = dom.MustCompile("code, pre, style, script, mark")
	marksSel    = dom.MustCompile("mark." + SnippetMarkClass + ", mark." + LiveMarkClass)
)

// Highlighter wraps query matches in page text with live mark elements.
type Highlighter struct {
	targets   dom.Selector
	minLength int
}

// NewHighlighter compiles the target selector. minLength <= 0 selects the
// default.
func NewHighlighter(targets string, minLength int) (*Highlighter, error) {
	if strings.TrimSpace(targets) == "" {
		targets = DefaultHighlightTargets
	}
	sel, err := dom.Compile(targets)
	if err != nil {
		return nil, fmt.Errorf("failed to compile highlight targets: %w", err)
	}
	if minLength <= 0 {
		minLength = DefaultHighlightMinLength
	}
	return &Highlighter{targets: sel, minLength: minLength}, nil
}

// edit replaces one text node with text and mark nodes covering spans.
type edit struct {
	node  *html.Node
	spans []span
}

// Highlight clears previous highlights under scope and marks every token
// occurrence in target text. It returns the number of marks inserted.
func (h *Highlighter) Highlight(scope *html.Node, tokens []string) int {
	if scope == nil {
		return 0
	}
	ClearHighlights(scope)

	terms := eligibleTerms(tokens, h.minLength)
	if len(terms) == 0 {
		return 0
	}

	var edits []edit
	seen := map[*html.Node]bool{}
	for _, target := range dom.QueryAll(scope, h.targets) {
		dom.Walk(target, func(n *html.Node) bool {
			if n.Type == html.ElementNode && dom.Matches(n, excludedSel) {
				return false
			}
			if n.Type != html.TextNode || seen[n] {
				return true
			}
			seen[n] = true
			if strings.TrimSpace(n.Data) == "" || dom.Closest(n.Parent, excludedSel) != nil {
				return true
			}
			if spans := matchSpans([]rune(Fold(n.Data)), terms); len(spans) > 0 {
				edits = append(edits, edit{node: n, spans: spans})
			}
			return true
		})
	}

	count := 0
	for i := len(edits) - 1; i >= 0; i-- {
		count += applyEdit(edits[i])
	}
	return count
}

// applyEdit splits the text node from its end towards its start so earlier
// offsets stay valid.
func applyEdit(e edit) int {
	parent := e.node.Parent
	runes := []rune(e.node.Data)
	ref := e.node.NextSibling
	cursor := len(runes)

	insert := func(n *html.Node) {
		parent.InsertBefore(n, ref)
		ref = n
	}

	for i := len(e.spans) - 1; i >= 0; i-- {
		s := e.spans[i]
		if s.end < cursor {
			insert(dom.NewText(string(runes[s.end:cursor])))
		}
		mark := dom.NewElement("mark", "class", LiveMarkClass)
		mark.AppendChild(dom.NewText(string(runes[s.start:s.end])))
		insert(mark)
		cursor = s.start
	}
	if cursor > 0 {
		insert(dom.NewText(string(runes[:cursor])))
	}

	parent.RemoveChild(e.node)
	return len(e.spans)
}

// ClearHighlights unwraps every search mark under scope and merges the text
// split by highlighting. It returns the number of marks removed.
func ClearHighlights(scope *html.Node) int {
	marks := dom.QueryAll(scope, marksSel)
	for _, m := range marks {
		parent := m.Parent
		dom.Unwrap(m)
		dom.Normalize(parent)
	}
	return len(marks)
}
