// Package manual implements in-page search over a manual page: it indexes
// sections and their procedure/news items, ranks entries for a query,
// renders a results panel into the page and highlights matches in the
// content when jumping to a result.
package manual

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sha1n/mcp-manual-server/internal/dom"
	"golang.org/x/net/html"
)

// Defaults for Options.
const (
	DefaultSectionsSelector  = ".content-panel .step-section"
	DefaultItemsSelector     = ".procedure-item, .news-item"
	DefaultContentSelector   = ".content-panel"
	DefaultStrongTokenLength = 4
	DefaultMaxResults        = 50

	topHash = "#top"
)

var liveMarkSel = dom.MustCompile("mark." + LiveMarkClass)

// Viewport receives the scroll and focus requests a jump or clear produces.
type Viewport interface {
	ScrollTo(target *html.Node)
	Focus(target *html.Node)
}

type noopViewport struct{}

func (noopViewport) ScrollTo(*html.Node) {}
func (noopViewport) Focus(*html.Node)    {}

// Options configure a Module. Zero values select defaults.
type Options struct {
	SectionsSelector string
	ItemsSelector    string
	// ContentSelector locates the root cleared by ClearSearch. The whole
	// document is used when nothing matches.
	ContentSelector string
	// HighlightTargets lists the elements whose text gets live highlights.
	HighlightTargets string

	// Input and Results are the search box and results panel. Either may be
	// nil, in which case nothing is rendered.
	Input   *html.Node
	Results *html.Node

	// OnJump handles activated results. Activate falls back to JumpTo.
	OnJump func(anchorID, sectionHash string)

	Layout   Layout
	Messages Messages
	Viewport Viewport
	Logger   *slog.Logger

	StrongTokenLength  int
	HighlightMinLength int
	SnippetRadius      int
	MaxResults         int
	DebounceDelay      time.Duration
}

// Result pairs an entry with its score and rendered snippet.
type Result struct {
	Entry   IndexEntry `json:"entry"`
	Score   int        `json:"score"`
	Snippet string     `json:"snippet"`
}

// Module is a search over one parsed page. The tree is owned by the module:
// all reads and writes must go through its methods.
type Module struct {
	mu sync.Mutex

	doc         *html.Node
	opts        Options
	itemsSel    dom.Selector
	contentSel  dom.Selector
	highlighter *Highlighter
	debounce    *debouncer
	logger      *slog.Logger

	entries   []IndexEntry
	lastQuery string
	// inputGen counts Input and ClearSearch calls; a debounced search runs
	// only if it is still the latest.
	inputGen uint64
}

// New indexes doc and returns a module over it.
func New(doc *html.Node, opts Options) (*Module, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}
	opts = opts.withDefaults()

	sections, err := dom.Compile(opts.SectionsSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sections selector: %w", err)
	}
	items, err := dom.Compile(opts.ItemsSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to compile items selector: %w", err)
	}
	content, err := dom.Compile(opts.ContentSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to compile content selector: %w", err)
	}
	highlighter, err := NewHighlighter(opts.HighlightTargets, opts.HighlightMinLength)
	if err != nil {
		return nil, err
	}

	m := &Module{
		doc:         doc,
		opts:        opts,
		itemsSel:    items,
		contentSel:  content,
		highlighter: highlighter,
		debounce:    newDebouncer(opts.DebounceDelay),
		logger:      opts.Logger,
	}
	m.entries = BuildIndex(doc, sections, items, opts.Layout)
	m.logger.Debug("Built search index", "entries", len(m.entries))
	return m, nil
}

func (o Options) withDefaults() Options {
	if o.SectionsSelector == "" {
		o.SectionsSelector = DefaultSectionsSelector
	}
	if o.ItemsSelector == "" {
		o.ItemsSelector = DefaultItemsSelector
	}
	if o.ContentSelector == "" {
		o.ContentSelector = DefaultContentSelector
	}
	if o.StrongTokenLength <= 0 {
		o.StrongTokenLength = DefaultStrongTokenLength
	}
	if o.HighlightMinLength <= 0 {
		o.HighlightMinLength = DefaultHighlightMinLength
	}
	if o.SnippetRadius <= 0 {
		o.SnippetRadius = DefaultSnippetRadius
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = DefaultDebounceDelay
	}
	if o.Viewport == nil {
		o.Viewport = noopViewport{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	o.Layout = o.Layout.withDefaults()
	o.Messages = o.Messages.withDefaults()
	return o
}

// Entries returns a copy of the index.
func (m *Module) Entries() []IndexEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]IndexEntry(nil), m.entries...)
}

// LastQuery returns the query of the most recent search.
func (m *Module) LastQuery() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// Search ranks the index against query and renders the results panel. A
// blank query returns no results and hides the panel.
func (m *Module) Search(query string) []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchAndRender(query)
}

func (m *Module) searchAndRender(query string) []Result {
	m.lastQuery = query
	dom.SetAttr(m.opts.Input, "value", query)

	results := m.search(query)
	if strings.TrimSpace(query) == "" {
		hidePanel(m.opts.Results)
		return results
	}
	if m.opts.Results == nil {
		return results
	}

	markup, err := renderPanel(results, query, m.opts.Messages, m.opts.HighlightMinLength)
	if err == nil {
		err = showPanel(m.opts.Results, markup)
	}
	if err != nil {
		m.logger.Error("Failed to render search results", "error", err)
	}
	return results
}

func (m *Module) search(query string) []Result {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		entry IndexEntry
		score int
	}
	var hits []scored
	for _, e := range m.entries {
		if s := Score(e.Text, tokens, m.opts.StrongTokenLength); s > 0 {
			hits = append(hits, scored{e, s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].entry.Type == EntrySection && hits[j].entry.Type != EntrySection
	})
	if len(hits) > m.opts.MaxResults {
		hits = hits[:m.opts.MaxResults]
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Entry:   h.entry,
			Score:   h.score,
			Snippet: Snippet(h.entry.Text, tokens, m.opts.SnippetRadius, m.opts.HighlightMinLength),
		}
	}
	return results
}

// JumpTo re-highlights the section named by sectionHash with the last query
// and scrolls to the best target for anchorID: the first live highlight in
// the item (or section) when there is one, otherwise the item heading. It
// returns the node scrolled to, or nil when nothing could be resolved.
func (m *Module) JumpTo(anchorID, sectionHash string) *html.Node {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := strings.TrimSpace(sectionHash)
	if hash == "" {
		hash = topHash
	}
	section := dom.ByID(m.doc, strings.TrimPrefix(hash, "#"))
	if section != nil {
		marks := m.highlighter.Highlight(section, Tokenize(m.lastQuery))
		m.logger.Debug("Highlighted section", "section", hash, "marks", marks)
	}

	el := dom.ByID(m.doc, anchorID)
	if el == nil && anchorID != "" {
		el = m.anchorByAttr(anchorID)
	}
	if el == nil {
		m.logger.Debug("Anchor not found, using section", "anchor", anchorID, "section", hash)
		el = section
	}
	if el == nil {
		return nil
	}

	if heading := m.preferredHeading(el); heading != nil {
		el = heading
	}

	scope := dom.Closest(el, m.itemsSel)
	if scope == nil {
		scope = section
	}
	if scope == nil {
		scope = el
	}

	target := el
	if mark := dom.Query(scope, liveMarkSel); mark != nil {
		target = mark
	}

	m.opts.Viewport.ScrollTo(target)
	return target
}

// anchorByAttr finds the content element carrying anchorID in AnchorAttr.
// Result links in the panel carry the same attribute and are skipped.
func (m *Module) anchorByAttr(anchorID string) *html.Node {
	var found *html.Node
	dom.Walk(m.contentRoot(), func(n *html.Node) bool {
		if found != nil || (m.opts.Results != nil && n == m.opts.Results) {
			return false
		}
		if n.Type == html.ElementNode && dom.AttrOr(n, AnchorAttr, "") == anchorID {
			found = n
			return false
		}
		return true
	})
	return found
}

// preferredHeading returns the item heading to land on for el: the heading of
// el itself when it is an item, else of the first item nested in el, else of
// the item containing el. It returns nil when el already is that heading.
func (m *Module) preferredHeading(el *html.Node) *html.Node {
	if dom.Matches(el, m.itemsSel) {
		return m.opts.Layout.ItemHeading(el)
	}
	item := dom.Closest(el, m.itemsSel)
	if item != nil && m.opts.Layout.ItemHeading(item) == el {
		return nil
	}
	if nested := dom.Query(el, m.itemsSel); nested != nil {
		if h := m.opts.Layout.ItemHeading(nested); h != nil {
			return h
		}
	}
	if item != nil {
		return m.opts.Layout.ItemHeading(item)
	}
	return nil
}

// ClearSearch empties the input, hides the panel, removes every highlight
// in the content root and focuses the input.
func (m *Module) ClearSearch() {
	m.debounce.stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputGen++
	m.lastQuery = ""
	dom.SetAttr(m.opts.Input, "value", "")
	hidePanel(m.opts.Results)
	ClearHighlights(m.contentRoot())
	m.opts.Viewport.Focus(m.opts.Input)
}

func (m *Module) contentRoot() *html.Node {
	if root := dom.Query(m.doc, m.contentSel); root != nil {
		return root
	}
	return m.doc
}

// Activate handles a chosen result: the panel is hidden and the jump is
// delegated to OnJump, or to JumpTo when no callback is set.
func (m *Module) Activate(anchorID, sectionHash string) {
	m.mu.Lock()
	hidePanel(m.opts.Results)
	onJump := m.opts.OnJump
	m.mu.Unlock()

	if onJump != nil {
		onJump(anchorID, sectionHash)
		return
	}
	m.JumpTo(anchorID, sectionHash)
}

// Input records typed text and schedules a search after the debounce delay.
// A newer call supersedes a pending one. Blank input hides the panel and
// clears content highlights instead of searching.
func (m *Module) Input(value string) {
	m.mu.Lock()
	dom.SetAttr(m.opts.Input, "value", value)
	m.inputGen++
	gen := m.inputGen
	m.mu.Unlock()

	m.debounce.trigger(func() { m.runInput(gen, value) })
}

// runInput performs the search scheduled by the Input call numbered gen,
// unless a later Input or ClearSearch superseded it.
func (m *Module) runInput(gen uint64, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.inputGen {
		return
	}
	if strings.TrimSpace(value) == "" {
		m.lastQuery = ""
		hidePanel(m.opts.Results)
		ClearHighlights(m.contentRoot())
		return
	}
	m.searchAndRender(value)
}

// ResultsHTML renders the current content of the results panel.
func (m *Module) ResultsHTML() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return dom.InnerHTML(m.opts.Results)
}

// PanelVisible reports whether the results panel is shown.
func (m *Module) PanelVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return dom.HasClass(m.opts.Results, PanelShowClass)
}

// Section returns the outer HTML of the element with id, including current
// highlights.
func (m *Module) Section(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := dom.ByID(m.doc, id)
	if n == nil {
		return "", false
	}
	return dom.OuterHTML(n), true
}

// Render writes the whole page as it currently stands.
func (m *Module) Render(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return html.Render(w, m.doc)
}

// Close cancels a pending debounced search.
func (m *Module) Close() {
	m.debounce.stop()
}
