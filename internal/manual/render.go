package manual

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/sha1n/mcp-manual-server/internal/dom"
	"golang.org/x/net/html"
)

// PanelShowClass is toggled on the results element while it has content.
const PanelShowClass = "show"

// Messages holds the user-visible strings of the results panel.
type Messages struct {
	// ResultCount is a format string receiving the number of results.
	ResultCount string
	// NoResultsTitle heads the empty state.
	NoResultsTitle string
	// NoResultsHint is a format string receiving the query.
	NoResultsHint string
}

// DefaultMessages returns English panel strings.
func DefaultMessages() Messages {
	return Messages{
		ResultCount:    "%d results",
		NoResultsTitle: "No matching results",
		NoResultsHint:  "Nothing matched “%s”. Try a shorter term or different wording.",
	}
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.ResultCount == "" {
		m.ResultCount = d.ResultCount
	}
	if m.NoResultsTitle == "" {
		m.NoResultsTitle = d.NoResultsTitle
	}
	if m.NoResultsHint == "" {
		m.NoResultsHint = d.NoResultsHint
	}
	return m
}

var panelTemplate = template.Must(template.New("panel").Parse(
	`{{if .Items}}<div class="sr-head">{{.Head}}</div>` +
		`{{range .Items}}<a href="{{.Target}}" class="sr-item" data-target="{{.Target}}" data-anchor-id="{{.AnchorID}}" tabindex="0">` +
		`<div class="sr-breadcrumb">{{.Breadcrumb}}</div>` +
		`<div class="sr-title">{{.Title}}</div>` +
		`<div class="sr-snippet">{{.Snippet}}</div>` +
		`</a>{{end}}` +
		`{{else}}<div class="sr-empty">` +
		`<div class="sr-empty-title">{{.EmptyTitle}}</div>` +
		`<div class="sr-empty-sub">{{.EmptyHint}}</div>` +
		`</div>{{end}}`))

type panelView struct {
	Head       string
	Items      []itemView
	EmptyTitle string
	EmptyHint  string
}

type itemView struct {
	Target     string
	AnchorID   string
	Breadcrumb string
	Title      template.HTML
	Snippet    template.HTML
}

// renderPanel returns the panel markup for a non-empty query.
func renderPanel(results []Result, query string, msgs Messages, minLength int) (string, error) {
	terms := eligibleTerms(Tokenize(query), minLength)

	view := panelView{
		Head:       fmt.Sprintf(msgs.ResultCount, len(results)),
		EmptyTitle: msgs.NoResultsTitle,
		EmptyHint:  fmt.Sprintf(msgs.NoResultsHint, query),
	}
	for _, r := range results {
		view.Items = append(view.Items, itemView{
			Target:     "#" + r.Entry.SectionID,
			AnchorID:   r.Entry.AnchorID,
			Breadcrumb: r.Entry.SectionTitle,
			// markText and Snippet escape their input.
			Title:   template.HTML(markText(r.Entry.Title, terms, SnippetMarkClass)),
			Snippet: template.HTML(r.Snippet),
		})
	}

	var buf bytes.Buffer
	if err := panelTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render results panel: %w", err)
	}
	return buf.String(), nil
}

func showPanel(panel *html.Node, markup string) error {
	if panel == nil {
		return nil
	}
	if err := dom.SetInnerHTML(panel, markup); err != nil {
		return err
	}
	dom.AddClass(panel, PanelShowClass)
	return nil
}

func hidePanel(panel *html.Node) {
	if panel == nil {
		return
	}
	dom.RemoveClass(panel, PanelShowClass)
	dom.RemoveChildren(panel)
}
