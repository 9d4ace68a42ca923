package changelog

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/sha1n/mcp-manual-server/internal/dom"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
)

// DefaultContainer is where the feed is rendered on a manual page.
const DefaultContainer = "#whatsNewContainer"

// RenderOptions control the feed markup.
type RenderOptions struct {
	LinkLabel     string
	TicketLabel   string
	ShowTicketIDs bool
}

// Renderer turns releases into manual page markup.
type Renderer struct {
	md   goldmark.Markdown
	opts RenderOptions
}

// NewRenderer returns a renderer. Content text is rendered as GitHub
// flavored Markdown; raw HTML in it is dropped.
func NewRenderer(opts RenderOptions) *Renderer {
	if opts.LinkLabel == "" {
		opts.LinkLabel = "Open in manual"
	}
	if opts.TicketLabel == "" {
		opts.TicketLabel = "Tickets"
	}
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
		),
		opts: opts,
	}
}

var feedTemplate = template.Must(template.New("feed").Parse(
	`{{range .Releases}}<div class="news-item-wrapper">` +
		`<h2 class="news-item-title">{{.Title}}</h2>` +
		`<article class="news-item" data-version="{{.Version}}"><div class="news-item-content">` +
		`<div class="news-item-meta"><span class="news-item-date">{{.Date}}</span><span class="news-item-badge">v{{.Version}}</span></div>` +
		`{{range .Contents}}<div class="news-content-section">` +
		`<h3 class="news-content-heading">{{.Heading}}</h3>` +
		`<div class="news-content-text">{{.Text}}</div>` +
		`{{if .Image}}<div class="news-content-image"><img src="{{.Image}}" alt="{{.Heading}}" class="news-item-image" loading="lazy"/></div>{{end}}` +
		`{{if .Link}}<p class="news-content-link"><a href="{{.Link}}" target="_blank" rel="noopener noreferrer">{{$.LinkLabel}}</a></p>{{end}}` +
		`{{if .TicketIDs}}<p class="news-content-ticket-ids"><small>{{$.TicketLabel}}: {{.TicketIDs}}</small></p>{{end}}` +
		`</div>{{end}}` +
		`</div></article></div>{{end}}`))

type feedView struct {
	LinkLabel   string
	TicketLabel string
	Releases    []releaseView
}

type releaseView struct {
	Title    string
	Version  string
	Date     string
	Contents []contentView
}

type contentView struct {
	Heading   string
	Text      template.HTML
	Image     string
	Link      string
	TicketIDs string
}

// Render returns the markup for releases in the given order.
func (r *Renderer) Render(releases []Release) (string, error) {
	view := feedView{LinkLabel: r.opts.LinkLabel, TicketLabel: r.opts.TicketLabel}
	for _, rel := range releases {
		rv := releaseView{Title: rel.DisplayTitle(), Version: rel.Version, Date: rel.Date}
		for _, c := range rel.Contents {
			var buf bytes.Buffer
			if err := r.md.Convert([]byte(c.Text), &buf); err != nil {
				return "", fmt.Errorf("failed to render %q (%s): %w", c.Heading, rel.Version, err)
			}
			cv := contentView{
				Heading: c.Heading,
				// goldmark escapes raw HTML unless configured otherwise.
				Text:  template.HTML(buf.String()),
				Image: c.Image,
				Link:  c.Link,
			}
			if r.opts.ShowTicketIDs {
				cv.TicketIDs = c.TicketIDs
			}
			rv.Contents = append(rv.Contents, cv)
		}
		view.Releases = append(view.Releases, rv)
	}

	var buf bytes.Buffer
	if err := feedTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render changelog: %w", err)
	}
	return buf.String(), nil
}

// Apply renders the published releases of feed into the element matching
// container. It returns the number of releases rendered, zero when the page
// has no such element.
func (r *Renderer) Apply(doc *html.Node, container string, feed *Feed) (int, error) {
	if container == "" {
		container = DefaultContainer
	}
	sel, err := dom.Compile(container)
	if err != nil {
		return 0, err
	}
	target := dom.Query(doc, sel)
	if target == nil || feed == nil {
		return 0, nil
	}

	releases := feed.Published()
	markup, err := r.Render(releases)
	if err != nil {
		return 0, err
	}
	if err := dom.SetInnerHTML(target, markup); err != nil {
		return 0, err
	}
	return len(releases), nil
}
