package manual

import (
	"fmt"

	"github.com/sha1n/mcp-manual-server/internal/dom"
	"golang.org/x/net/html"
)

// Layout describes how to read titles and anchors out of a page. Nil fields
// fall back to DefaultLayout.
type Layout struct {
	// SectionTitle returns the node holding a section's display title.
	SectionTitle func(section *html.Node) *html.Node
	// SectionSummary returns the nodes whose text forms a section entry's
	// searchable summary, next to the title.
	SectionSummary func(section *html.Node) []*html.Node
	// ItemHeading returns an item's heading, used as title and scroll anchor.
	ItemHeading func(item *html.Node) *html.Node
	// ItemType classifies an item.
	ItemType func(item *html.Node) EntryType
	// StepTitle labels an item without a usable heading; n is 1-based.
	StepTitle func(n int) string
}

var (
	sectionTitleSel   = dom.MustCompile(".step-header h2")
	sectionSummarySel = dom.MustCompile(".step-content > p, .step-content > .note-card")
	newsItemSel       = dom.MustCompile(".news-item")
	newsHeadingSel    = dom.MustCompile("h3.news-content-heading")
	newsWrapperSel    = dom.MustCompile(".news-item-wrapper")
	newsTitleSel      = dom.MustCompile("h2.news-item-title")
	procHeadingSel    = dom.MustCompile("h4")
)

// DefaultLayout matches the manual page markup: `.step-header h2` section
// titles, procedure items with an h4 heading and changelog news items.
func DefaultLayout() Layout {
	return Layout{
		SectionTitle: func(section *html.Node) *html.Node {
			return dom.Query(section, sectionTitleSel)
		},
		SectionSummary: func(section *html.Node) []*html.Node {
			return dom.QueryAll(section, sectionSummarySel)
		},
		ItemHeading: func(item *html.Node) *html.Node {
			if !dom.Matches(item, newsItemSel) {
				return dom.Query(item, procHeadingSel)
			}
			if h := dom.Query(item, newsHeadingSel); h != nil {
				return h
			}
			return dom.Query(dom.Closest(item, newsWrapperSel), newsTitleSel)
		},
		ItemType: func(item *html.Node) EntryType {
			if dom.Matches(item, newsItemSel) {
				return EntryNews
			}
			return EntryProcedure
		},
		StepTitle: func(n int) string {
			return fmt.Sprintf("Step %d", n)
		},
	}
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.SectionTitle == nil {
		l.SectionTitle = d.SectionTitle
	}
	if l.SectionSummary == nil {
		l.SectionSummary = d.SectionSummary
	}
	if l.ItemHeading == nil {
		l.ItemHeading = d.ItemHeading
	}
	if l.ItemType == nil {
		l.ItemType = d.ItemType
	}
	if l.StepTitle == nil {
		l.StepTitle = d.StepTitle
	}
	return l
}
