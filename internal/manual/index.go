package manual

import (
	"fmt"
	"strings"

	"github.com/sha1n/mcp-manual-server/internal/dom"
	"golang.org/x/net/html"
)

// EntryType classifies an IndexEntry.
type EntryType string

const (
	EntrySection   EntryType = "section"
	EntryProcedure EntryType = "procedure"
	EntryNews      EntryType = "news"
)

// AnchorAttr is written onto items whose anchor id was synthesized. An item
// that already carries it gets that value as the id of its anchor element.
const AnchorAttr = "data-anchor-id"

// IndexEntry is one searchable unit of a page.
type IndexEntry struct {
	ID           string    `json:"id"`
	Type         EntryType `json:"type"`
	SectionID    string    `json:"section_id"`
	SectionTitle string    `json:"section_title"`
	AnchorID     string    `json:"anchor_id"`
	Title        string    `json:"title"`
	Text         string    `json:"text"`
}

// BuildIndex walks the sections under root and returns one entry per section
// followed by one entry per item inside it, in document order.
//
// Sections without an id get "section-N". Items without an id get
// "{sectionId}-proc-{n}", written to the anchor element and mirrored onto
// the item as data-anchor-id.
func BuildIndex(root *html.Node, sections, items dom.Selector, layout Layout) []IndexEntry {
	layout = layout.withDefaults()

	var entries []IndexEntry
	for si, section := range dom.QueryAll(root, sections) {
		secID := dom.ID(section)
		if secID == "" {
			secID = fmt.Sprintf("section-%d", si+1)
			dom.SetAttr(section, "id", secID)
		}

		titleNode := layout.SectionTitle(section)
		secTitle := dom.CollapseSpace(dom.Text(titleNode))

		parts := []string{dom.Text(titleNode)}
		for _, n := range layout.SectionSummary(section) {
			parts = append(parts, dom.Text(n))
		}

		entries = append(entries, IndexEntry{
			ID:           secID,
			Type:         EntrySection,
			SectionID:    secID,
			SectionTitle: secTitle,
			AnchorID:     secID,
			Title:        secTitle,
			Text:         dom.CollapseSpace(strings.Join(parts, " ")),
		})

		for i, item := range dom.QueryAll(section, items) {
			entries = append(entries, itemEntry(item, i, secID, secTitle, layout))
		}
	}
	return entries
}

func itemEntry(item *html.Node, i int, secID, secTitle string, layout Layout) IndexEntry {
	heading := layout.ItemHeading(item)

	anchorEl := item
	if heading != nil {
		anchorEl = heading
	}

	anchorID := dom.ID(heading)
	if anchorID == "" {
		anchorID = dom.ID(item)
	}
	if anchorID == "" {
		if anchorID = dom.AttrOr(item, AnchorAttr, ""); anchorID != "" {
			dom.SetAttr(anchorEl, "id", anchorID)
		}
	}
	if anchorID == "" {
		anchorID = fmt.Sprintf("%s-proc-%d", secID, i+1)
		dom.SetAttr(anchorEl, "id", anchorID)
		dom.SetAttr(item, AnchorAttr, anchorID)
	}

	title := dom.CollapseSpace(dom.Text(heading))
	if title == "" {
		title = layout.StepTitle(i + 1)
	}

	return IndexEntry{
		ID:           fmt.Sprintf("%s__proc__%d", secID, i),
		Type:         layout.ItemType(item),
		SectionID:    secID,
		SectionTitle: secTitle,
		AnchorID:     anchorID,
		Title:        title,
		Text:         dom.CollapseSpace(dom.Text(item)),
	}
}
