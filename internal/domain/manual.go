package domain

// ManualDocument is one search entry of a manual page as stored in the
// cross-manual Bleve index.
type ManualDocument struct {
	// ID combines page ID and entry ID. Format: "getting-started__section1__proc__0"
	ID string `json:"id"`

	// Page is the page ID the entry was indexed from.
	Page string `json:"page"`

	// Section is the owning section's element ID; SectionTitle its heading.
	Section      string `json:"section"`
	SectionTitle string `json:"section_title"`

	// Anchor is the element ID to jump to.
	Anchor string `json:"anchor"`

	// Type is "section", "procedure" or "news".
	Type string `json:"type"`

	Title string `json:"title"`

	// Content is the flattened, whitespace-collapsed text of the entry.
	Content string `json:"content"`
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	ManualFieldID           = "id"
	ManualFieldPage         = "page"
	ManualFieldSection      = "section"
	ManualFieldSectionTitle = "section_title"
	ManualFieldAnchor       = "anchor"
	ManualFieldType         = "type"
	ManualFieldTitle        = "title"
	ManualFieldContent      = "content"
)

// DocumentID returns the index document ID for an entry of a page.
func DocumentID(page, entryID string) string {
	return page + "__" + entryID
}
