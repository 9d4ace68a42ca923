package library

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/mcp-manual-server/internal/domain"
)

// LibraryQuery is a cross-manual search. Page and Type are optional exact
// filters.
type LibraryQuery struct {
	Query string
	Page  string
	Type  string
}

// LibraryHit is one cross-manual search result.
type LibraryHit struct {
	Page         string   `json:"page"`
	Section      string   `json:"section"`
	SectionTitle string   `json:"section_title"`
	Anchor       string   `json:"anchor"`
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Score        float64  `json:"score"`
	Fragments    []string `json:"fragments,omitempty"`
}

// LibraryResult is a page of cross-manual hits and the total match count.
type LibraryResult struct {
	Total uint64       `json:"total"`
	Hits  []LibraryHit `json:"hits"`
}

var libraryFields = []string{
	domain.ManualFieldPage,
	domain.ManualFieldSection,
	domain.ManualFieldSectionTitle,
	domain.ManualFieldAnchor,
	domain.ManualFieldType,
	domain.ManualFieldTitle,
}

// SearchLibrary searches the indexes of all pages. It returns ErrNotReady
// until indexes are open. A sync waits for running searches before it
// closes the indexes.
func (s *Service) SearchLibrary(ctx context.Context, q LibraryQuery) (*LibraryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready || s.alias == nil {
		return nil, ErrNotReady
	}

	req := bleve.NewSearchRequest(buildLibraryQuery(q))
	req.Size = s.settings.LibraryMaxResults
	req.Fields = libraryFields
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(domain.ManualFieldContent)

	res, err := s.alias.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &LibraryResult{Total: res.Total, Hits: make([]LibraryHit, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		field := func(name string) string {
			v, _ := hit.Fields[name].(string)
			return v
		}
		out.Hits = append(out.Hits, LibraryHit{
			Page:         field(domain.ManualFieldPage),
			Section:      field(domain.ManualFieldSection),
			SectionTitle: field(domain.ManualFieldSectionTitle),
			Anchor:       field(domain.ManualFieldAnchor),
			Type:         field(domain.ManualFieldType),
			Title:        field(domain.ManualFieldTitle),
			Score:        hit.Score,
			Fragments:    hit.Fragments[domain.ManualFieldContent],
		})
	}
	return out, nil
}

// buildLibraryQuery matches content with titles boosted, and applies the
// page and type filters as exact terms.
func buildLibraryQuery(q LibraryQuery) query.Query {
	contentQuery := bleve.NewMatchQuery(q.Query)
	contentQuery.SetField(domain.ManualFieldContent)

	titleQuery := bleve.NewMatchQuery(q.Query)
	titleQuery.SetField(domain.ManualFieldTitle)
	titleQuery.SetBoost(3.0)

	sectionQuery := bleve.NewMatchQuery(q.Query)
	sectionQuery.SetField(domain.ManualFieldSectionTitle)
	sectionQuery.SetBoost(1.5)

	searchQuery := bleve.NewDisjunctionQuery(contentQuery, titleQuery, sectionQuery)

	if q.Page == "" && q.Type == "" {
		return searchQuery
	}

	must := []query.Query{searchQuery}
	if q.Page != "" {
		pageQuery := bleve.NewTermQuery(q.Page)
		pageQuery.SetField(domain.ManualFieldPage)
		must = append(must, pageQuery)
	}
	if q.Type != "" {
		typeQuery := bleve.NewTermQuery(strings.ToLower(q.Type))
		typeQuery.SetField(domain.ManualFieldType)
		must = append(must, typeQuery)
	}
	return bleve.NewConjunctionQuery(must...)
}
