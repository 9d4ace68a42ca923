package library

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludePatterns are never served, whatever the sources match.
var DefaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/*.min.html",
}

// htmlExtensions are the file extensions a glob match must carry.
var htmlExtensions = []string{".html", ".htm", ".xhtml"}

// ErrNoMatch indicates a file source that resolved to no page.
var ErrNoMatch = errors.New("source matched no manual pages")

// Page is a resolved manual source.
type Page struct {
	ID     string
	Source string
	Remote bool
}

// SourceFilter decides which resolved files are served.
type SourceFilter struct {
	patterns []string
}

// NewSourceFilter creates a filter from the default patterns plus extra.
func NewSourceFilter(extra []string) *SourceFilter {
	patterns := make([]string, 0, len(DefaultExcludePatterns)+len(extra))
	patterns = append(patterns, DefaultExcludePatterns...)
	for _, p := range extra {
		patterns = append(patterns, filepath.ToSlash(p))
	}
	return &SourceFilter{patterns: patterns}
}

// ShouldExclude returns true if path, or its base name, matches any
// exclusion pattern. Relative patterns match at any depth.
func (f *SourceFilter) ShouldExclude(path string) bool {
	normalized := filepath.ToSlash(path)
	rel := strings.TrimPrefix(normalized, "/")
	base := filepath.Base(normalized)
	for _, pattern := range f.patterns {
		candidates := []string{pattern}
		if !strings.HasPrefix(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
			candidates = append(candidates, "**/"+pattern)
		}
		for _, p := range candidates {
			name := rel
			if strings.HasPrefix(p, "/") {
				name = normalized
			}
			if matched, err := doublestar.Match(p, name); err == nil && matched {
				return true
			}
			if matched, err := doublestar.Match(p, base); err == nil && matched {
				return true
			}
		}
	}
	return false
}

// IsHTMLFile reports whether path has an HTML file extension.
func IsHTMLFile(path string) bool {
	return slices.Contains(htmlExtensions, strings.ToLower(filepath.Ext(path)))
}

// ResolveSources expands file globs and passes URLs through, in source
// order. Duplicate page IDs get a numeric suffix. Sources that fail to
// resolve are reported in the joined error; the pages that did resolve are
// still returned.
func ResolveSources(sources []string, filter *SourceFilter) ([]Page, error) {
	var (
		pages []Page
		errs  []error
		seen  = make(map[string]bool)
		ids   = make(map[string]int)
	)

	add := func(source string, remote bool) {
		if seen[source] {
			return
		}
		seen[source] = true

		id := PageID(source)
		ids[id]++
		if n := ids[id]; n > 1 {
			id += "-" + strconv.Itoa(n)
		}
		pages = append(pages, Page{ID: id, Source: source, Remote: remote})
	}

	for _, source := range sources {
		if IsRemote(source) {
			add(source, true)
			continue
		}

		matches, err := doublestar.FilepathGlob(source, doublestar.WithFilesOnly())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source, err))
			continue
		}

		slices.Sort(matches)
		found := 0
		for _, m := range matches {
			if !IsHTMLFile(m) || filter.ShouldExclude(m) {
				continue
			}
			add(m, false)
			found++
		}
		if found == 0 {
			errs = append(errs, fmt.Errorf("%s: %w", source, ErrNoMatch))
		}
	}

	return pages, errors.Join(errs...)
}
