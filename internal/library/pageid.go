package library

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// IsRemote reports whether source is an http(s) URL rather than a file glob.
func IsRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// PageID derives a stable, filesystem-safe page ID from a resolved source.
//
// Examples:
//   - docs/getting-started.html -> getting-started
//   - https://example.com/manuals/faq.html -> example.com_manuals_faq
//   - https://example.com/ -> example.com
func PageID(source string) string {
	if IsRemote(source) {
		u, _ := url.Parse(source)
		p := strings.Trim(u.Path, "/")
		p = strings.TrimSuffix(p, path.Ext(p))
		if p == "" {
			return sanitizeForFilesystem(u.Host)
		}
		return sanitizeForFilesystem(u.Host + "/" + p)
	}

	base := filepath.Base(source)
	return sanitizeForFilesystem(strings.TrimSuffix(base, filepath.Ext(base)))
}

// sanitizeForFilesystem lowercases s and replaces every character outside
// [a-z0-9._-] with an underscore.
func sanitizeForFilesystem(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
