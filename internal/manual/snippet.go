package manual

import "html"

const (
	// DefaultSnippetRadius is the number of characters kept on each side of
	// the earliest match.
	DefaultSnippetRadius = 60

	// snippetFallbackLength is used when no eligible token occurs in the text.
	snippetFallbackLength = 120

	ellipsis = "…"
)

// Snippet returns an escaped excerpt of text around the earliest occurrence of
// any token of at least minLen runes, with occurrences wrapped in
// <mark class="search-hit">. Without a match it returns the first 120
// characters.
func Snippet(text string, tokens []string, radius, minLen int) string {
	terms := eligibleTerms(tokens, minLen)
	runes := []rune(text)
	folded := []rune(Fold(text))

	pos := -1
	for _, t := range terms {
		if p := indexRunes(folded, t); p != -1 && (pos == -1 || p < pos) {
			pos = p
		}
	}

	if pos == -1 {
		if len(runes) > snippetFallbackLength {
			return html.EscapeString(string(runes[:snippetFallbackLength])) + ellipsis
		}
		return html.EscapeString(text)
	}

	start := max(0, pos-radius)
	end := min(len(runes), pos+radius)

	out := ""
	if start > 0 {
		out = ellipsis
	}
	out += markText(string(runes[start:end]), terms, SnippetMarkClass)
	if end < len(runes) {
		out += ellipsis
	}
	return out
}
