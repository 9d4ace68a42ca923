package manual

import (
	"html"
	"sort"
	"strings"
)

// span is a half-open range of rune offsets.
type span struct {
	start, end int
}

// findAll returns the non-overlapping occurrences of needle in hay, scanning
// left to right.
func findAll(hay, needle []rune) []span {
	if len(needle) == 0 || len(needle) > len(hay) {
		return nil
	}
	var out []span
	for i := 0; i+len(needle) <= len(hay); {
		if runesEqual(hay[i:i+len(needle)], needle) {
			out = append(out, span{i, i + len(needle)})
			i += len(needle)
			continue
		}
		i++
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// indexRunes returns the rune offset of the first occurrence of needle.
func indexRunes(hay, needle []rune) int {
	for i := 0; i+len(needle) <= len(hay); i++ {
		if runesEqual(hay[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// matchSpans collects every occurrence of every term and merges overlapping
// or touching ranges, so a run of text is never wrapped twice.
func matchSpans(folded []rune, terms [][]rune) []span {
	var all []span
	for _, t := range terms {
		all = append(all, findAll(folded, t)...)
	}
	if len(all) == 0 {
		return nil
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		return all[i].end > all[j].end
	})

	merged := []span{all[0]}
	for _, s := range all[1:] {
		cur := &merged[len(merged)-1]
		if s.start <= cur.end {
			cur.end = max(cur.end, s.end)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// markText escapes text and wraps every term occurrence in a mark element
// carrying class.
func markText(text string, terms [][]rune, class string) string {
	runes := []rune(text)
	spans := matchSpans([]rune(Fold(text)), terms)

	var sb strings.Builder
	pos := 0
	for _, s := range spans {
		sb.WriteString(html.EscapeString(string(runes[pos:s.start])))
		sb.WriteString(`<mark class="`)
		sb.WriteString(class)
		sb.WriteString(`">`)
		sb.WriteString(html.EscapeString(string(runes[s.start:s.end])))
		sb.WriteString(`</mark>`)
		pos = s.end
	}
	sb.WriteString(html.EscapeString(string(runes[pos:])))
	return sb.String()
}
