package manual

import "strings"

// Score weights.
const (
	exactMatchScore  = 100
	prefixMatchScore = 70
	occurrenceScore  = 8
)

// Score rates how well text matches tokens. Each token adds 100 for an exact
// match of the whole text, 70 when the text starts with it and 8 per
// non-overlapping occurrence.
//
// When any token is at least strongLen runes long, the total is zero unless
// one of those strong tokens matched. This keeps 3-gram fallbacks of a long
// word from surfacing entries on accidental substring collisions.
func Score(text string, tokens []string, strongLen int) int {
	if len(tokens) == 0 {
		return 0
	}

	folded := Fold(text)
	requireStrong := false
	for _, t := range tokens {
		if strongLen > 0 && runeLen(Fold(t)) >= strongLen {
			requireStrong = true
			break
		}
	}

	score := 0
	strongHit := false
	for _, t := range tokens {
		term := Fold(t)
		if term == "" {
			continue
		}
		strong := strongLen > 0 && runeLen(term) >= strongLen

		if folded == term {
			score += exactMatchScore
			strongHit = strongHit || strong
		}
		if strings.HasPrefix(folded, term) {
			score += prefixMatchScore
			strongHit = strongHit || strong
		}
		if n := strings.Count(folded, term); n > 0 {
			score += n * occurrenceScore
			strongHit = strongHit || strong
		}
	}

	if requireStrong && !strongHit {
		return 0
	}
	return score
}
