package manual

import "strings"

const (
	// NgramSize is the width of the sliding window used for long words.
	NgramSize = 3

	// NgramMinWordLength is the shortest word that is also split into n-grams.
	NgramMinWordLength = 4
)

// Tokenize turns raw user input into search tokens: the whole normalized
// query, each whitespace separated word, and every overlapping 3-character
// substring of words of four or more characters. Tokens are folded (kana
// normalized, lowercased) and deduplicated, first occurrence wins.
func Tokenize(query string) []string {
	normalized := strings.TrimSpace(Fold(query))
	if normalized == "" {
		return nil
	}

	seen := map[string]bool{}
	var tokens []string
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		tokens = append(tokens, t)
	}

	add(normalized)

	words := strings.Fields(normalized)
	for _, w := range words {
		add(w)
	}

	for _, w := range words {
		runes := []rune(w)
		if len(runes) < NgramMinWordLength {
			continue
		}
		for i := 0; i+NgramSize <= len(runes); i++ {
			add(string(runes[i : i+NgramSize]))
		}
	}

	return tokens
}

// eligibleTerms folds tokens and keeps those of at least minLen runes.
func eligibleTerms(tokens []string, minLen int) [][]rune {
	var terms [][]rune
	for _, t := range tokens {
		f := []rune(Fold(t))
		if len(f) == 0 || len(f) < minLen {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
