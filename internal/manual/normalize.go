package manual

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	hiraganaFirst = 'ぁ'
	hiraganaLast  = 'ゖ'

	// kanaOffset is the distance between a Hiragana code point and its
	// Katakana counterpart.
	kanaOffset = 0x60
)

// NormalizeKana maps Hiragana characters to their Katakana equivalents.
func NormalizeKana(s string) string {
	return strings.Map(toKatakana, s)
}

// Fold applies kana normalization and lowercasing. It maps rune for rune, so
// rune offsets in the folded string line up with the original.
func Fold(s string) string {
	return strings.Map(func(r rune) rune {
		return unicode.ToLower(toKatakana(r))
	}, s)
}

func toKatakana(r rune) rune {
	if r >= hiraganaFirst && r <= hiraganaLast {
		return r + kanaOffset
	}
	return r
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
