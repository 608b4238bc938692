// Package analysis holds the deterministic, model-free text analysis used
// by the fallback provider tier. Every function here is a pure function of
// its input text so results are reproducible across calls.
package analysis

import (
	"strings"
	"unicode"
)

// Tokenize lowercases the text, strips punctuation and splits on
// whitespace. Shared by sentiment, topic, keyword and emotion scans so
// they all agree on what a token is.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, lower)
	return strings.Fields(cleaned)
}
