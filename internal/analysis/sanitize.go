// Package analysis turns a claim into a validated AnalysisResult
package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// allowedPunct is the punctuation that survives sanitizing
const allowedPunct = ".,!?:/-()[]"

// SanitizeInput strips emoji and other astral-plane characters, drops
// everything that is not a word character, whitespace or allowed punctuation,
// and collapses whitespace runs into single spaces
func SanitizeInput(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r > 0xFFFF, r == utf8.RuneError:
			return -1
		case r == '_', unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsSpace(r):
			return r
		case strings.ContainsRune(allowedPunct, r):
			return r
		}
		return -1
	}, text)
	return strings.Join(strings.Fields(cleaned), " ")
}

// WordCount counts whitespace-separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Preview truncates s to n runes, marking the cut with "..."
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
