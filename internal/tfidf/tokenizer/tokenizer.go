// Package tokenizer splits raw document and query text into case-folded
// terms. It splits on punctuation and whitespace runs only; there is no
// stemming and no stop-word removal.
package tokenizer

import (
	"regexp"
	"strings"
)

// delimiters matches a run of separator characters. The literal "/d" and
// "/n" sequences are separators too, so text containing escaped digit or
// newline artifacts splits the same way on every run.
var delimiters = regexp.MustCompile(`(?:[.,?!;: \r\n-]|/d|/n)+`)

// Tokenize breaks text into a slice of lowercased terms. Empty fragments
// produced by leading or trailing separators are dropped.
func Tokenize(text string) []string {
	parts := delimiters.Split(text, -1)
	terms := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		terms = append(terms, Normalize(part))
	}
	return terms
}

// TokenizeLines tokenizes each line and concatenates the results in line
// order.
func TokenizeLines(lines []string) []string {
	words := make([]string, 0, len(lines)*8)
	for _, line := range lines {
		words = append(words, Tokenize(line)...)
	}
	return words
}

// Normalize case-folds a single term.
func Normalize(term string) string {
	return strings.ToLower(term)
}
