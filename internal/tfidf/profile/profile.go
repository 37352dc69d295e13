// Package profile computes per-document term frequencies for the terms of a
// single query.
package profile

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

// Profile maps each query term to its term frequency in one document. It
// holds an entry for every query term it was built with, including terms
// that never occur in the document.
type Profile struct {
	terms []string
	freq  map[string]float64
}

// Build computes the term frequency of every query term over words.
// Duplicate query terms are stored once. A document with no words returns
// ErrEmptyDocument.
func Build(words []string, queryTerms []string) (*Profile, error) {
	if len(words) == 0 {
		return nil, apperrors.ErrEmptyDocument
	}
	p := &Profile{
		terms: make([]string, 0, len(queryTerms)),
		freq:  make(map[string]float64, len(queryTerms)),
	}
	for _, term := range queryTerms {
		key := tokenizer.Normalize(term)
		if _, seen := p.freq[key]; seen {
			continue
		}
		tf, err := TermFrequency(words, key)
		if err != nil {
			return nil, err
		}
		p.terms = append(p.terms, key)
		p.freq[key] = tf
	}
	return p, nil
}

// TermFrequency returns occurrences of term in words divided by the number
// of words. Matching is case-insensitive.
func TermFrequency(words []string, term string) (float64, error) {
	if len(words) == 0 {
		return 0, apperrors.ErrEmptyDocument
	}
	key := tokenizer.Normalize(term)
	count := 0
	for _, word := range words {
		if tokenizer.Normalize(word) == key {
			count++
		}
	}
	return float64(count) / float64(len(words)), nil
}

// Frequency returns the stored term frequency. Terms outside the query set
// the profile was built with return ErrMissingProfileEntry.
func (p *Profile) Frequency(term string) (float64, error) {
	tf, ok := p.freq[tokenizer.Normalize(term)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", apperrors.ErrMissingProfileEntry, term)
	}
	return tf, nil
}

// Terms returns the distinct profiled terms in query order.
func (p *Profile) Terms() []string {
	out := make([]string, len(p.terms))
	copy(out, p.terms)
	return out
}
