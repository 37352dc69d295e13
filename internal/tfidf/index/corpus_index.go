// Package index builds the per-query corpus index: one term-frequency
// profile per document and the inverse document frequencies derived from
// them. An index is built for one query and discarded afterwards.
package index

import (
	"context"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/profile"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

// CorpusIndex holds a profile per document in insertion order.
type CorpusIndex struct {
	ids        []string
	profiles   map[string]*profile.Profile
	queryTerms []string
}

// Build profiles every document against queryTerms.
func Build(docs []Source, queryTerms []string) (*CorpusIndex, error) {
	return BuildContext(context.Background(), docs, queryTerms)
}

// BuildContext is Build with cancellation checked between documents. A
// cancelled build returns the context error and no index.
func BuildContext(ctx context.Context, docs []Source, queryTerms []string) (*CorpusIndex, error) {
	if len(docs) == 0 {
		return nil, apperrors.ErrEmptyCorpus
	}
	idx := &CorpusIndex{
		ids:        make([]string, 0, len(docs)),
		profiles:   make(map[string]*profile.Profile, len(docs)),
		queryTerms: append([]string(nil), queryTerms...),
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, exists := idx.profiles[doc.ID]; exists {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrDuplicateDocument, doc.ID)
		}
		p, err := profile.Build(doc.Words, queryTerms)
		if err != nil {
			return nil, fmt.Errorf("profiling document %q: %w", doc.ID, err)
		}
		idx.ids = append(idx.ids, doc.ID)
		idx.profiles[doc.ID] = p
	}
	return idx, nil
}

// Len returns the number of documents in the index.
func (idx *CorpusIndex) Len() int {
	return len(idx.ids)
}

// DocIDs returns the document ids in insertion order.
func (idx *CorpusIndex) DocIDs() []string {
	out := make([]string, len(idx.ids))
	copy(out, idx.ids)
	return out
}

// Profile returns the profile for a document id.
func (idx *CorpusIndex) Profile(docID string) (*profile.Profile, bool) {
	p, ok := idx.profiles[docID]
	return p, ok
}

// QueryTerms returns the terms the index was built for.
func (idx *CorpusIndex) QueryTerms() []string {
	out := make([]string, len(idx.queryTerms))
	copy(out, idx.queryTerms)
	return out
}

// DocumentFrequency counts documents whose term frequency for term is
// greater than zero.
func (idx *CorpusIndex) DocumentFrequency(term string) (int, error) {
	df := 0
	for _, id := range idx.ids {
		tf, err := idx.profiles[id].Frequency(term)
		if err != nil {
			return 0, fmt.Errorf("document %q: %w", id, err)
		}
		if tf > 0 {
			df++
		}
	}
	return df, nil
}

// IDF returns log10(N/df) for term, or 0 when no document contains it. A
// term found in every document also scores 0.
func (idx *CorpusIndex) IDF(term string) (float64, error) {
	if len(idx.ids) == 0 {
		return 0, apperrors.ErrEmptyCorpus
	}
	df, err := idx.DocumentFrequency(term)
	if err != nil {
		return 0, err
	}
	return computeIDF(len(idx.ids), df), nil
}

// IDFTable computes the IDF of every term once so that scoring each
// document is a lookup. Keys are normalized terms.
func (idx *CorpusIndex) IDFTable(terms []string) (map[string]float64, error) {
	table := make(map[string]float64, len(terms))
	for _, term := range terms {
		key := tokenizer.Normalize(term)
		if _, done := table[key]; done {
			continue
		}
		idf, err := idx.IDF(term)
		if err != nil {
			return nil, fmt.Errorf("computing idf for %q: %w", term, err)
		}
		table[key] = idf
	}
	return table, nil
}

// Stats returns document frequency and IDF for each distinct query term.
func (idx *CorpusIndex) Stats() ([]TermStat, error) {
	seen := make(map[string]struct{}, len(idx.queryTerms))
	stats := make([]TermStat, 0, len(idx.queryTerms))
	for _, term := range idx.queryTerms {
		key := tokenizer.Normalize(term)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		df, err := idx.DocumentFrequency(term)
		if err != nil {
			return nil, err
		}
		stats = append(stats, TermStat{
			Term:    key,
			DocFreq: df,
			IDF:     computeIDF(len(idx.ids), df),
		})
	}
	return stats, nil
}

func computeIDF(totalDocs int, docFreq int) float64 {
	if docFreq == 0 {
		return 0
	}
	return math.Log10(float64(totalDocs) / float64(docFreq))
}
