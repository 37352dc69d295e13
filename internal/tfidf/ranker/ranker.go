// Package ranker turns per-document term frequencies and corpus IDF values
// into TF-IDF scores, and orders documents by descending score with equal
// scores grouped together.
package ranker

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/profile"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

// ScoreGroup is every document that received exactly Score, in corpus
// insertion order.
type ScoreGroup struct {
	Score  float64  `json:"score"`
	DocIDs []string `json:"doc_ids"`
}

// ScoredDoc is one document of a flattened ranking with the score of the
// group it came from.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Rank scores every document in idx against queryTerms and groups documents
// with identical scores. Groups are ordered by descending score. Scores are
// compared with exact float equality.
func Rank(queryTerms []string, idx *index.CorpusIndex) ([]ScoreGroup, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, apperrors.ErrEmptyCorpus
	}
	idfTable, err := idx.IDFTable(queryTerms)
	if err != nil {
		return nil, err
	}
	groups := make([]ScoreGroup, 0)
	groupIdx := make(map[float64]int)
	for _, docID := range idx.DocIDs() {
		p, _ := idx.Profile(docID)
		score, err := Score(queryTerms, p, idfTable)
		if err != nil {
			return nil, fmt.Errorf("scoring document %q: %w", docID, err)
		}
		if i, exists := groupIdx[score]; exists {
			groups[i].DocIDs = append(groups[i].DocIDs, docID)
			continue
		}
		groupIdx[score] = len(groups)
		groups = append(groups, ScoreGroup{Score: score, DocIDs: []string{docID}})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Score > groups[j].Score
	})
	return groups, nil
}

// Score sums tf*idf over queryTerms for a single profile. A query term
// missing from either the profile or the IDF table is an error.
func Score(queryTerms []string, p *profile.Profile, idfTable map[string]float64) (float64, error) {
	var score float64
	for _, term := range queryTerms {
		tf, err := p.Frequency(term)
		if err != nil {
			return 0, err
		}
		idf, ok := idfTable[tokenizer.Normalize(term)]
		if !ok {
			return 0, fmt.Errorf("%w: no idf for %q", apperrors.ErrMissingProfileEntry, term)
		}
		score += tf * idf
	}
	return score, nil
}

// Flatten expands groups into one row per document in presentation order.
func Flatten(groups []ScoreGroup) []ScoredDoc {
	result := make([]ScoredDoc, 0)
	for _, g := range groups {
		for _, docID := range g.DocIDs {
			result = append(result, ScoredDoc{DocID: docID, Score: g.Score})
		}
	}
	return result
}

// Limit keeps the first n documents of the ranking, cutting inside a group
// if needed. n <= 0 returns groups unchanged.
func Limit(groups []ScoreGroup, n int) []ScoreGroup {
	if n <= 0 {
		return groups
	}
	result := make([]ScoreGroup, 0, len(groups))
	remaining := n
	for _, g := range groups {
		if remaining == 0 {
			break
		}
		ids := g.DocIDs
		if len(ids) > remaining {
			ids = ids[:remaining]
		}
		result = append(result, ScoreGroup{Score: g.Score, DocIDs: append([]string(nil), ids...)})
		remaining -= len(ids)
	}
	return result
}

// DocCount returns the number of documents across all groups.
func DocCount(groups []ScoreGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.DocIDs)
	}
	return n
}
