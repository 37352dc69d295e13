// Package presenter renders ranked score groups as the plain-text lines the
// CLI prints, one document per line in ranking order.
package presenter

import (
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/ranker"
)

// Lines formats every document in groups as "<label> - score: <score>".
// labelOf maps a document id to its display label; nil prints the id.
func Lines(groups []ranker.ScoreGroup, labelOf func(docID string) string) []string {
	lines := make([]string, 0, ranker.DocCount(groups))
	for _, g := range groups {
		for _, id := range g.DocIDs {
			label := id
			if labelOf != nil {
				label = labelOf(id)
			}
			lines = append(lines, fmt.Sprintf("%s - score: %f", label, g.Score))
		}
	}
	return lines
}

// Write writes Lines to w, newline-terminated.
func Write(w io.Writer, groups []ranker.ScoreGroup, labelOf func(docID string) string) error {
	for _, line := range Lines(groups, labelOf) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("writing result line: %w", err)
		}
	}
	return nil
}
