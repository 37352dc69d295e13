// Package corpus loads the documents a query is ranked against. Every
// source returns a fully materialized, ordered slice; the ranking core
// never reads documents itself.
package corpus

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

// Document is one rankable text. ID must be unique within a corpus; Label
// is what gets printed next to a score.
type Document struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Content string `json:"-"`
}

// Source supplies a corpus in a deterministic order.
type Source interface {
	Load(ctx context.Context) ([]Document, error)
}

// StaticSource serves an in-memory corpus in slice order.
type StaticSource struct {
	Documents []Document
}

func (s *StaticSource) Load(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs := make([]Document, len(s.Documents))
	copy(docs, s.Documents)
	if err := Validate(docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Validate rejects corpora that reuse a document id.
func Validate(docs []Document) error {
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if _, dup := seen[doc.ID]; dup {
			return fmt.Errorf("%w: %q", apperrors.ErrDuplicateDocument, doc.ID)
		}
		seen[doc.ID] = struct{}{}
	}
	return nil
}

// Labels maps document ids to labels.
func Labels(docs []Document) map[string]string {
	labels := make(map[string]string, len(docs))
	for _, doc := range docs {
		labels[doc.ID] = doc.Label
	}
	return labels
}
