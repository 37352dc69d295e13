// Package executor runs a ranking query end to end: it tokenizes the query,
// loads and profiles the corpus, computes IDF and groups documents by score.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/ranker"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/tracing"
)

// RankedDoc is one document of the flattened ranking.
type RankedDoc struct {
	DocID string  `json:"doc_id"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type SearchResult struct {
	Query     string              `json:"query"`
	Terms     []string            `json:"terms"`
	TotalDocs int                 `json:"total_docs"`
	Groups    []ranker.ScoreGroup `json:"groups"`
	Results   []RankedDoc         `json:"results"`
	TermStats []index.TermStat    `json:"term_stats,omitempty"`
	Timings   map[string]float64  `json:"timings_ms,omitempty"`
}

// Labeler returns a lookup from document id to display label, built once
// from Results. Ids not among Results map to themselves.
func (r *SearchResult) Labeler() func(docID string) string {
	labels := make(map[string]string, len(r.Results))
	for _, d := range r.Results {
		labels[d.DocID] = d.Label
	}
	return func(docID string) string {
		if l, ok := labels[docID]; ok {
			return l
		}
		return docID
	}
}

type Executor struct {
	source     corpus.Source
	sourceKind string
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates an Executor over source. sourceKind labels the corpus load
// metric; m may be nil.
func New(source corpus.Source, sourceKind string, m *metrics.Metrics) *Executor {
	return &Executor{
		source:     source,
		sourceKind: sourceKind,
		metrics:    m,
		logger:     slog.Default().With("component", "query-executor"),
	}
}

// Execute ranks the corpus against query. limit caps the number of documents
// returned, cutting inside a tie group if needed; limit <= 0 returns every
// document.
func (e *Executor) Execute(ctx context.Context, query string, limit int) (*SearchResult, error) {
	terms := tokenizer.Tokenize(query)
	if len(terms) == 0 {
		e.countQuery("empty_query")
		return &SearchResult{
			Query:   query,
			Terms:   []string{},
			Groups:  []ranker.ScoreGroup{},
			Results: []RankedDoc{},
		}, nil
	}

	tr := tracing.Start(logger.RequestIDFromContext(ctx))
	tr.Annotate("terms", len(terms))
	result, err := e.execute(ctx, tr, query, terms, limit)
	e.observe("total", tr.End())
	if err != nil {
		e.countQuery("error")
		e.logger.WarnContext(ctx, "query failed", "query", query, "error", err, "trace", tr)
		return nil, err
	}
	result.Timings = tr.Timings()
	e.countQuery("ok")
	if e.metrics != nil {
		e.metrics.ResultsReturned.Observe(float64(len(result.Results)))
	}

	e.logger.InfoContext(ctx, "query executed",
		"query", query,
		"documents", result.TotalDocs,
		"groups", len(result.Groups),
		"results", len(result.Results),
		"trace", tr,
	)
	return result, nil
}

func (e *Executor) execute(ctx context.Context, tr *tracing.Trace, query string, terms []string, limit int) (*SearchResult, error) {
	stop := tr.Phase("load")
	docs, err := e.source.Load(ctx)
	took := stop()
	e.observe("load", took)
	if e.metrics != nil {
		e.metrics.CorpusLoadSeconds.WithLabelValues(e.sourceKind).Observe(took.Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	tr.Annotate("documents", len(docs))
	if e.metrics != nil {
		e.metrics.CorpusDocuments.Set(float64(len(docs)))
	}

	stop = tr.Phase("index")
	sources := make([]index.Source, len(docs))
	for i, doc := range docs {
		sources[i] = index.Source{
			ID:    doc.ID,
			Words: tokenizer.TokenizeLines(strings.Split(doc.Content, "\n")),
		}
	}
	idx, err := index.BuildContext(ctx, sources, terms)
	e.observe("index", stop())
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	stop = tr.Phase("rank")
	groups, err := ranker.Rank(terms, idx)
	if err != nil {
		stop()
		return nil, fmt.Errorf("ranking: %w", err)
	}
	stats, err := idx.Stats()
	e.observe("rank", stop())
	if err != nil {
		return nil, fmt.Errorf("collecting term stats: %w", err)
	}

	groups = ranker.Limit(groups, limit)
	labels := corpus.Labels(docs)
	flat := ranker.Flatten(groups)
	results := make([]RankedDoc, len(flat))
	for i, d := range flat {
		results[i] = RankedDoc{DocID: d.DocID, Label: labels[d.DocID], Score: d.Score}
	}

	return &SearchResult{
		Query:     query,
		Terms:     terms,
		TotalDocs: idx.Len(),
		Groups:    groups,
		Results:   results,
		TermStats: stats,
	}, nil
}

func (e *Executor) countQuery(outcome string) {
	if e.metrics != nil {
		e.metrics.Queries.WithLabelValues(outcome).Inc()
	}
}

func (e *Executor) observe(phase string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	}
}
