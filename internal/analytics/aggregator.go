package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"
)

const (
	// latencyWindow bounds how many recent latencies feed the percentiles.
	latencyWindow = 10000
	topListSize   = 10
)

type AggregatedStats struct {
	TotalSearches    int64        `json:"total_searches"`
	CacheHits        int64        `json:"cache_hits"`
	CacheMisses      int64        `json:"cache_misses"`
	ZeroScoreCount   int64        `json:"zero_score_count"`
	ErrorCount       int64        `json:"error_count"`
	AvgLatencyMs     float64      `json:"avg_latency_ms"`
	P50LatencyMs     int64        `json:"p50_latency_ms"`
	P95LatencyMs     int64        `json:"p95_latency_ms"`
	P99LatencyMs     int64        `json:"p99_latency_ms"`
	TopQueries       []QueryCount `json:"top_queries"`
	ZeroScoreQueries []QueryCount `json:"zero_score_queries"`
	TopDocuments     []QueryCount `json:"top_documents"`
	QueriesPerMinute float64      `json:"queries_per_minute"`
}

// QueryCount pairs a query, or a document id in TopDocuments, with how
// often it was seen.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds SearchEvents into running totals and serves them as
// JSON. It is safe for concurrent use.
type Aggregator struct {
	mu        sync.RWMutex
	totals    AggregatedStats
	latencies ring
	queries   tally
	zeroHits  tally
	topDocs   tally
	since     time.Time
	logger    *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies: ring{max: latencyWindow},
		queries:   tally{},
		zeroHits:  tally{},
		topDocs:   tally{},
		since:     time.Now(),
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// Consume has the shape of a typed Kafka handler. It never fails, so a
// consumer always commits past the event.
func (a *Aggregator) Consume(_ context.Context, event SearchEvent) error {
	a.Record(event)
	return nil
}

// Record folds one event into the totals. Errors count toward the total
// and the error count only.
func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totals.TotalSearches++
	if event.Type == EventError {
		a.totals.ErrorCount++
		return
	}
	if event.CacheHit {
		a.totals.CacheHits++
	} else {
		a.totals.CacheMisses++
	}
	a.queries[event.Query]++
	switch {
	case event.Type == EventZeroScore:
		a.totals.ZeroScoreCount++
		a.zeroHits[event.Query]++
	case event.TopDocID != "":
		a.topDocs[event.TopDocID]++
	}
	a.latencies.add(event.LatencyMs)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.totals
	if sorted := a.latencies.sorted(); len(sorted) > 0 {
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		s.AvgLatencyMs = float64(sum) / float64(len(sorted))
		s.P50LatencyMs = percentile(sorted, 50)
		s.P95LatencyMs = percentile(sorted, 95)
		s.P99LatencyMs = percentile(sorted, 99)
	}
	s.TopQueries = a.queries.top(topListSize)
	s.ZeroScoreQueries = a.zeroHits.top(topListSize)
	s.TopDocuments = a.topDocs.top(topListSize)
	if minutes := time.Since(a.since).Minutes(); minutes > 0 {
		s.QueriesPerMinute = float64(s.TotalSearches) / minutes
	}
	return s
}

// Restore adds a saved snapshot's counters to the running totals, e.g.
// after a restart. Latency percentiles start empty, and only the top lists
// the snapshot kept can be restored.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totals.TotalSearches += s.TotalSearches
	a.totals.CacheHits += s.CacheHits
	a.totals.CacheMisses += s.CacheMisses
	a.totals.ZeroScoreCount += s.ZeroScoreCount
	a.totals.ErrorCount += s.ErrorCount
	a.queries.add(s.TopQueries)
	a.zeroHits.add(s.ZeroScoreQueries)
	a.topDocs.add(s.TopDocuments)
}

// ServeHTTP answers GET /api/v1/analytics with the current stats.
func (a *Aggregator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.Stats()); err != nil {
		a.logger.ErrorContext(r.Context(), "writing analytics response", "error", err)
	}
}

// ring keeps the most recent max samples.
type ring struct {
	max     int
	samples []int64
	next    int
}

func (r *ring) add(v int64) {
	if len(r.samples) < r.max {
		r.samples = append(r.samples, v)
		return
	}
	r.samples[r.next] = v
	r.next = (r.next + 1) % r.max
}

func (r *ring) sorted() []int64 {
	out := slices.Clone(r.samples)
	slices.Sort(out)
	return out
}

func percentile(sorted []int64, pct int) int64 {
	idx := pct * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type tally map[string]int64

func (t tally) add(counts []QueryCount) {
	for _, c := range counts {
		t[c.Query] += c.Count
	}
}

// top returns the n largest counts. Equal counts are ordered by key so the
// output is stable.
func (t tally) top(n int) []QueryCount {
	out := make([]QueryCount, 0, len(t))
	for k, v := range t {
		out = append(out, QueryCount{Query: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
