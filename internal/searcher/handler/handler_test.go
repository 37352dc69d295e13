package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/ranker"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

type stubExecutor struct {
	result    *executor.SearchResult
	err       error
	lastLimit int
}

func (s *stubExecutor) Execute(ctx context.Context, query string, limit int) (*executor.SearchResult, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	r.Query = query
	return &r, nil
}

func newStub() *stubExecutor {
	return &stubExecutor{result: &executor.SearchResult{
		Terms:     []string{"cat"},
		TotalDocs: 2,
		Groups:    []ranker.ScoreGroup{{Score: 0.2, DocIDs: []string{"a"}}, {Score: 0, DocIDs: []string{"b"}}},
		Results:   []executor.RankedDoc{{DocID: "a", Label: "a.txt", Score: 0.2}, {DocID: "b", Label: "b.txt"}},
	}}
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name string
		url  string
		code int
	}{
		{"missing q", "/api/v1/search", http.StatusBadRequest},
		{"blank q", "/api/v1/search?q=%20%20", http.StatusBadRequest},
		{"bad limit", "/api/v1/search?q=cat&limit=abc", http.StatusBadRequest},
		{"zero limit", "/api/v1/search?q=cat&limit=0", http.StatusBadRequest},
		{"ok", "/api/v1/search?q=cat", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(newStub(), nil, nil, 10, 100)
			rec := httptest.NewRecorder()
			h.Search(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d (body %s)", rec.Code, tt.code, rec.Body)
			}
		})
	}
}

func TestSearchLimitDefaultsAndClamps(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"/api/v1/search?q=cat", 10},
		{"/api/v1/search?q=cat&limit=3", 3},
		{"/api/v1/search?q=cat&limit=5000", 100},
	}
	for _, tt := range tests {
		stub := newStub()
		h := New(stub, nil, nil, 10, 100)
		h.Search(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.url, nil))
		if stub.lastLimit != tt.want {
			t.Errorf("%s: limit = %d, want %d", tt.url, stub.lastLimit, tt.want)
		}
	}
}

func TestSearchReturnsResult(t *testing.T) {
	h := New(newStub(), nil, nil, 10, 100)
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=cat", nil))

	var got executor.SearchResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Query != "cat" || len(got.Groups) != 2 || got.Results[0].Label != "a.txt" {
		t.Errorf("result = %+v", got)
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", rec.Header().Get("X-Cache"))
	}
}

func TestSearchErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"empty corpus", apperrors.ErrEmptyCorpus, http.StatusUnprocessableEntity},
		{"unavailable", apperrors.ErrCorpusUnavailable, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"missing entry", apperrors.ErrMissingProfileEntry, http.StatusInternalServerError},
		{"timed-out corpus load", fmt.Errorf("%w: %w", apperrors.ErrCorpusUnavailable, context.DeadlineExceeded), http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&stubExecutor{err: tt.err}, nil, nil, 10, 100)
			rec := httptest.NewRecorder()
			h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=cat", nil))
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
		})
	}
}

// TestSearchEndToEnd runs a real executor over an in-memory corpus.
func TestSearchEndToEnd(t *testing.T) {
	src := &corpus.StaticSource{Documents: []corpus.Document{
		{ID: "1", Label: "one", Content: "the cat sat"},
		{ID: "2", Label: "two", Content: "the dog ran"},
	}}
	h := New(executor.New(src, "static", nil), nil, nil, 10, 100)
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=cat", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body)
	}
	var got executor.SearchResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 2 || got.Results[0].Label != "one" || got.Results[0].Score <= 0 {
		t.Errorf("results = %+v", got.Results)
	}
}

type capturePublisher struct {
	events []analytics.SearchEvent
}

func (p *capturePublisher) Publish(_ context.Context, events []analytics.SearchEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func TestSearchTracksEvents(t *testing.T) {
	pub := &capturePublisher{}
	collector := analytics.NewCollector(pub, config.AnalyticsConfig{BufferSize: 10, BatchSize: 100, FlushInterval: time.Hour}, nil)
	collector.Start(context.Background())

	h := New(newStub(), nil, collector, 10, 100)
	h.Search(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/search?q=cat", nil))
	errH := New(&stubExecutor{err: apperrors.ErrEmptyCorpus}, nil, collector, 10, 100)
	errH.Search(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/search?q=dog", nil))
	collector.Close()

	if len(pub.events) != 2 {
		t.Fatalf("tracked %d events, want 2", len(pub.events))
	}
	if first := pub.events[0]; first.Type != analytics.EventSearch || first.TopDocID != "a" || first.Returned != 2 {
		t.Errorf("first event = %+v", first)
	}
	if second := pub.events[1]; second.Type != analytics.EventError || second.Query != "dog" {
		t.Errorf("second event = %+v", second)
	}
}

func TestSearchAfterCollectorClosed(t *testing.T) {
	collector := analytics.NewCollector(&capturePublisher{}, config.AnalyticsConfig{}, nil)
	collector.Start(context.Background())
	collector.Close()

	h := New(newStub(), nil, collector, 10, 100)
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=cat", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if collector.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", collector.Dropped())
	}
}

func TestErrorBodies(t *testing.T) {
	tests := []struct {
		name string
		exec *stubExecutor
		url  string
		want string
	}{
		{"bad limit", newStub(), "/api/v1/search?q=cat&limit=x", `limit must be a positive integer, got "x"`},
		{"missing q", newStub(), "/api/v1/search", "query parameter 'q' is required"},
		{"internal", &stubExecutor{err: apperrors.ErrMissingProfileEntry}, "/api/v1/search?q=cat", "search failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(tt.exec, nil, nil, 10, 100).Search(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["error"] != tt.want {
				t.Errorf("error = %q, want %q", body["error"], tt.want)
			}
		})
	}
}

func TestSearchEventZeroScore(t *testing.T) {
	e := searchEvent(&executor.SearchResult{
		Query:   "zebra",
		Results: []executor.RankedDoc{{DocID: "a", Score: 0}},
	}, true, 1)
	if e.Type != analytics.EventZeroScore {
		t.Errorf("Type = %q, want zero_score", e.Type)
	}
}

func TestCacheEndpointsDisabled(t *testing.T) {
	h := New(newStub(), nil, nil, 10, 100)

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("stats code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate code = %d, want 503", rec.Code)
	}
}
