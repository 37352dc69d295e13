package executor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func petCorpus() *corpus.StaticSource {
	return &corpus.StaticSource{Documents: []corpus.Document{
		{ID: "books/a.txt", Label: "a.txt", Content: "the cat sat"},
		{ID: "books/b.txt", Label: "b.txt", Content: "the dog\nran"},
		{ID: "books/c.txt", Label: "c.txt", Content: "the cat, the dog."},
	}}
}

type countingSource struct {
	corpus.Source
	loads int
}

func (s *countingSource) Load(ctx context.Context) ([]corpus.Document, error) {
	s.loads++
	return s.Source.Load(ctx)
}

func TestExecuteRanksCorpus(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := New(petCorpus(), "static", m)

	result, err := e.Execute(context.Background(), "Cat", 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.TotalDocs != 3 {
		t.Errorf("TotalDocs = %d, want 3", result.TotalDocs)
	}
	if len(result.Groups) != 2 {
		t.Fatalf("groups = %+v, want 2 groups", result.Groups)
	}

	idf := math.Log10(3.0 / 2.0)
	wantA := (1.0 / 3.0) * idf
	wantC := (1.0 / 4.0) * idf
	if got := result.Groups[0]; len(got.DocIDs) != 1 || got.DocIDs[0] != "books/a.txt" || got.Score != wantA {
		t.Errorf("top group = %+v, want a.txt at %v", got, wantA)
	}
	if len(result.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(result.Results))
	}
	if result.Results[1].DocID != "books/c.txt" || result.Results[1].Score != wantC {
		t.Errorf("second = %+v, want c.txt at %v", result.Results[1], wantC)
	}
	if result.Results[2].Score != 0 || result.Results[2].Label != "b.txt" {
		t.Errorf("last = %+v, want b.txt at 0", result.Results[2])
	}
	label := result.Labeler()
	if got := label("books/c.txt"); got != "c.txt" {
		t.Errorf("label(books/c.txt) = %q, want c.txt", got)
	}
	if got := label("books/missing.txt"); got != "books/missing.txt" {
		t.Errorf("label of unknown id = %q, want the id", got)
	}
	if len(result.TermStats) != 1 || result.TermStats[0].DocFreq != 2 {
		t.Errorf("TermStats = %+v", result.TermStats)
	}
	for _, phase := range []string{"total", "load", "index", "rank"} {
		if _, ok := result.Timings[phase]; !ok {
			t.Errorf("Timings missing %q", phase)
		}
	}

	if got := testutil.ToFloat64(m.Queries.WithLabelValues("ok")); got != 1 {
		t.Errorf("queries_total{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CorpusDocuments); got != 3 {
		t.Errorf("corpus_documents = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(m.PhaseDuration); got != 4 {
		t.Errorf("phase_duration series = %d, want 4", got)
	}
}

func TestExecuteLimitCutsInsideGroup(t *testing.T) {
	e := New(petCorpus(), "static", nil)
	result, err := e.Execute(context.Background(), "cat", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(result.Results))
	}
	if result.Results[1].DocID != "books/c.txt" {
		t.Errorf("second = %q", result.Results[1].DocID)
	}
}

func TestExecuteTieKeepsCorpusOrder(t *testing.T) {
	e := New(petCorpus(), "static", nil)
	result, err := e.Execute(context.Background(), "zebra", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Groups) != 1 || result.Groups[0].Score != 0 {
		t.Fatalf("groups = %+v, want one zero group", result.Groups)
	}
	want := []string{"books/a.txt", "books/b.txt", "books/c.txt"}
	for i, id := range result.Groups[0].DocIDs {
		if id != want[i] {
			t.Errorf("DocIDs[%d] = %q, want %q", i, id, want[i])
		}
	}
}

func TestExecuteEmptyQuerySkipsCorpus(t *testing.T) {
	src := &countingSource{Source: petCorpus()}
	m := metrics.New(prometheus.NewRegistry())
	e := New(src, "static", m)

	result, err := e.Execute(context.Background(), " ,.!? ", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Groups) != 0 || len(result.Results) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
	if src.loads != 0 {
		t.Errorf("corpus loaded %d times, want 0", src.loads)
	}
	if got := testutil.ToFloat64(m.Queries.WithLabelValues("empty_query")); got != 1 {
		t.Errorf("empty_query count = %v, want 1", got)
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name string
		docs []corpus.Document
		want error
	}{
		{"empty corpus", nil, apperrors.ErrEmptyCorpus},
		{"empty document", []corpus.Document{{ID: "a", Content: "..."}}, apperrors.ErrEmptyDocument},
		{"duplicate id", []corpus.Document{{ID: "a", Content: "x"}, {ID: "a", Content: "y"}}, apperrors.ErrDuplicateDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())
			e := New(&corpus.StaticSource{Documents: tt.docs}, "static", m)
			_, err := e.Execute(context.Background(), "cat", 0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got := testutil.ToFloat64(m.Queries.WithLabelValues("error")); got != 1 {
				t.Errorf("error count = %v, want 1", got)
			}
		})
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(petCorpus(), "static", nil).Execute(ctx, "cat", 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
