// Package tracing times the phases of a single ranking request. A Trace is
// keyed by the request id, collects one duration per phase in the order the
// phases ran and logs itself as a single structured record.
package tracing

import (
	"log/slog"
	"sync"
	"time"
)

// Phase is one timed step of a trace.
type Phase struct {
	Name string
	Took time.Duration
}

type Trace struct {
	ID    string
	start time.Time

	mu     sync.Mutex
	phases []Phase
	attrs  []slog.Attr
	total  time.Duration
	ended  bool
}

// Start begins a trace. id is usually the request id and may be empty.
func Start(id string) *Trace {
	return &Trace{ID: id, start: time.Now()}
}

// Phase starts timing name. The returned stop func records the phase and
// returns its duration; calling it more than once records nothing new.
func (t *Trace) Phase(name string) (stop func() time.Duration) {
	begin := time.Now()
	var once sync.Once
	var took time.Duration
	return func() time.Duration {
		once.Do(func() {
			took = time.Since(begin)
			t.mu.Lock()
			t.phases = append(t.phases, Phase{Name: name, Took: took})
			t.mu.Unlock()
		})
		return took
	}
}

// Annotate attaches a key/value pair that is logged with the trace.
func (t *Trace) Annotate(key string, value any) {
	t.mu.Lock()
	t.attrs = append(t.attrs, slog.Any(key, value))
	t.mu.Unlock()
}

// End stops the trace clock and returns the total duration. Later calls
// return the first total.
func (t *Trace) End() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ended {
		t.total = time.Since(t.start)
		t.ended = true
	}
	return t.total
}

// Timings returns every phase plus "total" in milliseconds.
func (t *Trace) Timings() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.phases)+1)
	for _, p := range t.phases {
		out[p.Name] = millis(p.Took)
	}
	out["total"] = millis(t.total)
	return out
}

// Phases returns the recorded phases in the order they finished.
func (t *Trace) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Phase(nil), t.phases...)
}

// LogValue renders the trace as a slog group, so a trace can be passed
// directly as a log attribute.
func (t *Trace) LogValue() slog.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	attrs := make([]slog.Attr, 0, len(t.phases)+len(t.attrs)+2)
	attrs = append(attrs, slog.String("id", t.ID), slog.Float64("total_ms", millis(t.total)))
	for _, p := range t.phases {
		attrs = append(attrs, slog.Float64(p.Name+"_ms", millis(p.Took)))
	}
	attrs = append(attrs, t.attrs...)
	return slog.GroupValue(attrs...)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
