package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestCheckFoldsStatus(t *testing.T) {
	tests := []struct {
		name string
		deps []Dependency
		want Status
	}{
		{"no deps", nil, StatusUp},
		{"all up", []Dependency{{Name: "corpus", Ping: up}}, StatusUp},
		{
			"optional cache down",
			[]Dependency{{Name: "corpus", Ping: up}, {Name: "redis", Ping: down, Optional: true}},
			StatusDegraded,
		},
		{
			"required corpus down",
			[]Dependency{{Name: "corpus", Ping: down}, {Name: "redis", Ping: down, Optional: true}},
			StatusDown,
		},
		{
			"down before degraded",
			[]Dependency{{Name: "redis", Ping: down, Optional: true}, {Name: "corpus", Ping: down}},
			StatusDown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			for _, p := range tt.deps {
				c.Add(p)
			}
			report := c.Check(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %q, want %q", report.Status, tt.want)
			}
			if len(report.Checks) != len(tt.deps) {
				t.Errorf("checks = %d, want %d", len(report.Checks), len(tt.deps))
			}
		})
	}
}

func TestCheckRecordsError(t *testing.T) {
	c := NewChecker(time.Second)
	c.Add(Dependency{Name: "postgres", Ping: down})
	got := c.Check(context.Background()).Checks["postgres"]
	if got.Status != StatusDown || got.Error != "connection refused" {
		t.Errorf("Checks[postgres] = %+v", got)
	}
}

func TestCheckBoundsSlowDependency(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Add(Dependency{Name: "slow", Ping: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	start := time.Now()
	report := c.Check(context.Background())
	if report.Status != StatusDown {
		t.Errorf("Status = %q, want down", report.Status)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Check() took %v, want about 20ms", elapsed)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name string
		dep  Dependency
		code int
	}{
		{"up", Dependency{Name: "dep", Ping: up}, http.StatusOK},
		{"degraded", Dependency{Name: "dep", Ping: down, Optional: true}, http.StatusOK},
		{"down", Dependency{Name: "dep", Ping: down}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			c.Add(tt.dep)
			rec := httptest.NewRecorder()
			c.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := report.Checks["dep"]; !ok {
				t.Error("report missing dep check")
			}
		})
	}
}

func TestLive(t *testing.T) {
	c := NewChecker(time.Second)
	c.Add(Dependency{Name: "dep", Ping: func(context.Context) error {
		t.Error("Live must not ping dependencies")
		return nil
	}})
	rec := httptest.NewRecorder()
	c.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}
