// Package health reports whether the ranking service can answer queries.
// Every Dependency is pinged on each check. Required ones take the service
// down when they fail; optional ones only degrade it.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Dependency is one backend the service talks to.
type Dependency struct {
	Name     string
	Ping     func(ctx context.Context) error
	Optional bool
}

type Result struct {
	Status Status  `json:"status"`
	Error  string  `json:"error,omitempty"`
	TookMs float64 `json:"took_ms"`
}

type Report struct {
	Status    Status            `json:"status"`
	Checks    map[string]Result `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}

// Checker pings its dependencies concurrently, each bounded by timeout.
// Dependencies are added during startup, before the first request is served.
type Checker struct {
	deps    []Dependency
	timeout time.Duration
	logger  *slog.Logger
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		timeout: timeout,
		logger:  slog.Default().With("component", "health"),
	}
}

func (c *Checker) Add(d Dependency) {
	c.deps = append(c.deps, d)
}

// Check pings every dependency and folds the results: a failed required
// dependency makes the report down, a failed optional one makes it degraded.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make([]Result, len(c.deps))
	var g errgroup.Group
	for i, p := range c.deps {
		g.Go(func() error {
			start := time.Now()
			err := p.Ping(ctx)
			r := Result{Status: StatusUp, TookMs: float64(time.Since(start).Microseconds()) / 1000}
			if err != nil {
				r.Status, r.Error = StatusDown, err.Error()
				if p.Optional {
					r.Status = StatusDegraded
				}
				c.logger.Warn("dependency check failed", "dependency", p.Name, "optional", p.Optional, "error", err)
			}
			results[i] = r
			return nil
		})
	}
	g.Wait()

	report := Report{
		Status:    StatusUp,
		Checks:    make(map[string]Result, len(c.deps)),
		CheckedAt: time.Now().UTC(),
	}
	for i, p := range c.deps {
		report.Checks[p.Name] = results[i]
		switch {
		case results[i].Status == StatusDown:
			report.Status = StatusDown
		case results[i].Status == StatusDegraded && report.Status == StatusUp:
			report.Status = StatusDegraded
		}
	}
	return report
}

// Live reports that the process is running. It never touches dependencies.
func (c *Checker) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Ready writes the full report. Only a down report answers 503; a degraded
// service keeps serving without its cache.
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	report := c.Check(r.Context())
	status := http.StatusOK
	if report.Status == StatusDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
