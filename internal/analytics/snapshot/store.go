// Package snapshot persists aggregated search analytics to PostgreSQL so
// totals survive a restart of the search service.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
)

const finalSaveTimeout = 5 * time.Second

const schema = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const (
	insertSQL = `INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`
	latestSQL = `SELECT data FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT 1`
)

// Store writes AggregatedStats snapshots to the analytics_snapshots table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-snapshot"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot appends stats as a new row; older rows are kept as history.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if _, err := s.db.DB.ExecContext(ctx, insertSQL, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	s.logger.DebugContext(ctx, "analytics snapshot saved", "total_searches", stats.TotalSearches)
	return nil
}

// LatestSnapshot loads the most recent snapshot. It returns nil, nil when
// none has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var payload []byte
	switch err := s.db.DB.QueryRowContext(ctx, latestSQL).Scan(&payload); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("reading latest snapshot: %w", err)
	}
	stats := new(analytics.AggregatedStats)
	if err := json.Unmarshal(payload, stats); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return stats, nil
}

// Run saves a snapshot of agg every interval until ctx is done, then saves
// one final snapshot under its own deadline and returns that save's error.
// Failed periodic saves are logged and retried on the next tick.
func (s *Store) Run(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) error {
	s.logger.Info("saving analytics snapshots", "every", interval)
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
				s.logger.Warn("snapshot skipped", "error", err)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
			defer cancel()
			if err := s.SaveSnapshot(final, agg.Stats()); err != nil {
				return fmt.Errorf("final snapshot: %w", err)
			}
			return nil
		}
	}
}
