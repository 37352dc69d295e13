package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

// Pinger is implemented by sources whose backing store can be health
// checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewFromConfig builds the Source selected by cfg.Source. db is only used,
// and then required, for the postgres source.
func NewFromConfig(cfg config.CorpusConfig, db *sql.DB) (Source, error) {
	switch cfg.Source {
	case config.SourceDir, "":
		return NewDirSource(cfg.Dir, cfg.Pattern, cfg.ReadConcurrency), nil
	case config.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("%w: postgres corpus needs a database connection", apperrors.ErrInvalidInput)
		}
		return NewPostgresSource(db, cfg.Table, resilience.Backoff{
			Attempts: 3,
			Initial:  100 * time.Millisecond,
			Max:      2 * time.Second,
		})
	default:
		return nil, fmt.Errorf("%w: unknown corpus source %q", apperrors.ErrInvalidInput, cfg.Source)
	}
}
