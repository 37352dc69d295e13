package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
	"github.com/lib/pq"
)

// PostgresSource reads documents from a table with id, title and body
// columns. Rows are returned ordered by id; the title is used as the label.
//
//	CREATE TABLE documents (
//	    id    TEXT PRIMARY KEY,
//	    title TEXT NOT NULL,
//	    body  TEXT NOT NULL
//	);
type PostgresSource struct {
	db     *sql.DB
	table  string
	retry  resilience.Backoff
	logger *slog.Logger
}

// NewPostgresSource reads from table, retrying failed queries per retry.
func NewPostgresSource(db *sql.DB, table string, retry resilience.Backoff) (*PostgresSource, error) {
	if table == "" {
		return nil, fmt.Errorf("%w: corpus table name is empty", apperrors.ErrInvalidInput)
	}
	return &PostgresSource{
		db:     db,
		table:  table,
		retry:  retry,
		logger: slog.Default().With("component", "postgres-corpus", "table", table),
	}, nil
}

// Load reads every row. Failures wrap ErrCorpusUnavailable together with
// the cause, so a deadline that expired mid-load is still recognisable.
func (s *PostgresSource) Load(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := s.retry.Do(ctx, "load corpus", func(ctx context.Context) error {
		var err error
		docs, err = s.query(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorpusUnavailable, err)
	}
	if err := Validate(docs); err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "corpus loaded from postgres", "documents", len(docs))
	return docs, nil
}

func (s *PostgresSource) query(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, s.selectSQL())
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Label, &doc.Content); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

func (s *PostgresSource) selectSQL() string {
	return fmt.Sprintf(`SELECT id, title, body FROM %s ORDER BY id`, pq.QuoteIdentifier(s.table))
}

func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
