// Command docrank ranks a directory of text documents against one or more
// queries and prints every document with its TF-IDF score, most relevant
// first.
//
// Usage:
//
//	docrank [-config path] [-dir path] [-pattern glob] [-limit n] [-query text]...
//
// Without -query the configured default queries are run.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/presenter"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
	"github.com/joho/godotenv"
)

// queryList collects repeated -query flags.
type queryList []string

func (q *queryList) String() string { return strings.Join(*q, "; ") }

func (q *queryList) Set(v string) error {
	*q = append(*q, v)
	return nil
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("docrank", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	dir := fs.String("dir", "", "corpus directory (overrides config)")
	pattern := fs.String("pattern", "", "file name glob within the corpus directory")
	limit := fs.Int("limit", 0, "print at most n documents per query (0 prints all)")
	var queries queryList
	fs.Var(&queries, "query", "query text; repeat for several queries")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	if *dir != "" {
		cfg.Corpus.Source = config.SourceDir
		cfg.Corpus.Dir = *dir
	}
	if *pattern != "" {
		cfg.Corpus.Pattern = *pattern
	}
	if len(queries) == 0 {
		queries = cfg.Search.DefaultQueries
	}

	log := logger.Setup(stderr, cfg.Logging.Level, cfg.Logging.Format).With("component", "cli")

	var pg *postgres.Client
	if cfg.Corpus.Source == config.SourcePostgres {
		pg, err = postgres.Open(ctx, cfg.Postgres, resilience.Backoff{Attempts: 3})
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			return 1
		}
		defer pg.Close()
	}
	source, err := corpus.NewFromConfig(cfg.Corpus, dbOf(pg))
	if err != nil {
		log.Error("failed to create corpus source", "error", err)
		return 1
	}
	exec := executor.New(source, cfg.Corpus.Source, nil)

	for i, query := range queries {
		result, err := rank(ctx, exec, query, *limit, cfg.Search.Timeout)
		if err != nil {
			log.Error("query failed", "query", query, "error", err)
			return 1
		}
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintf(stdout, "Query: %s\n", query)
		if err := presenter.Write(stdout, result.Groups, result.Labeler()); err != nil {
			log.Error("writing results failed", "error", err)
			return 1
		}
	}
	return 0
}

// rank runs one query under its own deadline.
func rank(ctx context.Context, exec *executor.Executor, query string, limit int, timeout time.Duration) (*executor.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return exec.Execute(ctx, query, limit)
}

func dbOf(c *postgres.Client) *sql.DB {
	if c == nil {
		return nil
	}
	return c.DB
}
