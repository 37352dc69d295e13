// Command searcher serves TF-IDF ranking over HTTP.
//
// It loads the corpus from a directory or a Postgres table on every query,
// optionally caches results in Redis, and publishes search events to Kafka
// (or straight into the in-process aggregator when Kafka is disabled).
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docrank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	checkTimeout = 2 * time.Second
	redisTimeout = 3 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// run serves until ctx is done. Shutdown drains in order: the HTTP server
// first, so no handler is still tracking events, then the collector, then
// the background workers, so the final snapshot includes the last flush.
func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"corpus_source", cfg.Corpus.Source,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker(checkTimeout)

	// Workers run on their own context so they outlive the HTTP server.
	bgCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workers, bgCtx := errgroup.WithContext(bgCtx)
	if cfg.Metrics.Enabled {
		workers.Go(func() error {
			return metrics.Serve(bgCtx, cfg.Metrics.Port, prometheus.DefaultGatherer)
		})
	}

	var pg *postgres.Client
	if cfg.Corpus.Source == config.SourcePostgres || cfg.Analytics.SnapshotInterval > 0 {
		var err error
		pg, err = postgres.Open(ctx, cfg.Postgres, resilience.Backoff{Attempts: 5, Initial: 500 * time.Millisecond})
		if err != nil {
			return err
		}
		defer pg.Close()
		checker.Add(health.Dependency{Name: "postgres", Ping: pg.Ping})
		slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	source, err := corpus.NewFromConfig(cfg.Corpus, dbOf(pg))
	if err != nil {
		return fmt.Errorf("creating corpus source: %w", err)
	}
	if p, ok := source.(corpus.Pinger); ok {
		checker.Add(health.Dependency{Name: "corpus", Ping: p.Ping})
	}
	exec := executor.New(source, cfg.Corpus.Source, m)

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		rc, err := pkgredis.NewClient(ctx, cfg.Redis, redisTimeout)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer rc.Close()
			breaker := resilience.NewBreaker("redis-cache", resilience.OnStateChange(func(name string, s resilience.State) {
				m.BreakerState.WithLabelValues(name).Set(float64(s))
			}))
			queryCache = cache.New(rc, cfg.Redis.CacheTTL, breaker, m)
			checker.Add(health.Dependency{Name: "redis", Ping: rc.Ping, Optional: true})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var publisher analytics.Publisher = analytics.LocalPublisher{Aggregator: aggregator}
	if cfg.Kafka.Enabled {
		writer := kafka.NewWriter(cfg.Kafka)
		defer writer.Close()
		publisher = analytics.KafkaPublisher{Writer: writer}

		reader := kafka.NewReader(cfg.Kafka)
		defer reader.Close()
		workers.Go(func() error {
			return reader.Run(bgCtx, kafka.JSON(aggregator.Consume))
		})
		slog.Info("analytics streaming via kafka", "topic", cfg.Kafka.Topics.SearchEvents)
	}
	collector := analytics.NewCollector(publisher, cfg.Analytics, m)
	collector.Start(ctx)
	defer collector.Close()

	if pg != nil && cfg.Analytics.SnapshotInterval > 0 {
		store := snapshot.NewStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing analytics snapshots: %w", err)
		}
		if last, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("could not restore analytics snapshot", "error", err)
		} else if last != nil {
			aggregator.Restore(*last)
			slog.Info("analytics restored from snapshot", "total_searches", last.TotalSearches)
		}
		workers.Go(func() error {
			return store.Run(bgCtx, aggregator, cfg.Analytics.SnapshotInterval)
		})
	}

	h := handler.New(exec, queryCache, collector, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	router := middleware.NewRouter(m)
	router.Handle("GET /api/v1/search", h.Search)
	router.Handle("GET /api/v1/cache/stats", h.CacheStats)
	router.Handle("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	router.Handle("GET /api/v1/analytics", aggregator.ServeHTTP)
	router.Handle("GET /health/live", checker.Live)
	router.Handle("GET /health/ready", checker.Ready)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(middleware.Timeout(cfg.Search.Timeout)(router)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := serve(ctx, server, cfg.Server.ShutdownTimeout)

	collector.Close()
	stopWorkers()
	if err := workers.Wait(); err != nil {
		slog.Error("background worker failed", "error", err)
	}
	return serveErr
}

// serve runs server until ctx is done or it fails to listen, and returns
// only after Shutdown has finished or timed out.
func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration) error {
	listenErr := make(chan error, 1)
	go func() {
		slog.Info("search service listening", "addr", server.Addr)
		listenErr <- server.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("listening on %s: %w", server.Addr, err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown incomplete", "error", err)
	}
	if err := <-listenErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func dbOf(c *postgres.Client) *sql.DB {
	if c == nil {
		return nil
	}
	return c.DB
}
