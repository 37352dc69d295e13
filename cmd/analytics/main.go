// Command analytics runs the search-analytics aggregator as its own service.
//
// It consumes search events from Kafka, folds them into totals, latency
// percentiles and top queries, and serves GET /api/v1/analytics. With
// analytics.snapshotInterval set, totals are snapshotted to Postgres and
// restored on start.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
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
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
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
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled=true")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

// run consumes and serves until ctx is done. The consumer and the snapshot
// loop stop only after the HTTP server has shut down, and the snapshot loop
// writes one last snapshot on the way out.
func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.Topics.SearchEvents)

	m := metrics.New(prometheus.DefaultRegisterer)
	aggregator := analytics.NewAggregator()
	checker := health.NewChecker(2 * time.Second)

	bgCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workers, bgCtx := errgroup.WithContext(bgCtx)
	if cfg.Metrics.Enabled {
		workers.Go(func() error {
			return metrics.Serve(bgCtx, cfg.Metrics.Port, prometheus.DefaultGatherer)
		})
	}

	if cfg.Analytics.SnapshotInterval > 0 {
		pg, err := postgres.Open(ctx, cfg.Postgres, resilience.Backoff{Attempts: 5, Initial: 500 * time.Millisecond})
		if err != nil {
			return err
		}
		defer pg.Close()
		checker.Add(health.Dependency{Name: "postgres", Ping: pg.Ping, Optional: true})

		store := snapshot.NewStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing analytics snapshots: %w", err)
		}
		if last, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("could not restore analytics snapshot", "error", err)
		} else if last != nil {
			aggregator.Restore(*last)
		}
		workers.Go(func() error {
			return store.Run(bgCtx, aggregator, cfg.Analytics.SnapshotInterval)
		})
	}

	reader := kafka.NewReader(cfg.Kafka)
	defer reader.Close()
	workers.Go(func() error {
		return reader.Run(bgCtx, kafka.JSON(aggregator.Consume))
	})

	router := middleware.NewRouter(m)
	router.Handle("GET /api/v1/analytics", aggregator.ServeHTTP)
	router.Handle("GET /health/live", checker.Live)
	router.Handle("GET /health/ready", checker.Ready)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("analytics service listening", "addr", server.Addr)
		listenErr <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-listenErr:
		serveErr = fmt.Errorf("listening on %s: %w", server.Addr, err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown incomplete", "error", err)
		}
		if err := <-listenErr; !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	stopWorkers()
	if err := workers.Wait(); err != nil {
		slog.Error("background worker failed", "error", err)
	}
	return serveErr
}
