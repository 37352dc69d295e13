// Package postgrestest connects integration tests to a scratch PostgreSQL
// database described by TEST_POSTGRES_* variables.
package postgrestest

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

// Open returns a single-connection client, or skips t when no server
// answers. The client is closed when t finishes. One connection keeps
// TEMP tables visible to every statement of the test.
func Open(t testing.TB) *postgres.Client {
	t.Helper()
	port, err := strconv.Atoi(env("TEST_POSTGRES_PORT", "5432"))
	if err != nil {
		t.Fatalf("TEST_POSTGRES_PORT: %v", err)
	}
	cfg := config.PostgresConfig{
		Host:            env("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        env("TEST_POSTGRES_DB", "docrank_test"),
		User:            env("TEST_POSTGRES_USER", "docrank"),
		Password:        env("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	client, err := postgres.Open(context.Background(), cfg, resilience.Backoff{Attempts: 1})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
