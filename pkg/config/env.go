package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// envVar binds one DOCRANK_* variable to a config field. set parses the raw
// value and stores it.
type envVar struct {
	name string
	set  func(c *Config, raw string) error
}

var envVars = []envVar{
	{"DOCRANK_SERVER_PORT", intField(func(c *Config) *int { return &c.Server.Port })},
	{"DOCRANK_CORPUS_SOURCE", stringField(func(c *Config) *string { return &c.Corpus.Source })},
	{"DOCRANK_CORPUS_DIR", stringField(func(c *Config) *string { return &c.Corpus.Dir })},
	{"DOCRANK_CORPUS_PATTERN", stringField(func(c *Config) *string { return &c.Corpus.Pattern })},
	{"DOCRANK_CORPUS_TABLE", stringField(func(c *Config) *string { return &c.Corpus.Table })},
	{"DOCRANK_SEARCH_TIMEOUT", durationField(func(c *Config) *time.Duration { return &c.Search.Timeout })},
	{"DOCRANK_POSTGRES_HOST", stringField(func(c *Config) *string { return &c.Postgres.Host })},
	{"DOCRANK_POSTGRES_PORT", intField(func(c *Config) *int { return &c.Postgres.Port })},
	{"DOCRANK_POSTGRES_DATABASE", stringField(func(c *Config) *string { return &c.Postgres.Database })},
	{"DOCRANK_POSTGRES_USER", stringField(func(c *Config) *string { return &c.Postgres.User })},
	{"DOCRANK_POSTGRES_PASSWORD", stringField(func(c *Config) *string { return &c.Postgres.Password })},
	{"DOCRANK_POSTGRES_SSLMODE", stringField(func(c *Config) *string { return &c.Postgres.SSLMode })},
	{"DOCRANK_REDIS_ENABLED", boolField(func(c *Config) *bool { return &c.Redis.Enabled })},
	{"DOCRANK_REDIS_ADDR", stringField(func(c *Config) *string { return &c.Redis.Addr })},
	{"DOCRANK_REDIS_PASSWORD", stringField(func(c *Config) *string { return &c.Redis.Password })},
	{"DOCRANK_KAFKA_ENABLED", boolField(func(c *Config) *bool { return &c.Kafka.Enabled })},
	{"DOCRANK_KAFKA_BROKERS", func(c *Config, raw string) error {
		c.Kafka.Brokers = strings.Split(raw, ",")
		return nil
	}},
	{"DOCRANK_ANALYTICS_SNAPSHOT_INTERVAL", durationField(func(c *Config) *time.Duration { return &c.Analytics.SnapshotInterval })},
	{"DOCRANK_LOGGING_LEVEL", stringField(func(c *Config) *string { return &c.Logging.Level })},
	{"DOCRANK_LOGGING_FORMAT", stringField(func(c *Config) *string { return &c.Logging.Format })},
	{"DOCRANK_METRICS_PORT", intField(func(c *Config) *int { return &c.Metrics.Port })},
}

// applyEnv overrides cfg from every set variable in envVars. A value that
// does not parse is an error rather than being ignored.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, v := range envVars {
		raw, ok := lookup(v.name)
		if !ok || raw == "" {
			continue
		}
		if err := v.set(cfg, raw); err != nil {
			return fmt.Errorf("%s=%q: %w", v.name, raw, err)
		}
	}
	return nil
}

func stringField(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error {
		*field(c) = raw
		return nil
	}
}

func intField(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, raw string) error {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolField(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationField(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, raw string) error {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
