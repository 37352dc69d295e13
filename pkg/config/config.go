// Package config holds the settings of the docrank binaries. Values come
// from built-in defaults, then an optional YAML file, then DOCRANK_*
// environment variables, and are validated once at startup.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Corpus source kinds.
const (
	SourceDir      = "dir"
	SourcePostgres = "postgres"
)

// Config is shared by every docrank binary; each one reads only the
// sections it needs.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Search    SearchConfig    `yaml:"search"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig applies to the searcher and analytics HTTP listeners.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// CorpusConfig selects where documents are read from.
type CorpusConfig struct {
	Source          string `yaml:"source"`
	Dir             string `yaml:"dir"`
	Pattern         string `yaml:"pattern"`
	ReadConcurrency int    `yaml:"readConcurrency"`
	Table           string `yaml:"table"`
}

// SearchConfig controls result limits, the per-query deadline and the
// queries the CLI runs when none are given.
type SearchConfig struct {
	DefaultLimit   int           `yaml:"defaultLimit"`
	MaxResults     int           `yaml:"maxResults"`
	Timeout        time.Duration `yaml:"timeout"`
	DefaultQueries []string      `yaml:"defaultQueries"`
}

// PostgresConfig is used by the postgres corpus source and the analytics
// snapshot store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a postgres:// URL accepted by lib/pq. Credentials are
// escaped, so passwords may contain any character.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig holds Redis connection and result-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for search analytics.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
}

// AnalyticsConfig tunes the search-event collector and the optional
// Postgres snapshots of aggregated stats. A zero SnapshotInterval disables
// snapshots.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig picks the slog level and the text or json handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the separate /metrics listener.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would otherwise only fail at the first
// query.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case SourceDir:
		if c.Corpus.Dir == "" {
			return apperrors.Invalidf("corpus.dir is required for source %q", SourceDir)
		}
	case SourcePostgres:
		if c.Corpus.Table == "" {
			return apperrors.Invalidf("corpus.table is required for source %q", SourcePostgres)
		}
	default:
		return apperrors.Invalidf("corpus.source %q is not %q or %q", c.Corpus.Source, SourceDir, SourcePostgres)
	}
	s := c.Search
	if s.DefaultLimit < 0 || s.MaxResults < 0 {
		return apperrors.Invalidf("search limits must not be negative")
	}
	if s.MaxResults > 0 && s.DefaultLimit > s.MaxResults {
		return apperrors.Invalidf("search.defaultLimit %d exceeds search.maxResults %d", s.DefaultLimit, s.MaxResults)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Corpus: CorpusConfig{
			Source:          SourceDir,
			Dir:             "./resources/books",
			Pattern:         "*",
			ReadConcurrency: 8,
			Table:           "documents",
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   100,
			Timeout:      10 * time.Second,
			DefaultQueries: []string{
				"The best detective that catches many criminals using his detective methods",
				"The girl that falls through a rabbit hole into a fantasy wonderland",
				"The story of a doctor imprisoned in paris",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docrank",
			User:            "docrank",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docrank-analytics",
			Topics:        KafkaTopics{SearchEvents: "search-events"},
		},
		Analytics: AnalyticsConfig{
			BufferSize:    10000,
			BatchSize:     100,
			FlushInterval: time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090},
	}
}
