// Package cache stores ranking results in Redis so repeated queries skip
// corpus loading and scoring. Concurrent identical misses are coalesced and
// a circuit breaker bypasses Redis while it is failing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/tfidf/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docrank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "docrank:search:"

// Store is the subset of the Redis client the cache uses. A missing key must
// be reported with an error for which pkgredis.IsNilError is true.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
	CountByPattern(ctx context.Context, pattern string) (int64, error)
}

type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Keys    int64  `json:"keys"`
	Breaker string `json:"breaker"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache whose Redis calls go through breaker. m may be
// nil.
func New(store Store, ttl time.Duration, breaker *resilience.Breaker, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: breaker,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get looks up a cached result. Redis errors, an open breaker and
// undecodable entries all count as a miss.
func (c *QueryCache) Get(ctx context.Context, query string, limit int) (*executor.SearchResult, bool) {
	key := buildKey(query, limit)
	result, err := c.fetch(ctx, key)
	switch {
	case err != nil && !errors.Is(err, resilience.ErrCircuitOpen):
		c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	case result != nil:
		c.count(&c.hits, "hit")
		return result, true
	}
	c.count(&c.misses, "miss")
	return nil, false
}

// fetch returns nil, nil for a missing key.
func (c *QueryCache) fetch(ctx context.Context, key string) (*executor.SearchResult, error) {
	var data []byte
	err := c.breaker.Do(func() error {
		v, err := c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		data = v
		return err
	})
	if err != nil || data == nil {
		return nil, err
	}
	result := new(executor.SearchResult)
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("decoding cached result: %w", err)
	}
	return result, nil
}

// Set stores result under the key for query and limit. Failures are logged
// and otherwise ignored; caching is best effort.
func (c *QueryCache) Set(ctx context.Context, query string, limit int, result *executor.SearchResult) {
	key := buildKey(query, limit)
	data, err := json.Marshal(result)
	if err == nil {
		err = c.breaker.Do(func() error { return c.store.Set(ctx, key, data, c.ttl) })
	}
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for query, or runs compute and
// caches what it returns. The bool reports a cache hit. Queries with the
// same multiset of terms share an entry, so the returned result always
// carries the caller's own query text.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, query, limit); ok {
		return withQuery(result, query), true, nil
	}
	key := buildKey(query, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return withQuery(val.(*executor.SearchResult), query), false, nil
}

// Invalidate drops every cached result, e.g. after the corpus changes.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats(ctx context.Context) Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Keys:    -1,
		Breaker: c.breaker.State().String(),
	}
	if n, err := c.store.CountByPattern(ctx, keyPrefix+"*"); err == nil {
		s.Keys = n
	} else {
		c.logger.Warn("counting cache keys failed", "error", err)
	}
	return s
}

func (c *QueryCache) count(n *atomic.Int64, result string) {
	n.Add(1)
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func withQuery(result *executor.SearchResult, query string) *executor.SearchResult {
	if result.Query == query {
		return result
	}
	cp := *result
	cp.Query = query
	cp.Terms = tokenizer.Tokenize(query)
	return &cp
}

// buildKey hashes the sorted query terms and limit. Term order never changes
// a score, but repeated terms do, so duplicates are kept.
func buildKey(query string, limit int) string {
	terms := tokenizer.Tokenize(query)
	sort.Strings(terms)
	raw := fmt.Sprintf("%s|limit=%d", strings.Join(terms, ","), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
