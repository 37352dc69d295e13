// Package redis wraps go-redis for the docrank result cache: byte values
// with a TTL, plus key counting and deletion by glob pattern.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/redis/go-redis/v9"
)

// scanBatch is both the SCAN COUNT hint and the number of keys removed per
// UNLINK.
const scanBatch = 200

type Client struct {
	rdb *redis.Client
}

// NewClient connects and pings within timeout. The client is closed again
// if the ping fails.
func NewClient(ctx context.Context, cfg config.RedisConfig, timeout time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the value under key. A missing key yields an error for which
// IsNilError reports true.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// FlushByPattern unlinks every key matching pattern and returns how many
// were removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64
	err := c.scan(ctx, pattern, func(keys []string) error {
		n, err := c.rdb.Unlink(ctx, keys...).Result()
		removed += n
		return err
	})
	return removed, err
}

func (c *Client) CountByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := c.scan(ctx, pattern, func(keys []string) error {
		n += int64(len(keys))
		return nil
	})
	return n, err
}

// scan walks the keyspace and hands matching keys to fn in batches of up to
// scanBatch.
func (c *Client) scan(ctx context.Context, pattern string, fn func(keys []string) error) error {
	batch := make([]string, 0, scanBatch)
	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := fn(batch); err != nil {
				return fmt.Errorf("pattern %s: %w", pattern, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning %s: %w", pattern, err)
	}
	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return fmt.Errorf("pattern %s: %w", pattern, err)
		}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// IsNilError reports whether err means the key does not exist.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}
