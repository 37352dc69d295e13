package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Handler processes one message value.
type Handler func(ctx context.Context, value []byte) error

// JSON adapts a typed handler into a Handler that decodes each value into T
// first.
func JSON[T any](fn func(ctx context.Context, v T) error) Handler {
	return func(ctx context.Context, value []byte) error {
		var v T
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("decoding %T: %w", v, err)
		}
		return fn(ctx, v)
	}
}

type Reader struct {
	r      *kafka.Reader
	logger *slog.Logger
}

// NewReader joins cfg.ConsumerGroup on cfg.Topics.SearchEvents. A group
// with no committed offset starts from the newest message.
func NewReader(cfg config.KafkaConfig) *Reader {
	topic := cfg.Topics.SearchEvents
	return &Reader{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		}),
		logger: slog.Default().With("component", "kafka-reader", "topic", topic),
	}
}

// Run hands every message to fn until ctx ends or the reader is closed,
// then returns nil. A message fn rejects is logged and committed anyway so
// one bad payload cannot stall the group.
func (r *Reader) Run(ctx context.Context, fn Handler) error {
	r.logger.Info("reader started")
	for {
		msg, err := r.r.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil, errors.Is(err, io.EOF):
			r.logger.Info("reader stopped")
			return nil
		case err != nil:
			r.logger.Error("fetch failed", "error", err)
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		if err := fn(ctx, msg.Value); err != nil {
			r.logger.Warn("skipping message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
		if err := r.r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			r.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (r *Reader) Close() error {
	return r.r.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
