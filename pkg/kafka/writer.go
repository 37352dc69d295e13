// Package kafka moves search events between docrank processes over a
// single topic. Writer publishes JSON payloads keyed for partitioning and
// Reader feeds them, one value at a time, to a handler inside a consumer
// group.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Record is one payload to publish. Records with the same Key land on the
// same partition.
type Record struct {
	Key     string
	Payload any
}

type Writer struct {
	w      *kafka.Writer
	logger *slog.Logger
}

// NewWriter publishes to cfg.Topics.SearchEvents. Events are advisory, so a
// write is acknowledged by the partition leader alone.
func NewWriter(cfg config.KafkaConfig) *Writer {
	topic := cfg.Topics.SearchEvents
	return &Writer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		logger: slog.Default().With("component", "kafka-writer", "topic", topic),
	}
}

// Write encodes records and sends them in one call. Nothing is sent if any
// record fails to encode.
func (w *Writer) Write(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs, err := encode(records)
	if err != nil {
		return err
	}
	if err := w.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing %d records to %s: %w", len(msgs), w.w.Topic, err)
	}
	w.logger.Debug("records written", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.w.Close()
}

func encode(records []Record) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, len(records))
	for i, r := range records {
		value, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("encoding record %q: %w", r.Key, err)
		}
		msgs[i] = kafka.Message{Key: []byte(r.Key), Value: value}
	}
	return msgs, nil
}
