package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
)

const publishTimeout = 5 * time.Second

// Publisher delivers a batch of events. The batch is only valid for the
// duration of the call.
type Publisher interface {
	Publish(ctx context.Context, events []SearchEvent) error
}

// Collector queues events from request handlers and publishes them in
// batches, when a batch fills up or the flush interval passes. Track never
// blocks: when the buffer is full, or after Close, events are dropped and
// counted.
type Collector struct {
	pub       Publisher
	batchSize int
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu      sync.RWMutex
	closed  bool
	events  chan SearchEvent
	started atomic.Bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewCollector sizes the collector from cfg; zero values get defaults. m
// may be nil.
func NewCollector(pub Publisher, cfg config.AnalyticsConfig, m *metrics.Metrics) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Collector{
		pub:       pub,
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		metrics:   m,
		logger:    slog.Default().With("component", "analytics-collector"),
		events:    make(chan SearchEvent, cfg.BufferSize),
		done:      make(chan struct{}),
	}
}

// Start runs the publish loop in the background until Close. ctx supplies
// values to each publish; cancelling it does not stop the loop, so events
// accepted before Close are always flushed.
func (c *Collector) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run(context.WithoutCancel(ctx))
	c.logger.Info("collector started",
		"buffer", cap(c.events),
		"batch", c.batchSize,
		"interval", c.interval,
	)
}

// Track queues event and reports whether it was accepted. It is safe to
// call at any time, including after Close.
func (c *Collector) Track(event SearchEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.closed {
		select {
		case c.events <- event:
			return true
		default:
		}
	}
	c.drop()
	return false
}

// Close stops accepting events and, if the loop was started, waits until
// everything already queued has been published. Later calls do nothing.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.events)
	c.mu.Unlock()

	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	batch := make([]SearchEvent, 0, c.batchSize)
	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				c.publish(ctx, batch)
				c.logger.Info("collector stopped", "dropped", c.dropped.Load())
				return
			}
			batch = append(batch, event)
			if len(batch) >= c.batchSize {
				batch = c.publish(ctx, batch)
			}
		case <-ticker.C:
			batch = c.publish(ctx, batch)
		}
	}
}

func (c *Collector) publish(ctx context.Context, batch []SearchEvent) []SearchEvent {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := c.pub.Publish(ctx, batch); err != nil {
		c.logger.Error("publish failed", "events", len(batch), "error", err)
	}
	return batch[:0]
}

func (c *Collector) drop() {
	n := c.dropped.Add(1)
	if c.metrics != nil {
		c.metrics.EventsDropped.Inc()
	}
	if n == 1 || n%1000 == 0 {
		c.logger.Warn("dropping search events", "dropped_total", n)
	}
}

// LocalPublisher feeds events straight into an Aggregator in the same
// process. It replaces Kafka when the broker is disabled.
type LocalPublisher struct {
	Aggregator *Aggregator
}

func (p LocalPublisher) Publish(_ context.Context, events []SearchEvent) error {
	for _, e := range events {
		p.Aggregator.Record(e)
	}
	return nil
}

// KafkaPublisher writes events to the search-events topic keyed by query,
// so all events for one query stay in order on one partition.
type KafkaPublisher struct {
	Writer *kafka.Writer
}

func (p KafkaPublisher) Publish(ctx context.Context, events []SearchEvent) error {
	return p.Writer.Write(ctx, Records(events)...)
}

// Records converts events to Kafka records keyed by query.
func Records(events []SearchEvent) []kafka.Record {
	records := make([]kafka.Record, len(events))
	for i, e := range events {
		records[i] = kafka.Record{Key: e.Query, Payload: e}
	}
	return records
}
