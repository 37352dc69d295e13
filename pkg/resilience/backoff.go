package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff retries an operation with exponentially growing pauses. Zero
// fields take defaults: 3 attempts, 100ms initial pause, 5s cap, factor 2.
// Retryable decides which errors earn another attempt; by default every
// error except context cancellation and deadline expiry does.
type Backoff struct {
	Attempts  int
	Initial   time.Duration
	Max       time.Duration
	Factor    float64
	Retryable func(error) bool
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The returned error wraps fn's last error, and also
// ctx.Err() when the context ended during a pause.
func (b Backoff) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b = b.withDefaults()
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("operation recovered", "op", op, "attempt", attempt)
			}
			return nil
		}
		if !b.Retryable(err) {
			return err
		}
		if attempt >= b.Attempts {
			return fmt.Errorf("%s failed after %d attempts: %w", op, attempt, err)
		}

		pause := b.pause(attempt)
		slog.Warn("operation failed, backing off",
			"op", op,
			"attempt", attempt,
			"pause", pause,
			"error", err,
		)
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s interrupted after %d attempts: %w (last error: %w)", op, attempt, ctx.Err(), err)
		case <-timer.C:
		}
	}
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 5 * time.Second
	}
	if b.Factor < 1 {
		b.Factor = 2
	}
	if b.Retryable == nil {
		b.Retryable = notCancelled
	}
	return b
}

// pause returns the wait after the given failed attempt: half of the
// exponential step is fixed and half is random, capped at Max.
func (b Backoff) pause(attempt int) time.Duration {
	step := math.Min(float64(b.Initial)*math.Pow(b.Factor, float64(attempt-1)), float64(b.Max))
	return time.Duration(step/2 + rand.Float64()*step/2)
}

func notCancelled(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
