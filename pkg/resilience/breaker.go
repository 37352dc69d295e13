// Package resilience guards calls to backends the ranking service can live
// without for a while: a circuit breaker in front of the result cache and
// jittered exponential backoff for database reads.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Breaker.Do while calls are being rejected.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Breaker opens after a run of consecutive failures and rejects calls until
// the cooldown has passed. The first call after the cooldown is a trial:
// success closes the breaker, failure opens it for another cooldown. Only
// one trial runs at a time.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	onChange  func(name string, s State)
	now       func() time.Time
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

type BreakerOption func(*Breaker)

// WithThreshold sets how many consecutive failures open the breaker.
func WithThreshold(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long an open breaker rejects calls.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// OnStateChange registers fn to run on every transition. It is called with
// the breaker's lock held and must not call back into the breaker.
func OnStateChange(fn func(name string, s State)) BreakerOption {
	return func(b *Breaker) { b.onChange = fn }
}

func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: 5,
		cooldown:  30 * time.Second,
		now:       time.Now,
		logger:    slog.Default().With("component", "breaker", "name", name),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Do runs fn unless the breaker is rejecting calls, in which case it
// returns an error wrapping ErrCircuitOpen without calling fn.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if wait := b.cooldown - b.now().Sub(b.openedAt); wait > 0 {
			return fmt.Errorf("%w: %s, retry in %v", ErrCircuitOpen, b.name, wait.Round(time.Millisecond))
		}
		b.transition(StateHalfOpen)
	case StateHalfOpen:
		return fmt.Errorf("%w: %s, trial call in flight", ErrCircuitOpen, b.name)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.transition(StateClosed)
		}
		return
	}
	b.failures++
	if b.state == StateHalfOpen || (b.state == StateClosed && b.failures >= b.threshold) {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(s State) {
	if b.state == s {
		return
	}
	from := b.state
	b.state = s
	if s == StateOpen {
		b.logger.Warn("breaker opened", "from", from, "failures", b.failures, "cooldown", b.cooldown)
	} else {
		b.logger.Info("breaker state changed", "from", from, "to", s)
	}
	if b.onChange != nil {
		b.onChange(b.name, s)
	}
}
