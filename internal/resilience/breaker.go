// Package resilience guards the store: a circuit breaker per pre-aggregated
// procedure and a bounded retry on raw-row reads.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ZanzyTHEbar/workpulse/internal/datastore"
	"github.com/ZanzyTHEbar/workpulse/internal/monitoring"
)

// BreakerConfig tunes the per-procedure breakers.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold uint32
	// OpenTimeout is how long a breaker stays open before probing again.
	OpenTimeout time.Duration
	// Interval resets closed-state counts; zero never resets.
	Interval time.Duration
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		Interval:         time.Minute,
		MaxRequests:      1,
	}
}

// Guard decorates a Gateway. While a procedure's breaker is open its calls
// report Unavailable without reaching the store, so the fallback path runs
// immediately.
type Guard struct {
	next   datastore.Gateway
	config BreakerConfig
	retry  RetryConfig
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[datastore.Procedure]*gobreaker.CircuitBreaker[[]datastore.Row]
}

// NewGuard wraps next.
func NewGuard(next datastore.Gateway, config BreakerConfig, retry RetryConfig, logger *slog.Logger) *Guard {
	defaults := DefaultBreakerConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.OpenTimeout == 0 {
		config.OpenTimeout = defaults.OpenTimeout
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		next:     next,
		config:   config,
		retry:    retry,
		logger:   logger,
		breakers: make(map[datastore.Procedure]*gobreaker.CircuitBreaker[[]datastore.Row]),
	}
}

func (g *Guard) breaker(proc datastore.Procedure) *gobreaker.CircuitBreaker[[]datastore.Row] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[proc]; ok {
		return cb
	}

	threshold := g.config.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[[]datastore.Row](gobreaker.Settings{
		Name:        string(proc),
		MaxRequests: g.config.MaxRequests,
		Interval:    g.config.Interval,
		Timeout:     g.config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller abandoning its request says nothing about the store.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("Procedure breaker state changed",
				"procedure", name,
				"from", from.String(),
				"to", to.String())
			monitoring.SetBreakerState(name, int(to))
		},
	})
	g.breakers[proc] = cb
	monitoring.SetBreakerState(string(proc), int(gobreaker.StateClosed))
	return cb
}

// PreAggregated runs the procedure through its breaker.
func (g *Guard) PreAggregated(ctx context.Context, proc datastore.Procedure, args datastore.Args) datastore.Outcome {
	rows, err := g.breaker(proc).Execute(func() ([]datastore.Row, error) {
		out := g.next.PreAggregated(ctx, proc, args)
		if !out.OK() {
			return nil, out.Unavailable
		}
		return out.Rows, nil
	})
	if err == nil {
		return datastore.Available(rows)
	}
	if errors.Is(err, datastore.ErrUnavailable) {
		return datastore.Outcome{Unavailable: err}
	}
	// ErrOpenState and ErrTooManyRequests
	return datastore.Unavailable(proc, err)
}

// RawRows retries transient failures.
func (g *Guard) RawRows(ctx context.Context, f datastore.Filter) ([]datastore.Sample, error) {
	var samples []datastore.Sample
	err := RetryWithConfig(ctx, g.retry, func() error {
		var err error
		samples, err = g.next.RawRows(ctx, f)
		return err
	})
	if err != nil {
		var storeErr *datastore.StoreError
		if !errors.As(err, &storeErr) {
			err = &datastore.StoreError{Op: "raw rows", Err: err}
		}
		return nil, err
	}
	return samples, nil
}

// Profile retries transient lookup failures. ErrNotFound is returned as is.
func (g *Guard) Profile(ctx context.Context, userID string) (datastore.Profile, error) {
	var p datastore.Profile
	err := RetryWithConfig(ctx, g.retry, func() error {
		var err error
		p, err = g.next.Profile(ctx, userID)
		return err
	})
	return p, err
}

// States reports each known breaker's state, for health output.
func (g *Guard) States() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	states := make(map[string]string, len(g.breakers))
	for proc, cb := range g.breakers {
		states[string(proc)] = cb.State().String()
	}
	return states
}
