package transport

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"go.entityhooks.tech/internal/common/metrics"
)

// BreakerConfig configures per-host circuit breaking
type BreakerConfig struct {
	Enabled      bool
	MaxRequests  uint32        // Requests allowed through while half-open
	Interval     time.Duration // Stats window while closed
	Timeout      time.Duration // Time in open state before half-open
	FailureRatio float64       // Failure ratio to trip
	MinRequests  uint32        // Min requests before evaluating ratio
}

// DefaultBreakerConfig returns breaker defaults; breaking is off by default
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Enabled:      false,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  10,
	}
}

// BreakerTransport short-circuits deliveries to hosts that keep failing at
// the connection level. It never retries.
type BreakerTransport struct {
	next Transport
	cfg  BreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerTransport wraps next with one circuit breaker per subscriber host
func NewBreakerTransport(next Transport, cfg *BreakerConfig) *BreakerTransport {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	return &BreakerTransport{
		next:     next,
		cfg:      *cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Deliver passes req through the breaker for its host
func (b *BreakerTransport) Deliver(ctx context.Context, req *Request) *Result {
	target, err := ParseTarget(req.URL)
	if err != nil {
		// Let the wrapped transport report the invalid URL.
		return b.next.Deliver(ctx, req)
	}

	started := time.Now()
	cb := b.breakerFor(target.Address())

	var result *Result
	_, err = cb.Execute(func() (interface{}, error) {
		result = b.next.Deliver(ctx, req)
		if tripsBreaker(result.Err) {
			return nil, result.Err
		}
		return nil, nil
	})

	if result == nil {
		slog.Warn("Circuit breaker open",
			"deliveryId", req.ID,
			"host", target.Address())
		return failure(newError(ErrorKindConnection, err, "circuit open for %s", target.Address()), started)
	}
	return result
}

// State returns the breaker state for a host:port, closed if never seen
func (b *BreakerTransport) State(address string) gobreaker.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[address]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

// OpenHosts returns the hosts whose breaker is currently open, sorted
func (b *BreakerTransport) OpenHosts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var hosts []string
	for address, cb := range b.breakers {
		if cb.State() == gobreaker.StateOpen {
			hosts = append(hosts, address)
		}
	}
	slices.Sort(hosts)
	return hosts
}

func (b *BreakerTransport) breakerFor(address string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[address]; ok {
		return cb
	}

	cfg := b.cfg
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        address,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Info("Circuit breaker state changed",
				"host", name,
				"from", from.String(),
				"to", to.String())

			var stateValue float64
			switch to {
			case gobreaker.StateClosed:
				stateValue = float64(metrics.CircuitBreakerClosed)
			case gobreaker.StateOpen:
				stateValue = float64(metrics.CircuitBreakerOpen)
				metrics.BreakerTrips.WithLabelValues(name).Inc()
			case gobreaker.StateHalfOpen:
				stateValue = float64(metrics.CircuitBreakerHalfOpen)
			}
			metrics.BreakerState.WithLabelValues(name).Set(stateValue)
		},
	})
	b.breakers[address] = cb
	return cb
}

// tripsBreaker reports whether err says something about the host's health.
func tripsBreaker(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrIO) || errors.Is(err, ErrTimedOut)
}
