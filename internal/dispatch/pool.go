// Package dispatch bounds the number of webhook deliveries in flight
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"go.entityhooks.tech/internal/common/metrics"
)

// ErrPoolClosed is passed to jobs submitted after Close
var ErrPoolClosed = errors.New("dispatch pool closed")

// Job is one unit of work. err is non-nil when the job could not be given a
// permit; the job must then report its failure without doing any I/O.
type Job func(ctx context.Context, err error)

// Config configures a dispatch pool
type Config struct {
	// Name labels the pool's metrics
	Name string

	// MaxInFlight bounds simultaneously running jobs
	MaxInFlight int

	// RateLimitPerMinute optionally throttles job starts; nil or <= 0 disables
	RateLimitPerMinute *int
}

// DefaultConfig returns the default pool configuration
func DefaultConfig() *Config {
	return &Config{
		Name:        "default",
		MaxInFlight: 16,
	}
}

// Pool runs each submitted job on its own goroutine, but lets at most
// MaxInFlight of them run at once.
type Pool struct {
	name        string
	concurrency int
	semaphore   chan struct{} // Buffered channel as semaphore
	rateLimiter *rate.Limiter

	active atomic.Int32

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a new dispatch pool
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	concurrency := cfg.MaxInFlight
	if concurrency <= 0 {
		concurrency = DefaultConfig().MaxInFlight
	}

	p := &Pool{
		name:        name,
		concurrency: concurrency,
		semaphore:   make(chan struct{}, concurrency),
	}

	// Initialize semaphore with permits
	for i := 0; i < concurrency; i++ {
		p.semaphore <- struct{}{}
	}

	if cfg.RateLimitPerMinute != nil && *cfg.RateLimitPerMinute > 0 {
		// rate.Limiter uses per-second rate
		perSecond := float64(*cfg.RateLimitPerMinute) / 60.0
		p.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), *cfg.RateLimitPerMinute)
		slog.Info("Created dispatch rate limiter",
			"pool", name,
			"rateLimit", *cfg.RateLimitPerMinute)
	}

	metrics.PoolAvailablePermits.WithLabelValues(name).Set(float64(concurrency))
	metrics.PoolActiveWorkers.WithLabelValues(name).Set(0)

	return p
}

// Submit schedules job and returns immediately.
func (p *Pool) Submit(ctx context.Context, job Job) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		job(ctx, ErrPoolClosed)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.run(ctx, job)
	}()
}

func (p *Pool) run(ctx context.Context, job Job) {
	if err := p.waitForRate(ctx); err != nil {
		job(ctx, err)
		return
	}

	select {
	case <-p.semaphore:
	case <-ctx.Done():
		job(ctx, ctx.Err())
		return
	}
	p.active.Add(1)
	p.updateGauges()

	defer func() {
		p.active.Add(-1)
		p.semaphore <- struct{}{}
		p.updateGauges()
	}()

	job(ctx, nil)
}

func (p *Pool) waitForRate(ctx context.Context) error {
	if p.rateLimiter == nil || p.rateLimiter.Allow() {
		return nil
	}
	metrics.PoolRateLimitWaits.WithLabelValues(p.name).Inc()
	return p.rateLimiter.Wait(ctx)
}

func (p *Pool) updateGauges() {
	metrics.PoolActiveWorkers.WithLabelValues(p.name).Set(float64(p.active.Load()))
	metrics.PoolAvailablePermits.WithLabelValues(p.name).Set(float64(len(p.semaphore)))
}

// Close stops accepting jobs and waits for submitted jobs to finish or for
// ctx to end, whichever comes first.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Debug("Dispatch pool drained", "pool", p.name)
		return nil
	case <-ctx.Done():
		slog.Warn("Dispatch pool close timed out",
			"pool", p.name,
			"active", p.active.Load())
		return ctx.Err()
	}
}

// Name returns the pool name
func (p *Pool) Name() string {
	return p.name
}

// Concurrency returns the configured in-flight bound
func (p *Pool) Concurrency() int {
	return p.concurrency
}

// ActiveWorkers returns the number of jobs currently running
func (p *Pool) ActiveWorkers() int {
	return int(p.active.Load())
}

// AvailablePermits returns the number of free slots
func (p *Pool) AvailablePermits() int {
	return len(p.semaphore)
}

// IsRateLimited returns true if a rate limiter is configured
func (p *Pool) IsRateLimited() bool {
	return p.rateLimiter != nil
}
