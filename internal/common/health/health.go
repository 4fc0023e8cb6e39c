// Package health serves liveness and readiness reports for the listener and
// the demo driver's dispatch pool and circuit breakers.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Status represents the health status of a component
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// Probe selects which group of checks a report runs
type Probe int

const (
	Liveness Probe = iota
	Readiness
)

// Check is the result of one health check
type Check struct {
	Name   string         `json:"name"`
	Status Status         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// Report aggregates checks. It is DOWN when any check is DOWN.
type Report struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks,omitempty"`
}

// CheckFunc is a function that performs a health check
type CheckFunc func() Check

// Checker holds checks per probe
type Checker struct {
	mu     sync.RWMutex
	checks map[Probe][]CheckFunc
}

// NewChecker creates a checker with no checks; every report starts UP
func NewChecker() *Checker {
	return &Checker{checks: make(map[Probe][]CheckFunc)}
}

// Add registers check under probe
func (c *Checker) Add(probe Probe, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[probe] = append(c.checks[probe], check)
}

// Report runs the checks of every given probe, in probe then registration order
func (c *Checker) Report(probes ...Probe) Report {
	c.mu.RLock()
	var checks []CheckFunc
	for _, p := range probes {
		checks = append(checks, c.checks[p]...)
	}
	c.mu.RUnlock()

	report := Report{Status: StatusUp, Checks: make([]Check, 0, len(checks))}
	for _, fn := range checks {
		check := fn()
		report.Checks = append(report.Checks, check)
		if check.Status == StatusDown {
			report.Status = StatusDown
		}
	}
	return report
}

// Handler answers with the report for probes; DOWN answers 503
func (c *Checker) Handler(probes ...Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Report(probes...)

		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			slog.Debug("Failed to write health report", "error", err)
		}
	}
}

// Routes serves the combined report at / and one probe each at /live and
// /ready. Mount it at /q/health.
func (c *Checker) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", c.Handler(Liveness, Readiness))
	r.Get("/live", c.Handler(Liveness))
	r.Get("/ready", c.Handler(Readiness))
	return r
}

// ServiceCheck turns a lifecycle service's Health into a check
func ServiceCheck(name string, healthFn func() error) CheckFunc {
	return func() Check {
		if err := healthFn(); err != nil {
			return Check{
				Name:   name,
				Status: StatusDown,
				Data:   map[string]any{"error": err.Error()},
			}
		}
		return Check{Name: name, Status: StatusUp}
	}
}

// PoolStats is the subset of a dispatch pool a health check reads
type PoolStats interface {
	Name() string
	Concurrency() int
	ActiveWorkers() int
	AvailablePermits() int
}

// PoolCheck reports dispatch pool saturation. A saturated pool is still UP:
// deliveries queue for a permit rather than fail.
func PoolCheck(pool PoolStats) CheckFunc {
	return func() Check {
		return Check{
			Name:   "dispatch-pool",
			Status: StatusUp,
			Data: map[string]any{
				"pool":             pool.Name(),
				"concurrency":      pool.Concurrency(),
				"activeWorkers":    pool.ActiveWorkers(),
				"availablePermits": pool.AvailablePermits(),
			},
		}
	}
}

// BreakerCheck lists subscriber hosts with an open circuit. Open circuits
// only affect their own subscribers, so the check stays UP.
func BreakerCheck(openHosts func() []string) CheckFunc {
	return func() Check {
		hosts := openHosts()
		if hosts == nil {
			hosts = []string{}
		}
		return Check{
			Name:   "circuit-breakers",
			Status: StatusUp,
			Data: map[string]any{
				"openCircuits": hosts,
			},
		}
	}
}
