package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Delivery metrics

	// DeliveryTotal tracks terminal outcomes of delivery attempts
	DeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entityhooks",
			Subsystem: "delivery",
			Name:      "total",
			Help:      "Total webhook delivery attempts by terminal result",
		},
		[]string{"event", "result"}, // result: success, rejected, invalid_url, connection, io, timed_out, invalid_payload
	)

	// DeliveryDuration tracks the wall time of a delivery attempt
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "entityhooks",
			Subsystem: "delivery",
			Name:      "duration_seconds",
			Help:      "Webhook delivery duration from dial to connection teardown",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"event"},
	)

	// DeliveryResponseBytes tracks the size of raw subscriber responses
	DeliveryResponseBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "entityhooks",
			Subsystem: "delivery",
			Name:      "response_bytes",
			Help:      "Size of raw responses read from subscribers",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
	)

	// Filter metrics

	// FilterDecisions tracks admission decisions made by the event filter
	FilterDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entityhooks",
			Subsystem: "filter",
			Name:      "decisions_total",
			Help:      "Total event filter decisions",
		},
		[]string{"event", "decision"}, // decision: admitted, rejected
	)

	// Registry metrics

	// InitEntries tracks subscription declarations processed at initialization
	InitEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entityhooks",
			Subsystem: "registry",
			Name:      "init_entries_total",
			Help:      "Total subscription declarations processed during initialization",
		},
		[]string{"result"}, // result: subscribed, skipped
	)

	// Pool metrics

	// PoolActiveWorkers tracks deliveries currently holding a permit
	PoolActiveWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "entityhooks",
			Subsystem: "pool",
			Name:      "active_workers",
			Help:      "Number of deliveries currently in flight",
		},
		[]string{"pool"},
	)

	// PoolAvailablePermits tracks available concurrency permits
	PoolAvailablePermits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "entityhooks",
			Subsystem: "pool",
			Name:      "available_permits",
			Help:      "Available concurrency permits in the pool",
		},
		[]string{"pool"},
	)

	// PoolRateLimitWaits tracks jobs that had to wait on the rate limiter
	PoolRateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entityhooks",
			Subsystem: "pool",
			Name:      "rate_limit_waits_total",
			Help:      "Total jobs delayed by the pool rate limiter",
		},
		[]string{"pool"},
	)

	// Breaker metrics

	// BreakerState tracks circuit breaker state per subscriber host
	// 0 = closed (healthy), 1 = open (tripped), 2 = half-open (testing)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "entityhooks",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"host"},
	)

	// BreakerTrips tracks circuit breaker trip events
	BreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entityhooks",
			Subsystem: "breaker",
			Name:      "trips_total",
			Help:      "Total circuit breaker trip events",
		},
		[]string{"host"},
	)

	// Listener metrics

	// ListenerRequests tracks requests received by the demo listener
	ListenerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "entityhooks",
			Subsystem: "listener",
			Name:      "requests_total",
			Help:      "Total webhook requests received by the listener",
		},
		[]string{"method", "path", "status"},
	)
)

// CircuitBreakerState constants
const (
	CircuitBreakerClosed   = 0
	CircuitBreakerOpen     = 1
	CircuitBreakerHalfOpen = 2
)
