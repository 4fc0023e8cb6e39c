package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// === Delivery Metrics Tests ===

func TestDeliveryTotal_Labels(t *testing.T) {
	results := []string{"success", "rejected", "invalid_url", "connection", "io", "timed_out", "invalid_payload"}

	for _, r := range results {
		DeliveryTotal.WithLabelValues("test-create", r).Inc()
	}

	for _, r := range results {
		if got := testutil.ToFloat64(DeliveryTotal.WithLabelValues("test-create", r)); got != 1 {
			t.Errorf("Expected 1 for result %s, got %v", r, got)
		}
	}
}

func TestDeliveryDuration_Observe(t *testing.T) {
	durations := []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0}
	for _, d := range durations {
		DeliveryDuration.WithLabelValues("test-update").Observe(d)
	}

	if count := testutil.CollectAndCount(DeliveryDuration); count == 0 {
		t.Error("Expected at least one histogram series")
	}
}

// === Filter Metrics Tests ===

func TestFilterDecisions_Counter(t *testing.T) {
	before := testutil.ToFloat64(FilterDecisions.WithLabelValues("test-delete", "rejected"))

	FilterDecisions.WithLabelValues("test-delete", "rejected").Inc()
	FilterDecisions.WithLabelValues("test-delete", "rejected").Add(2)

	after := testutil.ToFloat64(FilterDecisions.WithLabelValues("test-delete", "rejected"))
	if after-before != 3 {
		t.Errorf("Expected counter to grow by 3, grew by %v", after-before)
	}
}

// === Pool Metrics Tests ===

func TestPoolGauges(t *testing.T) {
	PoolActiveWorkers.WithLabelValues("test-pool").Set(5)
	PoolActiveWorkers.WithLabelValues("test-pool").Inc()
	PoolActiveWorkers.WithLabelValues("test-pool").Dec()

	if got := testutil.ToFloat64(PoolActiveWorkers.WithLabelValues("test-pool")); got != 5 {
		t.Errorf("Expected 5 active workers, got %v", got)
	}

	PoolAvailablePermits.WithLabelValues("test-pool").Set(11)
	if got := testutil.ToFloat64(PoolAvailablePermits.WithLabelValues("test-pool")); got != 11 {
		t.Errorf("Expected 11 available permits, got %v", got)
	}
}

// === Breaker Metrics Tests ===

func TestBreakerState_Values(t *testing.T) {
	states := []int{CircuitBreakerClosed, CircuitBreakerOpen, CircuitBreakerHalfOpen}

	for _, s := range states {
		BreakerState.WithLabelValues("test-host:80").Set(float64(s))
		if got := testutil.ToFloat64(BreakerState.WithLabelValues("test-host:80")); got != float64(s) {
			t.Errorf("Expected state %d, got %v", s, got)
		}
	}
}

func TestCircuitBreakerConstants(t *testing.T) {
	if CircuitBreakerClosed != 0 {
		t.Errorf("Expected CircuitBreakerClosed=0, got %d", CircuitBreakerClosed)
	}
	if CircuitBreakerOpen != 1 {
		t.Errorf("Expected CircuitBreakerOpen=1, got %d", CircuitBreakerOpen)
	}
	if CircuitBreakerHalfOpen != 2 {
		t.Errorf("Expected CircuitBreakerHalfOpen=2, got %d", CircuitBreakerHalfOpen)
	}
}
