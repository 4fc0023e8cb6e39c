// Package transport delivers JSON-encoded events to subscriber endpoints
package transport

import (
	"context"
	"time"
)

// Request describes one delivery attempt to one subscriber.
type Request struct {
	// ID correlates log lines of a single delivery.
	ID      string
	Method  string
	URL     string
	Payload any
}

// Result is the terminal outcome of a delivery attempt. Exactly one of
// Err or the response fields is meaningful.
type Result struct {
	Body        string
	BodyPresent bool
	StatusCode  int

	// Headers holds lower-cased header names. Never nil; empty on failure.
	Headers map[string]string

	Err error

	// BytesRead is the raw response size.
	BytesRead int
	Duration  time.Duration
}

// Succeeded returns true if the delivery produced a response (possibly empty).
func (r *Result) Succeeded() bool {
	return r.Err == nil
}

// Transport performs network I/O for a delivery. It knows nothing about
// subscriptions or event types. Implementations must return exactly one
// non-nil Result per call and must release any connection before returning.
type Transport interface {
	Deliver(ctx context.Context, req *Request) *Result
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) *Result

func (f TransportFunc) Deliver(ctx context.Context, req *Request) *Result {
	return f(ctx, req)
}

func failure(err error, started time.Time) *Result {
	return &Result{
		Headers:  map[string]string{},
		Err:      err,
		Duration: time.Since(started),
	}
}
