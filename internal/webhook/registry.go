// Package webhook notifies subscribers over HTTP that an entity was created,
// updated or deleted, without blocking the caller on subscriber latency.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.entityhooks.tech/internal/common/metrics"
	"go.entityhooks.tech/internal/dispatch"
	"go.entityhooks.tech/internal/transport"
)

// ErrClosed is reported for deliveries triggered after Close
var ErrClosed = errors.New("webhook registry closed")

// RegistryConfig configures a registry. It is fixed for the registry's lifetime.
type RegistryConfig struct {
	// Disabled turns the registry into a no-op: nothing is registered at
	// initialization and every trigger completes immediately
	Disabled bool

	// Transport performs deliveries; defaults to a raw HTTP/1.1 transport
	Transport transport.Transport

	// Filter admits or rejects each (event, subscriber) pair; defaults to AllowAll
	Filter Filter

	// Pool bounds concurrent deliveries; defaults to a private pool
	Pool *dispatch.Pool

	Logger *slog.Logger
}

// Registry holds per-event-type subscriber lists and fans events out to them.
type Registry struct {
	disabled  bool
	transport transport.Transport
	filter    Filter
	pool      *dispatch.Pool
	ownsPool  bool
	logger    *slog.Logger

	mu    sync.RWMutex
	hooks map[EventType][]Subscription

	inflightMu sync.Mutex
	closed     bool
	inflight   sync.WaitGroup
}

// NewRegistry creates an empty registry
func NewRegistry(cfg *RegistryConfig) *Registry {
	if cfg == nil {
		cfg = &RegistryConfig{}
	}

	r := &Registry{
		disabled:  cfg.Disabled,
		transport: cfg.Transport,
		filter:    cfg.Filter,
		pool:      cfg.Pool,
		logger:    cfg.Logger,
		hooks:     make(map[EventType][]Subscription),
	}
	if r.transport == nil {
		r.transport = transport.NewRawTransport(nil)
	}
	if r.filter == nil {
		r.filter = AllowAll
	}
	if r.pool == nil {
		r.pool = dispatch.NewPool(&dispatch.Config{Name: "webhooks", MaxInFlight: dispatch.DefaultConfig().MaxInFlight})
		r.ownsPool = true
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Disabled returns true if the registry ignores all triggers
func (r *Registry) Disabled() bool {
	return r.disabled
}

// Subscribe appends a subscription for event. An empty method selects the
// event type's default. Duplicates are kept.
func (r *Registry) Subscribe(event EventType, url, method string) error {
	_, err := r.subscribe(event, url, method)
	return err
}

func (r *Registry) subscribe(event EventType, url, method string) (*Subscription, error) {
	if !event.IsValid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownEventType, string(event))
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = event.DefaultMethod()
	}
	if !IsSupportedMethod(method) {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedMethod, method)
	}

	sub := Subscription{Event: event, URL: url, Method: method}

	r.mu.Lock()
	r.hooks[event] = append(r.hooks[event], sub)
	r.mu.Unlock()

	return &sub, nil
}

// Initialize registers every declaration of provider. A declaration that
// cannot be registered is skipped and recorded in the report; the remaining
// ones are still processed.
func (r *Registry) Initialize(provider Provider) *InitReport {
	report := &InitReport{}
	if r.disabled {
		r.logger.Info("Webhooks disabled, skipping subscription initialization")
		return report
	}
	if provider == nil {
		return report
	}

	for _, decl := range provider.Declarations() {
		entry := EntryResult{Declaration: decl}

		event, err := ParseEventType(decl.Event)
		if err == nil {
			entry.Subscription, err = r.subscribe(event, decl.URL, decl.Method)
		}
		entry.Err = err

		if err != nil {
			metrics.InitEntries.WithLabelValues("skipped").Inc()
			r.logger.Warn("Skipping webhook declaration",
				"event", decl.Event,
				"url", decl.URL,
				"method", decl.Method,
				"error", err)
		} else {
			metrics.InitEntries.WithLabelValues("subscribed").Inc()
		}
		report.Entries = append(report.Entries, entry)
	}

	r.logger.Info("Webhook subscriptions initialized",
		"subscribed", report.Subscribed(),
		"skipped", len(report.Failed()))

	return report
}

// Subscriptions returns a copy of the subscriptions for event, in
// registration order
func (r *Registry) Subscriptions(event EventType) []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Subscription(nil), r.hooks[event]...)
}

// Trigger announces event to every subscriber registered for it. Each
// subscriber is offered to the filter in registration order; admitted ones
// are delivered concurrently, bounded by the pool. Trigger does not wait for
// any delivery. cb may be nil.
//
// Deliveries are detached from ctx's cancellation: once triggered they run
// to their own connect and read bounds. payload must not be modified until
// the dispatch is done.
func (r *Registry) Trigger(ctx context.Context, event EventType, payload Payload, cb Callback) *Dispatch {
	if r.disabled {
		return newDispatch(event, 0, cb, r.logger)
	}
	if !event.IsValid() {
		r.logger.Warn("Trigger for unknown event type ignored", "event", string(event))
		return newDispatch(event, 0, cb, r.logger)
	}

	subs := r.Subscriptions(event)
	d := newDispatch(event, len(subs), cb, r.logger)
	ctx = context.WithoutCancel(ctx)

	for _, sub := range subs {
		base := Outcome{
			DeliveryID: uuid.NewString(),
			Event:      event,
			Method:     sub.Method,
			URL:        sub.URL,
			Headers:    map[string]string{},
		}

		if !r.filter.MayTrigger(event, sub.Method, sub.URL, payload) {
			metrics.FilterDecisions.WithLabelValues(string(event), "rejected").Inc()
			r.finish(d, base)
			continue
		}
		metrics.FilterDecisions.WithLabelValues(string(event), "admitted").Inc()
		base.Admitted = true

		if !r.track() {
			base.Err = ErrClosed
			r.finish(d, base)
			continue
		}

		r.pool.Submit(ctx, func(ctx context.Context, err error) {
			defer r.inflight.Done()
			if err != nil {
				base.Err = fmt.Errorf("delivery not started: %w", err)
				r.finish(d, base)
				return
			}
			r.finish(d, r.deliver(ctx, base, payload))
		})
	}

	return d
}

// TriggerCreate triggers the create event
func (r *Registry) TriggerCreate(ctx context.Context, payload Payload, cb Callback) *Dispatch {
	return r.Trigger(ctx, EventCreate, payload, cb)
}

// TriggerUpdate triggers the update event
func (r *Registry) TriggerUpdate(ctx context.Context, payload Payload, cb Callback) *Dispatch {
	return r.Trigger(ctx, EventUpdate, payload, cb)
}

// TriggerDelete triggers the delete event
func (r *Registry) TriggerDelete(ctx context.Context, payload Payload, cb Callback) *Dispatch {
	return r.Trigger(ctx, EventDelete, payload, cb)
}

func (r *Registry) deliver(ctx context.Context, o Outcome, payload Payload) Outcome {
	r.logger.Debug("Delivering webhook",
		"deliveryId", o.DeliveryID,
		"event", o.Event,
		"method", o.Method,
		"url", o.URL)

	res := r.transport.Deliver(ctx, &transport.Request{
		ID:      o.DeliveryID,
		Method:  o.Method,
		URL:     o.URL,
		Payload: payload,
	})

	o.Err = res.Err
	o.Duration = res.Duration
	if res.Err == nil {
		o.Body = res.Body
		o.BodyPresent = res.BodyPresent
		o.StatusCode = res.StatusCode
		if res.Headers != nil {
			o.Headers = res.Headers
		}
	}
	metrics.DeliveryDuration.WithLabelValues(string(o.Event)).Observe(o.Duration.Seconds())
	return o
}

func (r *Registry) finish(d *Dispatch, o Outcome) {
	metrics.DeliveryTotal.WithLabelValues(string(o.Event), o.Result()).Inc()

	switch {
	case o.Err != nil:
		r.logger.Warn("Webhook delivery failed",
			"deliveryId", o.DeliveryID,
			"event", o.Event,
			"method", o.Method,
			"url", o.URL,
			"result", o.Result(),
			"error", o.Err)
	case o.Admitted:
		r.logger.Debug("Webhook delivered",
			"deliveryId", o.DeliveryID,
			"event", o.Event,
			"url", o.URL,
			"statusCode", o.StatusCode,
			"duration", o.Duration)
	}

	d.report(o)
}

// track registers one in-flight delivery; false once the registry is closed.
func (r *Registry) track() bool {
	r.inflightMu.Lock()
	defer r.inflightMu.Unlock()
	if r.closed {
		return false
	}
	r.inflight.Add(1)
	return true
}

// Close stops accepting deliveries and waits for in-flight ones to report,
// bounded by ctx. Triggers after Close report ErrClosed for every admitted
// subscriber.
func (r *Registry) Close(ctx context.Context) error {
	r.inflightMu.Lock()
	r.closed = true
	r.inflightMu.Unlock()

	start := time.Now()
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.logger.Debug("Webhook registry closed", "waited", time.Since(start))
	if r.ownsPool {
		return r.pool.Close(ctx)
	}
	return nil
}
