package webhook

import (
	"context"
	"log/slog"
	"sync"
)

// Callback observes each subscriber's outcome. It is invoked exactly once
// per subscriber, possibly from several goroutines at once.
type Callback func(Outcome)

// Dispatch tracks the outcomes of one Trigger call. Outcomes can be consumed
// as they arrive via Results, joined with Wait, or ignored entirely.
type Dispatch struct {
	event   EventType
	total   int
	cb      Callback
	logger  *slog.Logger
	results chan Outcome
	done    chan struct{}

	mu       sync.Mutex
	outcomes []Outcome
}

func newDispatch(event EventType, total int, cb Callback, logger *slog.Logger) *Dispatch {
	d := &Dispatch{
		event:    event,
		total:    total,
		cb:       cb,
		logger:   logger,
		results:  make(chan Outcome, total),
		done:     make(chan struct{}),
		outcomes: make([]Outcome, 0, total),
	}
	if total == 0 {
		close(d.results)
		close(d.done)
	}
	return d
}

// report records o. The callback runs before the outcome becomes visible on
// Results or to Wait.
func (d *Dispatch) report(o Outcome) {
	d.invoke(o)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.outcomes = append(d.outcomes, o)
	// results is buffered to total, so the send never blocks.
	d.results <- o
	if len(d.outcomes) == d.total {
		close(d.results)
		close(d.done)
	}
}

func (d *Dispatch) invoke(o Outcome) {
	if d.cb == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("Webhook callback panicked",
				"deliveryId", o.DeliveryID,
				"event", o.Event,
				"url", o.URL,
				"panic", rec)
		}
	}()
	d.cb(o)
}

// Event returns the event type this dispatch was triggered for
func (d *Dispatch) Event() EventType {
	return d.event
}

// Len returns the number of subscribers considered, admitted or not
func (d *Dispatch) Len() int {
	return d.total
}

// Results delivers each outcome as it becomes available and is closed after
// the last one. The channel is buffered, so leaving it unread never blocks
// a delivery.
func (d *Dispatch) Results() <-chan Outcome {
	return d.results
}

// Done is closed once every subscriber has an outcome
func (d *Dispatch) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until every subscriber has an outcome or ctx ends, and returns
// the outcomes gathered so far in completion order.
func (d *Dispatch) Wait(ctx context.Context) ([]Outcome, error) {
	select {
	case <-d.done:
		return d.Outcomes(), nil
	case <-ctx.Done():
		return d.Outcomes(), ctx.Err()
	}
}

// Outcomes returns a snapshot of the outcomes reported so far
func (d *Dispatch) Outcomes() []Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Outcome(nil), d.outcomes...)
}
