package webhook

import (
	"errors"
	"time"

	"go.entityhooks.tech/internal/transport"
)

// Outcome is the terminal result of considering one subscriber for one
// event. An admitted outcome carries either Err or the subscriber's
// response, which may be empty.
type Outcome struct {
	DeliveryID string
	Event      EventType
	Method     string
	URL        string

	Admitted bool

	Body        string
	BodyPresent bool
	StatusCode  int

	// Headers holds lower-cased header names. Never nil; empty unless the
	// delivery succeeded.
	Headers map[string]string

	Err      error
	Duration time.Duration
}

// Succeeded returns true if the subscriber was contacted and responded
func (o *Outcome) Succeeded() bool {
	return o.Admitted && o.Err == nil
}

// Rejected returns true if the filter kept the event from this subscriber
func (o *Outcome) Rejected() bool {
	return !o.Admitted
}

// Kind returns the transport error kind of a failed delivery
func (o *Outcome) Kind() (transport.ErrorKind, bool) {
	return transport.KindOf(o.Err)
}

// Result returns a short label for the outcome, used for metrics and logs
func (o *Outcome) Result() string {
	switch {
	case !o.Admitted:
		return "rejected"
	case o.Err == nil:
		return "success"
	}
	if kind, ok := transport.KindOf(o.Err); ok {
		return kind.Label()
	}
	if errors.Is(o.Err, ErrClosed) {
		return "dropped"
	}
	return "error"
}
