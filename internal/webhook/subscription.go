package webhook

// Subscription is a subscriber endpoint interested in one event type.
// It is immutable once registered.
type Subscription struct {
	Event  EventType
	URL    string
	Method string
}

// Declaration is one entry of a subscription provider's list. Method may be
// empty, in which case the event type's default method applies.
type Declaration struct {
	Event  string
	URL    string
	Method string
}

// Provider supplies the static subscription list of an owning application.
// It is consumed once, at initialization.
type Provider interface {
	Declarations() []Declaration
}

// StaticProvider is a fixed declaration list
type StaticProvider []Declaration

func (p StaticProvider) Declarations() []Declaration {
	return p
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func() []Declaration

func (f ProviderFunc) Declarations() []Declaration {
	return f()
}

// EntryResult records what happened to one declaration during initialization
type EntryResult struct {
	Declaration Declaration
	// Subscription is set when the declaration was registered
	Subscription *Subscription
	Err          error
}

// InitReport lists the per-declaration results of an initialization pass,
// in declaration order
type InitReport struct {
	Entries []EntryResult
}

// Subscribed returns the number of declarations that were registered
func (r *InitReport) Subscribed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the entries that could not be registered
func (r *InitReport) Failed() []EntryResult {
	var failed []EntryResult
	for _, e := range r.Entries {
		if e.Err != nil {
			failed = append(failed, e)
		}
	}
	return failed
}
