package webhook

// Filter decides, per event and per subscriber, whether a delivery happens.
// It is implemented by the owning application and should be a pure predicate.
type Filter interface {
	MayTrigger(event EventType, method, url string, payload Payload) bool
}

// FilterFunc adapts a function to the Filter interface
type FilterFunc func(event EventType, method, url string, payload Payload) bool

func (f FilterFunc) MayTrigger(event EventType, method, url string, payload Payload) bool {
	return f(event, method, url, payload)
}

// AllowAll admits every event
var AllowAll Filter = FilterFunc(func(EventType, string, string, Payload) bool {
	return true
})
