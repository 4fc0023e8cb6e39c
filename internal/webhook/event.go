package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnknownEventType is returned for event types outside the closed set
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrUnsupportedMethod is returned for HTTP methods a subscription may not use
	ErrUnsupportedMethod = errors.New("unsupported method")
)

// EventType is the kind of data mutation being announced
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// EventTypes returns the closed set of event types in canonical order
func EventTypes() []EventType {
	return []EventType{EventCreate, EventUpdate, EventDelete}
}

// ParseEventType parses an event type name, case-insensitively
func ParseEventType(s string) (EventType, error) {
	et := EventType(strings.ToLower(strings.TrimSpace(s)))
	if !et.IsValid() {
		return "", fmt.Errorf("%w %q", ErrUnknownEventType, s)
	}
	return et, nil
}

// IsValid returns true if et is one of the known event types
func (et EventType) IsValid() bool {
	switch et {
	case EventCreate, EventUpdate, EventDelete:
		return true
	default:
		return false
	}
}

// DefaultMethod returns the HTTP method used when a subscription names none
func (et EventType) DefaultMethod() string {
	switch et {
	case EventCreate:
		return http.MethodPost
	case EventUpdate:
		return http.MethodPatch
	case EventDelete:
		return http.MethodDelete
	default:
		return ""
	}
}

func (et EventType) String() string {
	return string(et)
}

// supportedMethods are the methods a subscription may use
var supportedMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodGet:    true,
	http.MethodPatch:  true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// IsSupportedMethod returns true if method may be used by a subscription
func IsSupportedMethod(method string) bool {
	return supportedMethods[method]
}
