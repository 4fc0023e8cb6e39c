// Package filter provides ready-made webhook admission filters
package filter

import (
	"fmt"
	"slices"

	"go.entityhooks.tech/internal/webhook"
)

// Entities admits an event only when the payload's entity is listed for that
// event type. Event types without a list admit nothing.
type Entities map[webhook.EventType][]string

// NewEntities builds an Entities filter from event names, as found in config
func NewEntities(allowed map[string][]string) (Entities, error) {
	f := make(Entities, len(allowed))
	for name, entities := range allowed {
		event, err := webhook.ParseEventType(name)
		if err != nil {
			return nil, fmt.Errorf("allowed entities: %w", err)
		}
		f[event] = append(f[event], entities...)
	}
	return f, nil
}

func (f Entities) MayTrigger(event webhook.EventType, method, url string, payload webhook.Payload) bool {
	allowed, ok := f[event]
	if !ok {
		return false
	}
	return slices.Contains(allowed, payload.Entity())
}

// All admits an event only if every filter admits it
func All(filters ...webhook.Filter) webhook.Filter {
	return webhook.FilterFunc(func(event webhook.EventType, method, url string, payload webhook.Payload) bool {
		for _, f := range filters {
			if !f.MayTrigger(event, method, url, payload) {
				return false
			}
		}
		return true
	})
}
