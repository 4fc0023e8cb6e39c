package webhook

// Payload is the event body sent to subscribers, serialized as JSON.
// The registry and transport never interpret it; only filters do.
type Payload map[string]any

// CreatePayload builds the payload announcing a created entity
func CreatePayload(entity string, data map[string]any, newID any) Payload {
	return Payload{
		"entity": entity,
		"data":   data,
		"newId":  newID,
	}
}

// UpdatePayload builds the payload announcing updated entities
func UpdatePayload(entity string, data map[string]any, criteria any) Payload {
	return Payload{
		"entity":   entity,
		"data":     data,
		"criteria": criteria,
	}
}

// DeletePayload builds the payload announcing deleted entities
func DeletePayload(entity string, criteria any) Payload {
	return Payload{
		"entity":   entity,
		"criteria": criteria,
	}
}

// Entity returns the entity name, or "" when absent or not a string
func (p Payload) Entity() string {
	s, _ := p["entity"].(string)
	return s
}
