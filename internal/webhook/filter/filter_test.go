package filter

import (
	"errors"
	"testing"

	"go.entityhooks.tech/internal/webhook"
)

func demoEntities() Entities {
	return Entities{
		webhook.EventCreate: {"this_table", "other_table"},
		webhook.EventUpdate: {"some_table", "any_table"},
		webhook.EventDelete: {"this_table", "not_that_table"},
	}
}

func TestEntities(t *testing.T) {
	f := demoEntities()

	tests := []struct {
		event  webhook.EventType
		entity string
		want   bool
	}{
		{webhook.EventCreate, "this_table", true},
		{webhook.EventCreate, "other_table", true},
		{webhook.EventCreate, "some_table", false},
		{webhook.EventUpdate, "some_table", true},
		{webhook.EventUpdate, "not_that_table", false},
		{webhook.EventDelete, "not_that_table", true},
		{webhook.EventDelete, "any_table", false},
	}

	for _, tt := range tests {
		payload := webhook.Payload{"entity": tt.entity}
		if got := f.MayTrigger(tt.event, tt.event.DefaultMethod(), "http://h/x", payload); got != tt.want {
			t.Errorf("MayTrigger(%s, %s) = %v, want %v", tt.event, tt.entity, got, tt.want)
		}
	}
}

func TestEntities_MissingEventRejects(t *testing.T) {
	f := Entities{webhook.EventCreate: {"t"}}

	if f.MayTrigger(webhook.EventDelete, "DELETE", "http://h/d", webhook.Payload{"entity": "t"}) {
		t.Error("Expected event type without an allow-list to be rejected")
	}
}

func TestAll(t *testing.T) {
	deny := webhook.FilterFunc(func(webhook.EventType, string, string, webhook.Payload) bool { return false })
	payload := webhook.Payload{"entity": "this_table"}

	if !All(demoEntities(), webhook.AllowAll).MayTrigger(webhook.EventCreate, "POST", "http://h/c", payload) {
		t.Error("Expected conjunction of admitting filters to admit")
	}
	if All(demoEntities(), deny).MayTrigger(webhook.EventCreate, "POST", "http://h/c", payload) {
		t.Error("Expected conjunction with a rejecting filter to reject")
	}
	if !All().MayTrigger(webhook.EventCreate, "POST", "http://h/c", payload) {
		t.Error("Expected empty conjunction to admit")
	}
}

func TestExpr(t *testing.T) {
	f, err := NewExpr(map[string]string{
		"create": `entity in ["this_table", "other_table"]`,
		"UPDATE": `method == "PATCH" && data.status == "shipped"`,
		"delete": "",
	})
	if err != nil {
		t.Fatalf("NewExpr failed: %v", err)
	}

	tests := []struct {
		name    string
		event   webhook.EventType
		method  string
		payload webhook.Payload
		want    bool
	}{
		{"create allowed", webhook.EventCreate, "POST", webhook.CreatePayload("this_table", nil, 1), true},
		{"create rejected", webhook.EventCreate, "POST", webhook.CreatePayload("some_table", nil, 1), false},
		{"update matches data", webhook.EventUpdate, "PATCH", webhook.UpdatePayload("orders", map[string]any{"status": "shipped"}, nil), true},
		{"update wrong method", webhook.EventUpdate, "PUT", webhook.UpdatePayload("orders", map[string]any{"status": "shipped"}, nil), false},
		{"update wrong status", webhook.EventUpdate, "PATCH", webhook.UpdatePayload("orders", map[string]any{"status": "new"}, nil), false},
		{"delete without condition", webhook.EventDelete, "DELETE", webhook.DeletePayload("anything", nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.MayTrigger(tt.event, tt.method, "http://h/x", tt.payload); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if len(f.Conditions()) != 2 {
		t.Errorf("Expected 2 compiled conditions, got %d", len(f.Conditions()))
	}
}

func TestExpr_EvaluationErrorRejects(t *testing.T) {
	f, err := NewExpr(map[string]string{
		"update": `data.count > 3`,
	})
	if err != nil {
		t.Fatalf("NewExpr failed: %v", err)
	}

	// data is nil here, so the comparison fails at runtime.
	if f.MayTrigger(webhook.EventUpdate, "PATCH", "http://h/u", webhook.Payload{"entity": "t"}) {
		t.Error("Expected evaluation error to reject")
	}
}

func TestNewExpr_Errors(t *testing.T) {
	if _, err := NewExpr(map[string]string{"archive": "true"}); err == nil {
		t.Error("Expected error for unknown event type")
	}
	if _, err := NewExpr(map[string]string{"create": "entity in ["}); err == nil {
		t.Error("Expected error for invalid expression")
	}
}

func TestNewEntities(t *testing.T) {
	f, err := NewEntities(map[string][]string{
		"create": {"this_table"},
		"Update": {"some_table"},
	})
	if err != nil {
		t.Fatalf("NewEntities failed: %v", err)
	}

	if !f.MayTrigger(webhook.EventUpdate, "PATCH", "http://h/u", webhook.UpdatePayload("some_table", nil, nil)) {
		t.Error("Expected some_table update to be admitted")
	}
	if f.MayTrigger(webhook.EventDelete, "DELETE", "http://h/d", webhook.DeletePayload("this_table", nil)) {
		t.Error("Expected delete without a list to be rejected")
	}

	if _, err := NewEntities(map[string][]string{"archive": {"t"}}); !errors.Is(err, webhook.ErrUnknownEventType) {
		t.Errorf("Expected ErrUnknownEventType, got %v", err)
	}
}
