package filter

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"go.entityhooks.tech/internal/webhook"
)

// Expr admits events according to per-event-type boolean expressions, e.g.
//
//	entity in ["orders", "invoices"] && method != "GET"
//
// Expressions see event, method, url, entity, payload, data, criteria and
// newId. Event types without an expression admit everything.
type Expr struct {
	programs map[webhook.EventType]*vm.Program
	sources  map[webhook.EventType]string
}

// NewExpr compiles one condition per event type name. Empty conditions are ignored.
func NewExpr(conditions map[string]string) (*Expr, error) {
	f := &Expr{
		programs: make(map[webhook.EventType]*vm.Program),
		sources:  make(map[webhook.EventType]string),
	}

	for name, src := range conditions {
		if src == "" {
			continue
		}
		event, err := webhook.ParseEventType(name)
		if err != nil {
			return nil, fmt.Errorf("filter condition: %w", err)
		}
		prog, err := expr.Compile(src, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile %s condition: %w", event, err)
		}
		f.programs[event] = prog
		f.sources[event] = src
	}

	return f, nil
}

// MayTrigger evaluates the event's condition. An evaluation error rejects.
func (f *Expr) MayTrigger(event webhook.EventType, method, url string, payload webhook.Payload) bool {
	prog, ok := f.programs[event]
	if !ok {
		return true
	}

	result, err := expr.Run(prog, exprEnv(event, method, url, payload))
	if err != nil {
		slog.Warn("Webhook condition evaluation failed",
			"event", event,
			"url", url,
			"condition", f.sources[event],
			"error", err)
		return false
	}
	b, ok := result.(bool)
	return ok && b
}

// Conditions returns the source of each compiled condition
func (f *Expr) Conditions() map[webhook.EventType]string {
	out := make(map[webhook.EventType]string, len(f.sources))
	for k, v := range f.sources {
		out[k] = v
	}
	return out
}

func exprEnv(event webhook.EventType, method, url string, payload webhook.Payload) map[string]any {
	if payload == nil {
		payload = webhook.Payload{}
	}
	return map[string]any{
		"event":    string(event),
		"method":   method,
		"url":      url,
		"entity":   payload.Entity(),
		"payload":  map[string]any(payload),
		"data":     payload["data"],
		"criteria": payload["criteria"],
		"newId":    payload["newId"],
	}
}
