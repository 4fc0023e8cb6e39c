package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"go.entityhooks.tech/internal/webhook"
)

// criterion is one condition of an update or delete statement
type criterion struct {
	Name     string `json:"name"`
	Operator string `json:"operator"`
	Operand  any    `json:"operand"`
}

// store stands in for a data layer that announces every mutation it makes
type store struct {
	hooks *webhook.Registry

	mu         sync.Mutex
	dispatches []*webhook.Dispatch
}

func newStore(hooks *webhook.Registry) *store {
	return &store{hooks: hooks}
}

// Insert pretends to insert data into table and announces the new row
func (s *store) Insert(ctx context.Context, table string, data map[string]any) {
	newID := rand.IntN(1000) + 1
	s.track(s.hooks.TriggerCreate(ctx, webhook.CreatePayload(table, data, newID), logOutcome))
}

// Update pretends to update table and announces the change
func (s *store) Update(ctx context.Context, table string, data map[string]any, criteria []criterion) {
	s.track(s.hooks.TriggerUpdate(ctx, webhook.UpdatePayload(table, data, criteria), logOutcome))
}

// Delete pretends to delete from table and announces the removal
func (s *store) Delete(ctx context.Context, table string, criteria []criterion) {
	s.track(s.hooks.TriggerDelete(ctx, webhook.DeletePayload(table, criteria), logOutcome))
}

func (s *store) track(d *webhook.Dispatch) {
	s.mu.Lock()
	s.dispatches = append(s.dispatches, d)
	s.mu.Unlock()
}

// Wait blocks until every announced mutation has an outcome for each
// subscriber, or ctx ends
func (s *store) Wait(ctx context.Context) ([]webhook.Outcome, error) {
	s.mu.Lock()
	dispatches := append([]*webhook.Dispatch(nil), s.dispatches...)
	s.mu.Unlock()

	var all []webhook.Outcome
	for _, d := range dispatches {
		outcomes, err := d.Wait(ctx)
		all = append(all, outcomes...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

func logOutcome(o webhook.Outcome) {
	if o.Rejected() {
		slog.Info("Webhook not triggered",
			"event", o.Event,
			"url", o.URL)
		return
	}
	if o.Err != nil {
		slog.Warn("Webhook failed",
			"deliveryId", o.DeliveryID,
			"event", o.Event,
			"url", o.URL,
			"result", o.Result(),
			"error", o.Err)
		return
	}
	slog.Info("Webhook delivered",
		"deliveryId", o.DeliveryID,
		"event", o.Event,
		"url", o.URL,
		"statusCode", o.StatusCode,
		"body", o.Body,
		"headers", o.Headers,
		"duration", o.Duration)
}

// simulate runs the demo mutations: per event type, two that the demo
// filter admits and one it rejects
func simulate(ctx context.Context, s *store) {
	slog.Info("[1] Testing the INSERT trigger")
	s.Insert(ctx, "this_table", map[string]any{"field_1": 100, "field_2": "some string", "field_3": true})
	s.Insert(ctx, "other_table", map[string]any{"field_a": "lorem ipsum text", "field_b": 99.99})
	s.Insert(ctx, "some_table", map[string]any{"field_x": -1, "field_y": "qwerty", "field_z": nil})

	slog.Info("[2] Testing the UPDATE trigger")
	s.Update(ctx, "some_table",
		map[string]any{"field_x": 200, "field_y": "other string", "field_z": false},
		[]criterion{{Name: "field_z", Operator: "in", Operand: []int{1, 2, 3}}})
	s.Update(ctx, "any_table",
		map[string]any{"f1": 1, "f2": 2},
		[]criterion{{Name: "f3", Operator: "!=", Operand: "test"}})
	s.Update(ctx, "not_that_table",
		map[string]any{"field_x": -1, "field_y": "qwerty", "field_z": nil},
		[]criterion{{Name: "field_y", Operator: "!=", Operand: nil}})

	slog.Info("[3] Testing the DELETE trigger")
	s.Delete(ctx, "this_table", []criterion{{Name: "field_x", Operator: "not in", Operand: []int{1, 2, 3}}})
	s.Delete(ctx, "not_that_table", []criterion{{Name: "f1", Operator: "=", Operand: 1}})
	s.Delete(ctx, "any_table", []criterion{{Name: "field_x", Operator: "<=", Operand: "test"}})
}
