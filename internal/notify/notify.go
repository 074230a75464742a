// Package notify carries domain events to realtime dashboards and to other
// systems listening on the message broker.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Topics group events by audience.
const (
	TopicOrders = "orders"
	TopicStock  = "stock"
)

const (
	EventOrderCreated         = "order.created"
	EventOrderStatusChanged   = "order.status_changed"
	EventOrderDiscountApplied = "order.discount_applied"
	EventStockLow             = "stock.low"
)

// Event is the envelope sent to subscribers. Topic selects the audience and
// is not part of the wire format.
type Event struct {
	Topic      string          `json:"-"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent marshals payload into an Event stamped with the current time.
func NewEvent(topic, eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		Topic:      topic,
		Type:       eventType,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// --- Payloads ---

type OrderCreatedPayload struct {
	OrderID         string `json:"order_id"`
	OrderNumber     string `json:"order_number"`
	CustomerNumber  string `json:"customer_number"`
	Status          string `json:"status"`
	FinalTotalUsd   string `json:"final_total_usd"`
	FinalTotalLocal int64  `json:"final_total_local"`
}

type OrderStatusChangedPayload struct {
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	CustomerNumber string `json:"customer_number"`
	From           string `json:"from"`
	To             string `json:"to"`
	ActorRole      string `json:"actor_role"`
}

type OrderDiscountAppliedPayload struct {
	OrderID         string `json:"order_id"`
	DiscountID      string `json:"discount_id"`
	FinalTotalUsd   string `json:"final_total_usd"`
	FinalTotalLocal int64  `json:"final_total_local"`
}

type StockLowPayload struct {
	IngredientID string `json:"ingredient_id"`
	Name         string `json:"name"`
	CurrentStock string `json:"current_stock"`
	ReorderLevel string `json:"reorder_level"`
	Unit         string `json:"unit"`
}
