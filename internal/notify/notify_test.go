package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Publish(ctx context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestNewEvent(t *testing.T) {
	e, err := NewEvent(TopicOrders, EventOrderCreated, OrderCreatedPayload{OrderNumber: "ORD-1", FinalTotalLocal: 405000})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if e.Topic != TopicOrders || e.Type != EventOrderCreated {
		t.Errorf("topic/type: got %s/%s", e.Topic, e.Type)
	}
	if e.OccurredAt.IsZero() {
		t.Error("expected OccurredAt to be set")
	}

	var p OrderCreatedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.OrderNumber != "ORD-1" || p.FinalTotalLocal != 405000 {
		t.Errorf("payload: got %+v", p)
	}

	raw, _ := json.Marshal(e)
	var wire map[string]interface{}
	json.Unmarshal(raw, &wire) //nolint:errcheck
	if _, ok := wire["Topic"]; ok {
		t.Error("topic must not be serialized")
	}
}

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{err: errors.New("broker down")}
	c := &recordingNotifier{}

	err := Multi{a, nil, b, c}.Publish(context.Background(), Event{Type: EventStockLow})
	if err == nil {
		t.Fatal("expected joined error")
	}
	for name, n := range map[string]*recordingNotifier{"a": a, "b": b, "c": c} {
		if len(n.events) != 1 {
			t.Errorf("%s: got %d events, want 1", name, len(n.events))
		}
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("Nop.Publish: %v", err)
	}
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error { return nil }

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "cafe_events"}

	e, _ := NewEvent(TopicOrders, EventOrderStatusChanged, OrderStatusChangedPayload{From: "preparing", To: "ready_for_pickup"})
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if ch.exchange != "cafe_events" {
		t.Errorf("exchange: got %q", ch.exchange)
	}
	if ch.key != EventOrderStatusChanged {
		t.Errorf("routing key: got %q, want %q", ch.key, EventOrderStatusChanged)
	}
	if ch.msg.DeliveryMode != amqp.Persistent {
		t.Errorf("delivery mode: got %d, want persistent", ch.msg.DeliveryMode)
	}
	if ch.msg.ContentType != "application/json" {
		t.Errorf("content type: got %q", ch.msg.ContentType)
	}

	var decoded Event
	if err := json.Unmarshal(ch.msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Type != EventOrderStatusChanged {
		t.Errorf("body type: got %q", decoded.Type)
	}
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	p := &AMQPPublisher{ch: &fakeChannel{err: amqp.ErrClosed}, exchange: "cafe_events"}

	err := p.Publish(context.Background(), Event{Type: EventStockLow})
	if !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("expected wrapped ErrClosed, got %v", err)
	}
}
