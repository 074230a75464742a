package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cafe-pos/api/internal/auth"
	"github.com/cafe-pos/api/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, topic string) *Client {
	return &Client{
		hub:   hub,
		topic: topic,
		send:  make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub()
	go hub.Run(ctx)
	return hub
}

func testEvent(topic, eventType string) notify.Event {
	return notify.Event{
		Topic:      topic,
		Type:       eventType,
		Payload:    json.RawMessage(`{"order_id":"test-123"}`),
		OccurredAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub, notify.TopicOrders)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if got := hub.Subscribers(notify.TopicOrders); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub, notify.TopicOrders)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[notify.TopicOrders] != nil {
		t.Fatal("room not cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestPublishToSingleTopic(t *testing.T) {
	hub := startHub(t)
	orders := mockClient(hub, notify.TopicOrders)
	stock := mockClient(hub, notify.TopicStock)
	hub.register <- orders
	hub.register <- stock
	time.Sleep(10 * time.Millisecond)

	if err := hub.Publish(context.Background(), testEvent(notify.TopicOrders, notify.EventOrderCreated)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-orders.send:
		var received map[string]json.RawMessage
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if string(received["type"]) != `"order.created"` {
			t.Errorf("expected type order.created, got %s", received["type"])
		}
		if string(received["payload"]) != `{"order_id":"test-123"}` {
			t.Errorf("unexpected payload %s", received["payload"])
		}
		if _, ok := received["occurred_at"]; !ok {
			t.Error("expected occurred_at in message")
		}
		if _, ok := received["topic"]; ok {
			t.Error("topic is routing only and must not be sent")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("orders client did not receive message")
	}

	select {
	case <-stock.send:
		t.Fatal("stock client should not receive order events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishToMultipleClients(t *testing.T) {
	hub := startHub(t)
	clients := []*Client{
		mockClient(hub, notify.TopicStock),
		mockClient(hub, notify.TopicStock),
		mockClient(hub, notify.TopicStock),
	}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	if err := hub.Publish(context.Background(), testEvent(notify.TopicStock, notify.EventStockLow)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received notify.Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != notify.EventStockLow {
				t.Errorf("client%d: expected %s, got %s", i+1, notify.EventStockLow, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestPublishQueueFull(t *testing.T) {
	hub := NewHub() // not running, nothing drains the queue
	for i := 0; i < cap(hub.broadcast); i++ {
		if err := hub.Publish(context.Background(), testEvent(notify.TopicOrders, notify.EventOrderCreated)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if err := hub.Publish(context.Background(), testEvent(notify.TopicOrders, notify.EventOrderCreated)); !errors.Is(err, ErrHubFull) {
		t.Fatalf("expected ErrHubFull, got %v", err)
	}
}

func TestSlowClientDropped(t *testing.T) {
	hub := startHub(t)
	slow := &Client{hub: hub, topic: notify.TopicOrders, send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	if err := hub.Publish(context.Background(), testEvent(notify.TopicOrders, notify.EventOrderCreated)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if got := hub.Subscribers(notify.TopicOrders); got != 0 {
		t.Fatalf("slow client should be dropped, %d subscribers left", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := mockClient(hub, notify.TopicOrders)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("clients should be closed on shutdown")
	}
}

func TestCanSubscribe(t *testing.T) {
	tests := []struct {
		topic string
		role  string
		want  bool
	}{
		{notify.TopicOrders, "courier", true},
		{notify.TopicOrders, "barista", true},
		{notify.TopicOrders, "manager", true},
		{notify.TopicStock, "manager", true},
		{notify.TopicStock, "cashier", false},
		{notify.TopicStock, "barista", false},
		{"payroll", "manager", false},
	}
	for _, tt := range tests {
		if got := CanSubscribe(tt.topic, tt.role); got != tt.want {
			t.Errorf("CanSubscribe(%s, %s) = %v, want %v", tt.topic, tt.role, got, tt.want)
		}
	}
}

func TestServeWS_Rejections(t *testing.T) {
	const secret = "test-secret"
	hub := NewHub()
	r := chi.NewRouter()
	r.Get("/ws/{topic}", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, secret, w, r)
	})

	cashierToken, _ := auth.GenerateToken(secret, uuid.New(), "cashier1", "cashier")

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"missing token", "/ws/orders", http.StatusUnauthorized},
		{"invalid token", "/ws/orders?token=garbage", http.StatusUnauthorized},
		{"unknown topic", "/ws/payroll?token=" + cashierToken, http.StatusNotFound},
		{"role not allowed", "/ws/stock?token=" + cashierToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}
