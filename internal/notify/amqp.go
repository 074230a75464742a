package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	amqpDialRetries    = 5
	amqpPublishTimeout = 10 * time.Second
)

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable topic exchange. The routing
// key is the event type, so consumers can bind to "order.*" or "stock.low".
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

// DialAMQP connects to the broker, retrying with a linear backoff, and
// declares the exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	var lastErr error
	for attempt := 0; attempt < amqpDialRetries; attempt++ {
		p, err := dialOnce(url, exchange)
		if err == nil {
			return p, nil
		}
		lastErr = err
		if attempt < amqpDialRetries-1 {
			wait := time.Duration(attempt+1) * 2 * time.Second
			log.Printf("WARN: amqp connect failed, retrying in %v: %v", wait, err)
			time.Sleep(wait)
		}
	}
	return nil, fmt.Errorf("connect to amqp after %d attempts: %w", amqpDialRetries, lastErr)
}

func dialOnce(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, amqpPublishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		Type:         e.Type,
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.Type, p.exchange, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close() //nolint:errcheck
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
