// pkg/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"quiz-practice/internal/models"
)

const (
	TypeSessionCompleted = "session.completed"
	TypeItemDelivered    = "item.delivered"
)

// Event is the envelope written to the exchange.
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type EventPublisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	mu       sync.Mutex
	now      func() time.Time
}

func NewEventPublisher(amqpURL, exchange string) (*EventPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &EventPublisher{conn: conn, channel: ch, exchange: exchange, now: time.Now}, nil
}

// Publish routes the event by its type on the topic exchange.
func (p *EventPublisher) Publish(eventType string, payload interface{}) error {
	body, err := json.Marshal(Event{
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Publish(
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (p *EventPublisher) SessionCompleted(_ context.Context, res models.SessionResult) error {
	return p.Publish(TypeSessionCompleted, res)
}

func (p *EventPublisher) ItemDelivered(_ context.Context, item models.ItemDTO, ownerID uint) error {
	return p.Publish(TypeItemDelivered, map[string]interface{}{
		"user_id": ownerID,
		"item":    item,
	})
}

func (p *EventPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
