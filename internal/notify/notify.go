// internal/notify/notify.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"librarydesk/internal/lending"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// LendingEvent is published after the backend accepts an issue, return or
// renew.
type LendingEvent struct {
	EventID    uuid.UUID      `json:"event_id"`
	Action     lending.Action `json:"action"`
	BookID     string         `json:"book_id"`
	UserID     string         `json:"user_id"`
	DueDate    *time.Time     `json:"due_date,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewLendingEvent stamps a new event with a fresh id.
func NewLendingEvent(action lending.Action, bookID, userID string, due *time.Time, at time.Time) LendingEvent {
	return LendingEvent{
		EventID:    uuid.New(),
		Action:     action,
		BookID:     bookID,
		UserID:     userID,
		DueDate:    due,
		OccurredAt: at.UTC(),
	}
}

// RoutingKey is the topic the event is published under.
func (e LendingEvent) RoutingKey() string {
	return "lending." + string(e.Action)
}

// Publisher delivers lending events. Delivery is best effort; callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event LendingEvent) error
	Close() error
}

// LogPublisher writes events to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event LendingEvent) error {
	p.logger.Info("lending event",
		zap.String("event_id", event.EventID.String()),
		zap.String("routing_key", event.RoutingKey()),
		zap.String("book_id", event.BookID),
		zap.String("user_id", event.UserID),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// AMQPPublisher publishes events as persistent JSON messages to a durable
// topic exchange.
type AMQPPublisher struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish sends event, reconnecting once if the channel was closed.
func (p *AMQPPublisher) Publish(ctx context.Context, event LendingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		p.logger.Warn("broker channel closed, reconnecting")
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID.String(),
		Timestamp:    event.OccurredAt,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, event.RoutingKey(), false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.RoutingKey(), err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}
