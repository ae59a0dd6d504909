package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Change event types, mirroring the row operation that produced them.
const (
	EventInsert = "insert"
	EventUpdate = "update"
)

// ChangeEvent is one row-level change published to the change feed.
// Subscribers bind on routing key "<table>.<event>".
type ChangeEvent struct {
	Table      string      `json:"table"`
	Event      string      `json:"event"`
	Row        interface{} `json:"row"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher publishes row change events to a RabbitMQ topic exchange.
// Dashboard clients subscribe per table and event type to refresh live
// views without polling.
type Publisher struct {
	conn     *Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher creates a new change-feed publisher
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// PublishChange publishes one row change keyed by table and event type
func (p *Publisher) PublishChange(ctx context.Context, table, event string, row interface{}) error {
	change := ChangeEvent{
		Table:      table,
		Event:      event,
		Row:        row,
		OccurredAt: time.Now(),
	}

	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	routingKey := table + "." + event
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	p.logger.Debug("published change event",
		zap.String("routing_key", routingKey),
		zap.String("table", table),
		zap.String("event", event),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
