package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/pkg/config"
)

const publishTimeout = 5 * time.Second

// Publisher emits domain events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}

// Envelope wraps every published payload.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// Encode renders an envelope for routingKey.
func Encode(id, routingKey string, payload interface{}, at time.Time) ([]byte, error) {
	body, err := json.Marshal(Envelope{ID: id, Type: routingKey, OccurredAt: at.UTC(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", routingKey, err)
	}
	return body, nil
}

// RabbitMQPublisher publishes persistent JSON messages to a topic exchange.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewRabbitMQPublisher dials the broker and declares the exchange. When cfg.Queue is set
// a durable queue is bound to every routing key so events survive without consumers.
func NewRabbitMQPublisher(cfg config.RabbitMQConfig, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := channel.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if cfg.Queue != "" {
		queue, err := channel.QueueDeclare(cfg.Queue, true, false, false, false, nil)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
		}
		if err := channel.QueueBind(queue.Name, "#", cfg.Exchange, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
		}
	}

	logger.Info("connected to rabbitmq", zap.String("exchange", cfg.Exchange), zap.String("queue", cfg.Queue))
	return &RabbitMQPublisher{conn: conn, channel: channel, exchange: cfg.Exchange, logger: logger}, nil
}

// Publish sends payload under routingKey. amqp channels are not safe for concurrent
// publishing, so calls are serialised.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	now := time.Now()
	body, err := Encode(uuid.NewString(), routingKey, payload, now)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(publishCtx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	p.logger.Debug("event published", zap.String("routing_key", routingKey))
	return nil
}

// Close shuts the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("close rabbitmq channel", zap.Error(err))
	}
	return p.conn.Close()
}

// NopPublisher drops events. It stands in when the broker is disabled.
type NopPublisher struct {
	Logger *zap.Logger
}

// Publish logs and discards the event.
func (p NopPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	if p.Logger != nil {
		p.Logger.Debug("broker disabled, event dropped", zap.String("routing_key", routingKey))
	}
	return nil
}

// Close is a no-op.
func (NopPublisher) Close() error { return nil }
