package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"matchroom-service/internal/models"
	"matchroom-service/internal/telemetry"
)

const appID = "matchroom-service"

// ErrConnectionClosed is returned once the broker has closed the connection.
var ErrConnectionClosed = errors.New("rabbitmq connection closed")

// Publisher publishes audit, notification and websocket events to a topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	PublishJSON(ctx context.Context, routingKey string, event interface{}, headers map[string]string) error
	Close() error
}

// NewPublisher connects to RabbitMQ and declares exchange. Any failure, or an
// empty url, yields a publisher that only logs.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		return fallback("empty amqp url")
	}
	p, err := dial(amqpURL, exchange)
	if err != nil {
		return fallback(err.Error())
	}
	log.Printf("rabbitmq connected exchange=%s", exchange)
	return p
}

func fallback(reason string) noopPublisher {
	log.Printf("rabbitmq disabled, using noop: %s", reason)
	return noopPublisher{reason: reason}
}

func dial(amqpURL, exchange string) (*amqpPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// durable topic exchange, not auto-deleted
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go p.watch(closed)
	return p, nil
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	mu     sync.Mutex
	closed bool
}

func (p *amqpPublisher) watch(closed <-chan *amqp.Error) {
	if err, ok := <-closed; ok && err != nil {
		log.Printf("rabbitmq connection lost: %v", err)
	}
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishJSON(ctx, routingKey, event, nil)
}

func (p *amqpPublisher) PublishJSON(ctx context.Context, routingKey string, event interface{}, headers map[string]string) error {
	msg, err := newPublishing(event, headers)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrConnectionClosed
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		log.Printf("rabbitmq publish failed routing_key=%s: %v", routingKey, err)
		return err
	}
	return nil
}

func newPublishing(event any, headers map[string]string) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event: %w", err)
	}
	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		AppId:        appID,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         body,
	}, nil
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

type noopPublisher struct {
	reason string
}

func (n noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return n.PublishJSON(ctx, routingKey, event, nil)
}

func (noopPublisher) PublishJSON(_ context.Context, routingKey string, event interface{}, _ map[string]string) error {
	log.Printf("rabbitmq noop publish routing_key=%s %s", routingKey, describe(event))
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

func describe(event any) string {
	switch e := event.(type) {
	case telemetry.AuditEnvelope:
		return fmt.Sprintf("event_type=%s service=%s request_id=%s", e.EventType, e.Service, e.RequestID)
	case models.Notification:
		return fmt.Sprintf("kind=%s match_id=%d team_id=%d", e.Kind, e.MatchID, e.RecipientTeamID)
	default:
		return fmt.Sprintf("type=%T", event)
	}
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

func PublisherNoopReason(p Publisher) string {
	if publisher, ok := p.(noopPublisher); ok {
		return publisher.reason
	}
	return ""
}
