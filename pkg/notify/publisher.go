// Package notify publishes fire-and-forget generation events to RabbitMQ.
// The portal notifier and activity log consume them; a publish failure never
// fails the generation that triggered it.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"creatorlab/pkg/domain"
)

// Event kinds emitted by the generation service.
const (
	EventDocumentGenerated   = "document.generated"
	EventSectionsRegenerated = "document.sections_regenerated"
	EventJobFailed           = "generation.job_failed"
)

// Event is the payload published for each notification.
type Event struct {
	Kind         string              `json:"kind"`
	ClientID     string              `json:"clientId"`
	DocumentID   string              `json:"documentId,omitempty"`
	DocumentType domain.DocumentType `json:"documentType,omitempty"`
	JobID        string              `json:"jobId,omitempty"`
	Sections     []string            `json:"sections,omitempty"`
	Message      string              `json:"message,omitempty"`
	OccurredAt   time.Time           `json:"occurredAt"`
}

// Publisher emits events somewhere a consumer can see them.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// AMQPPublisher publishes events to a RabbitMQ fanout exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
}

// NewAMQPPublisher connects to RabbitMQ and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = "creatorlab.generation"
	}
	p := &AMQPPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := channel.ExchangeDeclare(p.exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return err
	}
	p.conn = conn
	p.channel = channel
	return nil
}

// Publish sends one event. Failures are logged and the connection is
// re-established on the next call.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("notify marshal failed", "kind", event.Kind, "err", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			slog.Warn("notify reconnect failed", "kind", event.Kind, "err", err)
			return
		}
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, event.Kind, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   event.OccurredAt,
		Body:        body,
	})
	if err != nil {
		slog.Warn("notify publish failed", "kind", event.Kind, "err", err)
		p.channel = nil
	}
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// NopPublisher drops all events. Used when no broker is configured and in
// tests that do not assert on notifications.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close() error                   { return nil }
