// Package amqp publishes notification intents to a RabbitMQ topic exchange
// for the push delivery workers.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Mr-houngbo/Colit/internal/domain/notification"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "colit.notifications"

var ErrClosed = errors.New("amqp publisher closed")

var _ notification.Sender = (*Publisher)(nil)

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher implements notification.Sender over one AMQP channel.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	ch       channel
	exchange string
	closed   bool
	logger   zerolog.Logger
}

// Dial connects to the broker and declares the durable topic exchange.
func Dial(url, exchange string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p, err := newPublisher(ch, exchange, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger zerolog.Logger) (*Publisher, error) {
	if strings.TrimSpace(exchange) == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, err
	}
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "amqp_publisher").Str("exchange", exchange).Logger(),
	}, nil
}

// RoutingKey is "coli_space.<event type>" in lower case.
func RoutingKey(t notification.EventType) string {
	return "coli_space." + strings.ToLower(string(t))
}

// Send publishes the notification as a persistent JSON message.
func (p *Publisher) Send(ctx context.Context, n *notification.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    n.NotificationID.String(),
		Timestamp:    time.Now().UTC(),
		Type:         string(n.Type),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(n.Type), false, false, msg); err != nil {
		return err
	}
	p.logger.Debug().
		Str("notification_id", n.NotificationID.String()).
		Str("routing_key", RoutingKey(n.Type)).
		Msg("notification published")
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	if err := p.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
