package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange all board events are published to.
const ExchangeName = "taskboard.domain.events"

func declareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// RabbitMQPublisher publishes persistent JSON messages to the exchange.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewRabbitMQPublisher dials url and declares the exchange.
func NewRabbitMQPublisher(url string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(ch, ExchangeName); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("rabbitmq publisher connected", "exchange", ExchangeName)
	return &RabbitMQPublisher{conn: conn, channel: ch, exchange: ExchangeName, logger: logger}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	p.logger.Debug("event published", "routing_key", routingKey, "size", len(body))
	return nil
}

// IsClosed reports whether the broker connection has gone away.
func (p *RabbitMQPublisher) IsClosed() bool {
	return p.conn.IsClosed() || p.channel.IsClosed()
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("closing channel", "error", err)
	}
	return p.conn.Close()
}

// RabbitMQConsumerConfig configures a RabbitMQConsumer.
type RabbitMQConsumerConfig struct {
	URL   string
	Queue string
	// Durable keeps the queue across consumer restarts. A non-durable queue
	// is exclusive and auto-deleted, which suits ad-hoc tailing.
	Durable bool
	Logger  *slog.Logger
}

// RabbitMQConsumer binds a queue to the exchange for every pattern in its
// registry and dispatches deliveries to it.
type RabbitMQConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	registry *Registry
	logger   *slog.Logger
}

// NewRabbitMQConsumer dials, declares the queue and binds the registry's
// patterns. Handlers must be registered before calling it.
func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig, registry *Registry) (*RabbitMQConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	patterns := registry.Patterns()
	if len(patterns) == 0 {
		return nil, errors.New("rabbitmq consumer: no handlers registered")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) (*RabbitMQConsumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := declareExchange(ch, ExchangeName); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, cfg.Durable, !cfg.Durable, !cfg.Durable, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	for _, p := range patterns {
		if err := ch.QueueBind(q.Name, p, ExchangeName, false, nil); err != nil {
			return fail("bind "+p, err)
		}
	}

	cfg.Logger.Info("rabbitmq consumer connected", "queue", q.Name, "patterns", patterns)
	return &RabbitMQConsumer{conn: conn, channel: ch, queue: q.Name, registry: registry, logger: cfg.Logger}, nil
}

// Start consumes until ctx is cancelled or the broker closes the channel.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

func (c *RabbitMQConsumer) deliver(ctx context.Context, d amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Error("discarding undecodable delivery", "routing_key", d.RoutingKey, "error", err)
		_ = d.Ack(false)
		return
	}
	if event.RoutingKey == "" {
		event.RoutingKey = d.RoutingKey
	}

	if err := c.registry.Dispatch(ctx, &event); err != nil {
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func (c *RabbitMQConsumer) Close() error {
	if err := c.channel.Close(); err != nil {
		c.logger.Warn("closing channel", "error", err)
	}
	return c.conn.Close()
}
