package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rickgao/jobportal-notify/internal/backoff"
	"github.com/rickgao/jobportal-notify/internal/config"
	"github.com/rickgao/jobportal-notify/internal/metrics"
	"github.com/rickgao/jobportal-notify/internal/protocol"
)

// HandlerFunc processes one event body.
type HandlerFunc func(ctx context.Context, routingKey string, body []byte) (protocol.ServerFrame, error)

// Consumer reads domain events from a topic exchange. It redials with
// backoff when the broker connection drops.
type Consumer struct {
	cfg     config.AMQPConfig
	handler HandlerFunc
	logger  *slog.Logger

	prefetch       int
	handlerTimeout time.Duration
}

// NewConsumer creates a Consumer that passes every delivery to handler.
func NewConsumer(cfg config.AMQPConfig, handler HandlerFunc, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:            cfg,
		handler:        handler,
		logger:         logger,
		prefetch:       16,
		handlerTimeout: 10 * time.Second,
	}
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	bo := backoff.Default()

	for {
		err := c.consumeOnce(ctx, bo)
		if ctx.Err() != nil {
			return nil
		}

		delay := bo.Next()
		c.logger.Warn("amqp consumer disconnected", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// consumeOnce runs one broker connection to completion.
func (c *Consumer) consumeOnce(ctx context.Context, bo *backoff.Backoff) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := c.declare(ch); err != nil {
		return err
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		c.cfg.Queue,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	bo.Reset()
	c.logger.Info("amqp consumer started",
		"exchange", c.cfg.Exchange,
		"queue", c.cfg.Queue,
		"routing_keys", c.cfg.RoutingKeys,
	)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) declare(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		c.cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		c.cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, key := range c.cfg.RoutingKeys {
		if err := ch.QueueBind(q.Name, key, c.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// process handles one delivery. Events that can never succeed are acked
// and dropped; transient failures are requeued.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	hctx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	defer cancel()

	_, err := c.handler(hctx, d.RoutingKey, d.Body)

	switch {
	case err == nil:
		metrics.EventsConsumed.WithLabelValues(d.RoutingKey, "ok").Inc()
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Warn("ack failed", "routing_key", d.RoutingKey, "error", ackErr)
		}
	case errors.Is(err, ErrUnknownEvent), errors.Is(err, ErrInvalidEvent):
		metrics.EventsConsumed.WithLabelValues(d.RoutingKey, "skipped").Inc()
		c.logger.Warn("dropping event", "routing_key", d.RoutingKey, "error", err)
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Warn("ack failed", "routing_key", d.RoutingKey, "error", ackErr)
		}
	default:
		metrics.EventsConsumed.WithLabelValues(d.RoutingKey, "error").Inc()
		c.logger.Error("event handler failed", "routing_key", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Warn("nack failed", "routing_key", d.RoutingKey, "error", nackErr)
		}
	}
}
