package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/initdaemon/internal/telemetry"
)

// Handler — функция обработки тела сообщения.
type Handler func(ctx context.Context, body []byte) error

// Delivery — доставленное сообщение с методами ack/nack.
type Delivery struct {
	Raw amqp.Delivery
}

// Ack подтверждает успешную обработку сообщения.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение.
// requeue=true — вернуть в очередь, false — отправить в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Consumer потребляет сообщения из очереди RabbitMQ.
type Consumer struct {
	conn      *Connection
	logger    *slog.Logger
	queue     Queue
	handler   Handler
	retryable func(error) bool
	prefetch  int

	retryDelay    time.Duration
	maxRetryDelay time.Duration
	failures      int // ошибок подряд; доставки обрабатываются по одной
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Retryable решает, вернуть ли сообщение в очередь после ошибки.
	// false — сообщение уходит в DLQ. Default: все ошибки повторяемы.
	Retryable func(error) bool

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int

	// RetryDelay — пауза перед возвратом сообщения в очередь после
	// повторяемой ошибки. Удваивается с каждой ошибкой подряд до
	// MaxRetryDelay. Default: 1s, максимум 30s.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	maxRetryDelay := cfg.MaxRetryDelay
	if maxRetryDelay < retryDelay {
		maxRetryDelay = max(30*time.Second, retryDelay)
	}

	return &Consumer{
		conn:          conn,
		logger:        logger,
		queue:         cfg.Queue,
		handler:       cfg.Handler,
		retryable:     retryable,
		prefetch:      prefetch,
		retryDelay:    retryDelay,
		maxRetryDelay: maxRetryDelay,
	}
}

// Run потребляет сообщения до отмены ctx. После разрыва соединения ждёт
// переподключения и продолжает.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.queue, "error", err)
			if err := c.waitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started", "queue", c.queue)

		if err := c.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, reconnecting", "queue", c.queue)
			if err := c.waitReconnect(ctx); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) waitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
		return nil
	}
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (мы ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

// errDeliveriesClosed — брокер закрыл канал доставки.
var errDeliveriesClosed = errors.New("deliveries channel closed")

// processDeliveries обрабатывает сообщения из канала по одному.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handleDelivery(ctx, &Delivery{Raw: raw})
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, d *Delivery) {
	logger := telemetry.WithDeliveryID(c.logger, d.Raw.MessageId).With("queue", c.queue)

	err := c.handler(ctx, d.Raw.Body)
	switch {
	case err == nil:
		c.failures = 0
		telemetry.DeltaBatches.WithLabelValues("amqp", "ok").Inc()
		if ackErr := d.Ack(); ackErr != nil {
			logger.Warn("ack failed", "error", ackErr)
		}
	case c.retryable(err):
		telemetry.DeltaBatches.WithLabelValues("amqp", "error").Inc()
		delay := c.nextRetryDelay()
		logger.Error("handler failed, requeueing", "error", err, "delay", delay)
		c.backoff(ctx, delay)
		if nackErr := d.Nack(true); nackErr != nil {
			logger.Warn("nack failed", "error", nackErr)
		}
	default:
		telemetry.DeltaBatches.WithLabelValues("amqp", "rejected").Inc()
		logger.Warn("message rejected to DLQ", "error", err)
		if nackErr := d.Nack(false); nackErr != nil {
			logger.Warn("nack failed", "error", nackErr)
		}
	}
}

// nextRetryDelay возвращает паузу для очередной ошибки подряд.
func (c *Consumer) nextRetryDelay() time.Duration {
	delay := c.retryDelay
	for i := 0; i < c.failures && delay < c.maxRetryDelay; i++ {
		delay *= 2
	}
	c.failures++
	return min(delay, c.maxRetryDelay)
}

// backoff ждёт delay или отмены ctx.
func (c *Consumer) backoff(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
