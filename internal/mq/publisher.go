package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/initdaemon/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeStatusChanged MessageType = "step.status_changed"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// StatusChangedPayload — payload сообщения о смене статуса шага.
type StatusChangedPayload struct {
	Step string `json:"step"`
	IRI  string `json:"iri"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishStatusChanged публикует смену статуса шага.
// Подписчики: исполнители шагов, ожидающие своей очереди.
func (p *Publisher) PublishStatusChanged(ctx context.Context, change domain.StatusChange) error {
	return p.Publish(ctx, ExchangeSteps, RoutingKeyStatusChanged, statusChangedMessage(change))
}

func statusChangedMessage(change domain.StatusChange) *Message {
	at := change.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &Message{
		ID:   uuid.NewString(),
		Type: MessageTypeStatusChanged,
		Payload: StatusChangedPayload{
			Step: change.Step.Code,
			IRI:  change.Step.IRI,
			From: change.From.String(),
			To:   change.To.String(),
		},
		Timestamp: at,
	}
}
