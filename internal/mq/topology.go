package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeDeltas Exchange = "initdaemon.deltas"
	ExchangeSteps  Exchange = "initdaemon.steps"
	ExchangeDLQ    Exchange = "initdaemon.dlq"
)

// Queues — имена очередей.
const (
	QueueDeltasInbox Queue = "deltas.inbox"
	QueueDLQDeltas   Queue = "dlq.deltas"
)

// Routing keys.
const (
	RoutingKeyDelta         RoutingKey = "delta"
	RoutingKeyStatusChanged RoutingKey = "status_changed"
	RoutingKeyDLQDeltas     RoutingKey = "deltas"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Операции идемпотентны: повторный вызов с теми же параметрами безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeDeltas, amqp.ExchangeDirect},
		// подписчики на смены статуса привязывают свои очереди сами
		{ExchangeSteps, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// некорректные уведомления уходят в DLQ
		{QueueDeltasInbox, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQDeltas),
		}},
		{QueueDLQDeltas, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueDeltasInbox, RoutingKeyDelta, ExchangeDeltas},
		{QueueDLQDeltas, RoutingKeyDLQDeltas, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  initdaemon RabbitMQ topology:

    initdaemon.deltas (direct)
    └── deltas.inbox [routing: delta]
            Consumer: initdaemon (IngestDelta)
            DLQ: dlq.deltas

    initdaemon.steps (topic)
        routing: status_changed — смены статуса шагов

    initdaemon.dlq (direct)
    └── dlq.deltas [routing: deltas]
            Manual processing
`
}
