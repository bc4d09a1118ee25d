package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shaiso/initdaemon/internal/domain"
)

var errMalformed = errors.New("malformed")

// acker записывает подтверждения вместо брокера.
type acker struct {
	mu     sync.Mutex
	acked  []uint64
	nacked map[uint64]bool // tag → requeue
}

func newAcker() *acker {
	return &acker{nacked: make(map[uint64]bool)}
}

func (a *acker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *acker) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked[tag] = requeue
	return nil
}

func (a *acker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func newTestConsumer(handler Handler) *Consumer {
	return NewConsumer(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), ConsumerConfig{
		Queue:   QueueDeltasInbox,
		Handler: handler,
		Retryable: func(err error) bool {
			return !errors.Is(err, errMalformed)
		},
		RetryDelay: time.Millisecond,
	})
}

func TestProcessDeliveries(t *testing.T) {
	defer goleak.VerifyNone(t)

	var bodies []string
	c := newTestConsumer(func(_ context.Context, body []byte) error {
		bodies = append(bodies, string(body))
		switch string(body) {
		case "bad":
			return errMalformed
		case "store down":
			return errors.New("store unavailable")
		}
		return nil
	})

	ack := newAcker()
	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("[]")}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("bad")}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte("store down")}
	close(deliveries)

	err := c.processDeliveries(context.Background(), deliveries)
	assert.ErrorIs(t, err, errDeliveriesClosed)

	assert.Equal(t, []string{"[]", "bad", "store down"}, bodies)
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, map[uint64]bool{2: false, 3: true}, ack.nacked)
}

func TestProcessDeliveries_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestConsumer(func(context.Context, []byte) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- c.processDeliveries(ctx, make(chan amqp.Delivery))
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{Queue: QueueDeltasInbox})
	assert.Equal(t, 1, c.prefetch)
	assert.True(t, c.retryable(errors.New("any")))
	assert.Equal(t, time.Second, c.retryDelay)
	assert.Equal(t, 30*time.Second, c.maxRetryDelay)
}

func TestNextRetryDelay(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{
		Queue:         QueueDeltasInbox,
		RetryDelay:    time.Second,
		MaxRetryDelay: 5 * time.Second,
	})

	var got []time.Duration
	for i := 0; i < 5; i++ {
		got = append(got, c.nextRetryDelay())
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, got)
}

func TestHandleDelivery_BacksOffBeforeRequeue(t *testing.T) {
	defer goleak.VerifyNone(t)

	calls := 0
	c := NewConsumer(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), ConsumerConfig{
		Queue: QueueDeltasInbox,
		Handler: func(context.Context, []byte) error {
			calls++
			if calls < 3 {
				return errors.New("store unavailable")
			}
			return nil
		},
		RetryDelay: 40 * time.Millisecond,
	})

	ack := newAcker()
	ctx := context.Background()

	start := time.Now()
	c.handleDelivery(ctx, &Delivery{Raw: amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}})
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, map[uint64]bool{1: true}, ack.nacked)

	// вторая ошибка подряд ждёт вдвое дольше
	start = time.Now()
	c.handleDelivery(ctx, &Delivery{Raw: amqp.Delivery{Acknowledger: ack, DeliveryTag: 2}})
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	// успех сбрасывает счётчик
	c.handleDelivery(ctx, &Delivery{Raw: amqp.Delivery{Acknowledger: ack, DeliveryTag: 3}})
	assert.Equal(t, []uint64{3}, ack.acked)
	assert.Zero(t, c.failures)
}

func TestHandleDelivery_BackoffStopsOnCancel(t *testing.T) {
	c := NewConsumer(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), ConsumerConfig{
		Queue:      QueueDeltasInbox,
		Handler:    func(context.Context, []byte) error { return errors.New("store unavailable") },
		RetryDelay: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack := newAcker()
	start := time.Now()
	c.handleDelivery(ctx, &Delivery{Raw: amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, map[uint64]bool{1: true}, ack.nacked)
}

func TestStatusChangedMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := statusChangedMessage(domain.StatusChange{
		Step: domain.StepRef{IRI: "http://example.test/steps/a", Code: "a"},
		From: domain.StatusRunning,
		To:   domain.StatusDone,
		At:   at,
	})

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, MessageTypeStatusChanged, msg.Type)
	assert.Equal(t, at, msg.Timestamp)

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded struct {
		Type    string               `json:"type"`
		Payload StatusChangedPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "step.status_changed", decoded.Type)
	assert.Equal(t, StatusChangedPayload{
		Step: "a",
		IRI:  "http://example.test/steps/a",
		From: "running",
		To:   "done",
	}, decoded.Payload)
}
