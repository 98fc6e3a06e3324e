package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/slot-booking/internal/logger"
)

// Notifier delivers a reservation event to the people involved.
type Notifier interface {
	Notify(ctx context.Context, ev ReservationEvent) error
}

// LogNotifier records each event in the structured log. It stands in for a
// push or mail channel.
type LogNotifier struct {
	Log *logger.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, ev ReservationEvent) error {
	n.Log.Info("reservation notification",
		"event_id", ev.ID,
		"type", string(ev.Type),
		"reservation_id", ev.ReservationID,
		"user_id", ev.UserID,
		"slot_id", ev.SlotID,
		"status", string(ev.Status),
		"previous_status", string(ev.PreviousStatus),
		"actor", ev.Actor,
		"occurred_at", ev.OccurredAt.Format(time.RFC3339),
	)
	return nil
}

// Consumer reads reservation events from a durable RabbitMQ queue.
type Consumer struct {
	url      string
	queue    string
	notifier Notifier
	log      *logger.Logger
}

// NewConsumer returns a consumer for queue on the broker at url.
func NewConsumer(url, queue string, notifier Notifier, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Discard()
	}
	return &Consumer{url: url, queue: queue, notifier: notifier, log: log}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff whenever the broker is unreachable or the delivery
// stream ends.
func (c *Consumer) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second

	for {
		conn, err := amqp.Dial(c.url)
		if err == nil {
			b.Reset()
			err = c.consume(ctx, conn)
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.NextBackOff()
		c.log.Warn("event consumer disconnected", "error", err, "retry_in", wait.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("event consumer qos failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.log.Warn("event consumer rejected message", "message_id", d.MessageId, "error", err)
				// no requeue, a poison message would loop forever
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and passes it to the notifier.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ReservationID == 0 || ev.Type == "" {
		return errors.New("event missing reservation id or type")
	}
	return c.notifier.Notify(ctx, ev)
}
