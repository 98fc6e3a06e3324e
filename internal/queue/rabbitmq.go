package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/slot-booking/internal/logger"
)

// RabbitPublisher publishes events to a durable queue on the default
// exchange. The connection is opened on first use and re-opened after the
// broker drops it.
type RabbitPublisher struct {
	url   string
	queue string
	log   *logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitPublisher returns a publisher for queue on the broker at url.
func NewRabbitPublisher(url, queue string, log *logger.Logger) *RabbitPublisher {
	if log == nil {
		log = logger.Discard()
	}
	return &RabbitPublisher{url: url, queue: queue, log: log}
}

func (p *RabbitPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

// Publish sends ev as a persistent JSON message routed to the queue.
func (p *RabbitPublisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", "event_id", ev.ID, "error", err)
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close closes the channel and connection if open.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
