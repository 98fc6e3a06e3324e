package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to one topic keyed by slot id, so every
// event for a slot lands on the same partition in commit order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic cannot be empty")
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}}, nil
}

// Publish writes ev synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, ev ReservationEvent) error {
	msg, err := kafkaMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func kafkaMessage(ev ReservationEvent) (kafka.Message, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(ev.SlotID, 10)),
		Value: body,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(ev.ID)},
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}, nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error { return p.writer.Close() }
