package queue

import (
	"context"
	"fmt"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/logger"
)

// Publisher sends reservation events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev ReservationEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReservationEvent) error { return nil }
func (NopPublisher) Close() error                                    { return nil }

// NewPublisher returns the publisher selected by cfg.Kind.
func NewPublisher(cfg config.BrokerConfig, log *logger.Logger) (Publisher, error) {
	switch cfg.Kind {
	case "rabbitmq":
		return NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitQueue, log), nil
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case "", "none":
		return NopPublisher{}, nil
	}
	return nil, fmt.Errorf("unknown event broker %q", cfg.Kind)
}
