// Package events delivers transfer events recorded in the outbox to a
// message broker.
package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/banking-core/internal/config"
	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

type Publisher interface {
	Publish(ctx context.Context, event domain.OutboxEvent) error
	Close() error
}

// New builds the publisher named by cfg.Backend.
func New(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("events.New: redis url: %w", err)
		}
		return NewRedisPublisher(redis.NewClient(opts), cfg.Stream, cfg.StreamMaxLen), nil
	case "rabbitmq":
		p, err := NewRabbitPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, fmt.Errorf("events.New: %w", err)
		}
		return p, nil
	case "log", "":
		return LogPublisher{}, nil
	default:
		return nil, fmt.Errorf("events.New: unknown backend %q", cfg.Backend)
	}
}

// LogPublisher writes events to the log. It is the default when no broker
// is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	logging.FromContext(ctx).Info("event published",
		"event_id", event.ID,
		"event_type", event.EventType,
		"aggregate_id", event.AggregateID,
		"payload", string(event.Payload),
	)
	return nil
}

func (LogPublisher) Close() error { return nil }
