package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

// RedisPublisher appends events to a Redis stream. The stream is trimmed
// approximately to maxLen entries.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_id":     event.ID.String(),
			"event_type":   string(event.EventType),
			"aggregate_id": event.AggregateID,
			"payload":      string(event.Payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("RedisPublisher.Publish: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
