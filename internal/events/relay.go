package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

type outboxRepo interface {
	ProcessPending(ctx context.Context, limit, maxAttempts int, fn func(domain.OutboxEvent) error) (int, error)
}

// Relay polls the outbox and publishes what it finds. Delivery is at least
// once: a crash after publishing but before the commit republishes the event.
type Relay struct {
	outbox      outboxRepo
	publisher   Publisher
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewRelay(outbox outboxRepo, publisher Publisher, logger *slog.Logger, interval time.Duration, batchSize, maxAttempts int) *Relay {
	return &Relay{
		outbox:      outbox,
		publisher:   publisher,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("outbox relay started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Relay) poll(ctx context.Context) int {
	published, err := r.outbox.ProcessPending(ctx, r.batchSize, r.maxAttempts, func(e domain.OutboxEvent) error {
		if err := r.publisher.Publish(ctx, e); err != nil {
			r.logger.Warn("failed to publish event",
				"event_id", e.ID,
				"event_type", e.EventType,
				"attempts", e.Attempts+1,
				"error", err,
			)
			return err
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to process outbox", "error", err)
		return 0
	}
	if published > 0 {
		r.logger.Debug("outbox events published", "count", published)
	}
	return published
}
