package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

const outboxColumns = `id, aggregate_id, event_type, payload, status, attempts, created_at, published_at`

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// ProcessPending claims up to limit pending events and hands each to fn.
// Rows are locked with SKIP LOCKED for the duration, so concurrent relays
// never publish the same event. An event whose fn fails has its attempt
// counted and is marked failed once it reaches maxAttempts.
func (r *OutboxRepository) ProcessPending(ctx context.Context, limit, maxAttempts int, fn func(domain.OutboxEvent) error) (published int, err error) {
	err = inTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+outboxColumns+` FROM outbox_events
			WHERE status = $1 ORDER BY created_at LIMIT $2
			FOR UPDATE SKIP LOCKED`,
			domain.OutboxStatusPending, limit,
		)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}

		var events []domain.OutboxEvent
		for rows.Next() {
			e, err := scanOutboxEvent(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("claim: scan: %w", err)
			}
			events = append(events, *e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("claim: rows: %w", err)
		}

		for _, e := range events {
			if pubErr := fn(e); pubErr != nil {
				status := domain.OutboxStatusPending
				if e.Attempts+1 >= maxAttempts {
					status = domain.OutboxStatusFailed
				}
				if err := markAttempt(ctx, tx, e.ID, status); err != nil {
					return err
				}
				continue
			}

			_, err := tx.ExecContext(ctx,
				`UPDATE outbox_events SET status = $1, attempts = attempts + 1, published_at = now()
				WHERE id = $2`,
				domain.OutboxStatusPublished, e.ID,
			)
			if err != nil {
				return fmt.Errorf("mark published: %w", err)
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ProcessPending: %w", err)
	}
	return published, nil
}

func markAttempt(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.OutboxStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE outbox_events SET status = $1, attempts = attempts + 1 WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("mark attempt: %w", err)
	}
	return nil
}

func scanOutboxEvent(s scanner) (*domain.OutboxEvent, error) {
	var e domain.OutboxEvent
	var payload []byte
	err := s.Scan(
		&e.ID, &e.AggregateID, &e.EventType, &payload,
		&e.Status, &e.Attempts, &e.CreatedAt, &e.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}
