package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

const transferColumns = `reference, from_account, to_account, amount, status,
	transfer_type, failure_reason, transferred_on`

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// CreateWithEvent stores the record and its outbox event atomically. When a
// record already exists for the reference, nothing is written and the stored
// record is returned with created=false.
func (r *TransferRepository) CreateWithEvent(ctx context.Context, t *domain.TransferRecord, event *domain.OutboxEvent) (*domain.TransferRecord, bool, error) {
	var stored *domain.TransferRecord
	created := false

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO transfers (
				reference, from_account, to_account, amount, status,
				transfer_type, failure_reason, transferred_on
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (reference) DO NOTHING
			RETURNING `+transferColumns,
			t.Reference, nullString(t.FromAccount), nullString(t.ToAccount), t.Amount,
			t.Status, t.Type, t.FailureReason, t.TransferredOn,
		)
		rec, err := scanTransfer(row)
		if errors.Is(err, sql.ErrNoRows) {
			stored, err = getTransfer(ctx, tx, t.Reference)
			return err
		}
		if err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}

		if event != nil {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO outbox_events (id, aggregate_id, event_type, payload, status, attempts, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				event.ID, event.AggregateID, event.EventType, string(event.Payload),
				event.Status, event.Attempts, event.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert outbox event: %w", err)
			}
		}

		stored, created = rec, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("CreateWithEvent: %w", err)
	}
	return stored, created, nil
}

func (r *TransferRepository) GetByReference(ctx context.Context, reference string) (*domain.TransferRecord, error) {
	t, err := getTransfer(ctx, r.db, reference)
	if err != nil {
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return t, nil
}

// ListByAccount returns transfers on either side of accountID in insertion order.
func (r *TransferRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.TransferRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers
		WHERE from_account = $1 OR to_account = $1 ORDER BY seq`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	transfers := []domain.TransferRecord{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return transfers, nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTransfer(ctx context.Context, q rowQueryer, reference string) (*domain.TransferRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE reference = $1`, reference,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, err
	}
	return t, nil
}

func scanTransfer(s scanner) (*domain.TransferRecord, error) {
	var t domain.TransferRecord
	var from, to, reason sql.NullString
	err := s.Scan(
		&t.Reference, &from, &to, &t.Amount, &t.Status,
		&t.Type, &reason, &t.TransferredOn,
	)
	if err != nil {
		return nil, err
	}
	t.FromAccount = from.String
	t.ToAccount = to.String
	if reason.Valid {
		t.FailureReason = &reason.String
	}
	return &t, nil
}
