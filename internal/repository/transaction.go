package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

const transactionColumns = `id, reference_id, account_id, amount, transaction_type,
	status, description, created_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// AppendBatch writes entries under referenceID in one transaction. The
// reference is claimed first; if it was already claimed the stored entries
// are returned unchanged when they match, and ErrReferenceMismatch otherwise.
func (r *TransactionRepository) AppendBatch(ctx context.Context, referenceID string, entries []domain.TransactionEntry) (*domain.BatchResult, error) {
	result := &domain.BatchResult{ReferenceID: referenceID}

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_batches (reference_id, entry_count) VALUES ($1, $2)
			ON CONFLICT (reference_id) DO NOTHING`,
			referenceID, len(entries),
		)
		if err != nil {
			return fmt.Errorf("claim reference: %w", err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim reference: rows affected: %w", err)
		}

		if claimed == 0 {
			existing, err := listByReference(ctx, tx, referenceID)
			if err != nil {
				return err
			}
			if !domain.SameEntries(existing, entries) {
				return domain.ErrReferenceMismatch
			}
			result.Entries = existing
			return nil
		}

		for i := range entries {
			e := &entries[i]
			e.ReferenceID = referenceID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO transactions (
					id, reference_id, account_id, amount, transaction_type, status, description
				) VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING created_at`,
				e.ID, e.ReferenceID, e.AccountID, e.Amount, e.Type, e.Status, e.Description,
			).Scan(&e.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert entry %d: %w", i, err)
			}
		}
		result.Entries = entries
		result.Created = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("AppendBatch: %w", err)
	}
	return result, nil
}

func (r *TransactionRepository) ListByReference(ctx context.Context, referenceID string) ([]domain.TransactionEntry, error) {
	entries, err := listByReference(ctx, r.db, referenceID)
	if err != nil {
		return nil, fmt.Errorf("ListByReference: %w", err)
	}
	return entries, nil
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.TransactionEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1 ORDER BY created_at, id`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	entries, err := collectTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	return entries, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listByReference(ctx context.Context, q queryer, referenceID string) ([]domain.TransactionEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE reference_id = $1 ORDER BY amount, account_id`, referenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list by reference: %w", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]domain.TransactionEntry, error) {
	defer rows.Close()

	entries := []domain.TransactionEntry{}
	for rows.Next() {
		e, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

func scanTransaction(s scanner) (*domain.TransactionEntry, error) {
	var e domain.TransactionEntry
	err := s.Scan(
		&e.ID, &e.ReferenceID, &e.AccountID, &e.Amount, &e.Type,
		&e.Status, &e.Description, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
