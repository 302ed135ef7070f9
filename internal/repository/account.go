package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

const accountColumns = `id, account_number, owner_user_id, account_type, status,
	available_balance, version, last_applied_reference, created_at, updated_at`

const mutationColumns = `id, account_number, reference, kind, amount, balance_after, applied_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (
			id, account_number, owner_user_id, account_type, status,
			available_balance, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.AccountNumber, a.OwnerUserID, a.AccountType, a.Status,
		a.AvailableBalance, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrAccountExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByNumber: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByNumber: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByOwnerAndType(ctx context.Context, owner uuid.UUID, accountType domain.AccountType) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_user_id = $1 AND account_type = $2`,
		owner, accountType,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOwnerAndType: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByOwnerAndType: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) ListByOwner(ctx context.Context, owner uuid.UUID) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_user_id = $1 ORDER BY created_at`, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByOwner: scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByOwner: rows: %w", err)
	}
	return accounts, nil
}

// GetForMutation reads the account inside tx without locking it. Writes that
// follow are guarded by the version read here.
func (r *AccountRepository) GetForMutation(ctx context.Context, tx *sql.Tx, number string) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForMutation: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetForMutation: %w", err)
	}
	return a, nil
}

// UpdateBalance writes the new balance only if the stored version still
// equals expectedVersion, and returns the updated row.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, number string, newBalance decimal.Decimal, expectedVersion int64, reference string) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`UPDATE accounts
		SET available_balance = $1, version = version + 1,
			last_applied_reference = $2, updated_at = now()
		WHERE account_number = $3 AND version = $4
		RETURNING `+accountColumns,
		newBalance, reference, number, expectedVersion,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("UpdateBalance: %w", domain.ErrVersionConflict)
		}
		if isCheckViolation(err) {
			return nil, fmt.Errorf("UpdateBalance: %w", domain.ErrNegativeBalance)
		}
		return nil, fmt.Errorf("UpdateBalance: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, number string, status domain.AccountStatus, expectedVersion int64) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE accounts SET status = $1, version = version + 1, updated_at = now()
		WHERE account_number = $2 AND version = $3
		RETURNING `+accountColumns,
		status, number, expectedVersion,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrVersionConflict)
		}
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetMutation(ctx context.Context, tx *sql.Tx, number, reference string, kind domain.MutationKind) (*domain.AccountMutation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+mutationColumns+` FROM account_mutations
		WHERE account_number = $1 AND reference = $2 AND kind = $3`,
		number, reference, kind,
	)
	m, err := scanMutation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetMutation: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetMutation: %w", err)
	}
	return m, nil
}

func (r *AccountRepository) CreateMutation(ctx context.Context, tx *sql.Tx, m *domain.AccountMutation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_mutations (`+mutationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.AccountNumber, m.Reference, m.Kind, m.Amount, m.BalanceAfter, m.AppliedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("CreateMutation: %w", domain.ErrVersionConflict)
		}
		return fmt.Errorf("CreateMutation: %w", err)
	}
	return nil
}

func (r *AccountRepository) ListMutations(ctx context.Context, number, reference string) ([]domain.AccountMutation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mutationColumns+` FROM account_mutations
		WHERE account_number = $1 AND reference = $2 ORDER BY applied_at`,
		number, reference,
	)
	if err != nil {
		return nil, fmt.Errorf("ListMutations: %w", err)
	}
	defer rows.Close()

	mutations := []domain.AccountMutation{}
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, fmt.Errorf("ListMutations: scan: %w", err)
		}
		mutations = append(mutations, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListMutations: rows: %w", err)
	}
	return mutations, nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	var lastRef sql.NullString
	err := s.Scan(
		&a.ID, &a.AccountNumber, &a.OwnerUserID, &a.AccountType, &a.Status,
		&a.AvailableBalance, &a.Version, &lastRef, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastRef.Valid {
		a.LastAppliedReference = &lastRef.String
	}
	return &a, nil
}

func scanMutation(s scanner) (*domain.AccountMutation, error) {
	var m domain.AccountMutation
	err := s.Scan(
		&m.ID, &m.AccountNumber, &m.Reference, &m.Kind,
		&m.Amount, &m.BalanceAfter, &m.AppliedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
