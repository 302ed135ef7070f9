package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

type accountRepo interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
	GetByOwnerAndType(ctx context.Context, owner uuid.UUID, accountType domain.AccountType) (*domain.Account, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]domain.Account, error)
	UpdateStatus(ctx context.Context, number string, status domain.AccountStatus, expectedVersion int64) (*domain.Account, error)
	GetForMutation(ctx context.Context, tx *sql.Tx, number string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, number string, newBalance decimal.Decimal, expectedVersion int64, reference string) (*domain.Account, error)
	GetMutation(ctx context.Context, tx *sql.Tx, number, reference string, kind domain.MutationKind) (*domain.AccountMutation, error)
	CreateMutation(ctx context.Context, tx *sql.Tx, m *domain.AccountMutation) error
	ListMutations(ctx context.Context, number, reference string) ([]domain.AccountMutation, error)
}

type sequenceAllocator interface {
	Next(ctx context.Context) (int64, error)
}

type AccountPolicy struct {
	NumberPrefix         string
	MinActivationBalance decimal.Decimal
}

type AccountService struct {
	accounts  accountRepo
	sequences sequenceAllocator
	db        *sql.DB
	policy    AccountPolicy
}

func NewAccountService(accounts accountRepo, sequences sequenceAllocator, db *sql.DB, policy AccountPolicy) *AccountService {
	return &AccountService{accounts: accounts, sequences: sequences, db: db, policy: policy}
}

func (s *AccountService) CreateAccount(ctx context.Context, owner uuid.UUID, accountType domain.AccountType) (*domain.Account, error) {
	log := logging.FromContext(ctx)

	if !accountType.IsValid() {
		return nil, fmt.Errorf("CreateAccount: %w", domain.ErrInvalidAccountType)
	}

	_, err := s.accounts.GetByOwnerAndType(ctx, owner, accountType)
	if err == nil {
		return nil, fmt.Errorf("CreateAccount: %w", domain.ErrAccountExists)
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("CreateAccount: check existing: %w", err)
	}

	seq, err := s.sequences.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:               uuid.New(),
		AccountNumber:    FormatAccountNumber(s.policy.NumberPrefix, seq),
		OwnerUserID:      owner,
		AccountType:      accountType,
		Status:           domain.AccountStatusPending,
		AvailableBalance: decimal.Zero,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	log.Info("account created",
		"account_number", account.AccountNumber,
		"owner_user_id", owner,
		"account_type", accountType,
	)

	return account, nil
}

func FormatAccountNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%07d", prefix, seq)
}

func (s *AccountService) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	account, err := s.accounts.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return account, nil
}

func (s *AccountService) GetBalance(ctx context.Context, number string) (decimal.Decimal, error) {
	account, err := s.accounts.GetByNumber(ctx, number)
	if err != nil {
		return decimal.Zero, fmt.Errorf("GetBalance: %w", err)
	}
	return account.AvailableBalance, nil
}

func (s *AccountService) ListByOwner(ctx context.Context, owner uuid.UUID) ([]domain.Account, error) {
	accounts, err := s.accounts.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	return accounts, nil
}

// UpdateStatus moves the account through its state machine. The write is
// conditional on the version read, so a concurrent balance change surfaces as
// ErrVersionConflict instead of closing an account that just got funded.
func (s *AccountService) UpdateStatus(ctx context.Context, number string, target domain.AccountStatus) (*domain.Account, error) {
	log := logging.FromContext(ctx)

	if !target.IsValid() {
		return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrInvalidStatus)
	}

	account, err := s.accounts.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}

	if err := account.TransitionTo(target, s.policy.MinActivationBalance); err != nil {
		return nil, fmt.Errorf("UpdateStatus: %s -> %s: %w", account.Status, target, err)
	}

	updated, err := s.accounts.UpdateStatus(ctx, number, target, account.Version)
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}

	log.Info("account status changed",
		"account_number", number,
		"from", account.Status,
		"to", target,
	)

	return updated, nil
}

func (s *AccountService) CloseAccount(ctx context.Context, number string) (*domain.Account, error) {
	return s.UpdateStatus(ctx, number, domain.AccountStatusClosed)
}

// ApplyMutation sets a new balance on behalf of a saga step. It is a no-op
// when the same (reference, kind) was already applied to the account.
func (s *AccountService) ApplyMutation(ctx context.Context, number string, m domain.BalanceMutation) (*domain.MutationResult, error) {
	log := logging.FromContext(ctx)

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("ApplyMutation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ApplyMutation: begin tx: %w", err)
	}
	defer tx.Rollback()

	account, err := s.accounts.GetForMutation(ctx, tx, number)
	if err != nil {
		return nil, fmt.Errorf("ApplyMutation: %w", err)
	}

	_, err = s.accounts.GetMutation(ctx, tx, number, m.Reference, m.Kind)
	if err == nil {
		log.Info("balance mutation already applied",
			"account_number", number,
			"reference", m.Reference,
			"kind", m.Kind,
		)
		return &domain.MutationResult{Account: account, Applied: false}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("ApplyMutation: check applied: %w", err)
	}

	if m.Kind == domain.MutationDebit && account.Status != domain.AccountStatusActive {
		return nil, fmt.Errorf("ApplyMutation: %w", domain.ErrAccountNotActive)
	}

	if account.Version != m.ExpectedVersion {
		return nil, fmt.Errorf("ApplyMutation: expected version %d, have %d: %w",
			m.ExpectedVersion, account.Version, domain.ErrVersionConflict)
	}

	delta := m.NewBalance.Sub(account.AvailableBalance)
	if !directionAllowed(m.Kind, delta) {
		return nil, fmt.Errorf("ApplyMutation: %s of %s: %w", m.Kind, delta, domain.ErrInvalidRequest)
	}

	updated, err := s.accounts.UpdateBalance(ctx, tx, number, m.NewBalance, m.ExpectedVersion, m.Reference)
	if err != nil {
		return nil, fmt.Errorf("ApplyMutation: %w", err)
	}

	mutation := &domain.AccountMutation{
		ID:            uuid.New(),
		AccountNumber: number,
		Reference:     m.Reference,
		Kind:          m.Kind,
		Amount:        delta,
		BalanceAfter:  m.NewBalance,
		AppliedAt:     time.Now().UTC(),
	}
	if err := s.accounts.CreateMutation(ctx, tx, mutation); err != nil {
		return nil, fmt.Errorf("ApplyMutation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ApplyMutation: commit: %w", err)
	}

	log.Info("balance mutated",
		"account_number", number,
		"reference", m.Reference,
		"kind", m.Kind,
		"amount", delta.String(),
		"version", updated.Version,
	)

	return &domain.MutationResult{Account: updated, Applied: true}, nil
}

// Debits only take money out and credits only put it in. Reversals go
// either way since they undo one of the two.
func directionAllowed(kind domain.MutationKind, delta decimal.Decimal) bool {
	switch kind {
	case domain.MutationDebit:
		return !delta.IsPositive()
	case domain.MutationCredit:
		return !delta.IsNegative()
	}
	return true
}

func (s *AccountService) ListMutations(ctx context.Context, number, reference string) ([]domain.AccountMutation, error) {
	if _, err := s.accounts.GetByNumber(ctx, number); err != nil {
		return nil, fmt.Errorf("ListMutations: %w", err)
	}
	mutations, err := s.accounts.ListMutations(ctx, number, reference)
	if err != nil {
		return nil, fmt.Errorf("ListMutations: %w", err)
	}
	return mutations, nil
}
