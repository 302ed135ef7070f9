package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeSavings      AccountType = "SAVINGS"
	AccountTypeCurrent      AccountType = "CURRENT"
	AccountTypeFixedDeposit AccountType = "FIXED_DEPOSIT"
)

func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeSavings, AccountTypeCurrent, AccountTypeFixedDeposit:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountStatusPending AccountStatus = "PENDING"
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusClosed  AccountStatus = "CLOSED"
)

func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusPending, AccountStatusActive, AccountStatusClosed:
		return true
	}
	return false
}

type Account struct {
	ID                   uuid.UUID
	AccountNumber        string
	OwnerUserID          uuid.UUID
	AccountType          AccountType
	Status               AccountStatus
	AvailableBalance     decimal.Decimal
	Version              int64
	LastAppliedReference *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TransitionTo checks whether the account may move to target. It does not
// mutate the account.
func (a *Account) TransitionTo(target AccountStatus, minimumBalance decimal.Decimal) error {
	switch target {
	case AccountStatusActive:
		if a.Status == AccountStatusActive {
			return ErrAccountAlreadyActive
		}
		if a.AvailableBalance.LessThan(minimumBalance) {
			return ErrBelowMinimumBalance
		}
		return nil
	case AccountStatusPending:
		if a.Status != AccountStatusActive {
			return ErrInvalidStatusTransition
		}
		return nil
	case AccountStatusClosed:
		if a.Status == AccountStatusClosed {
			return ErrAccountAlreadyClosed
		}
		if !a.AvailableBalance.IsZero() {
			return ErrNonZeroBalance
		}
		return nil
	default:
		return ErrInvalidStatus
	}
}

type MutationKind string

const (
	MutationDebit    MutationKind = "DEBIT"
	MutationCredit   MutationKind = "CREDIT"
	MutationReversal MutationKind = "REVERSAL"
)

func (k MutationKind) IsValid() bool {
	switch k {
	case MutationDebit, MutationCredit, MutationReversal:
		return true
	}
	return false
}

// BalanceMutation is a request to set an account's balance. The caller
// computes NewBalance from the version it read; the write is rejected if the
// account has moved on since.
type BalanceMutation struct {
	Reference       string
	Kind            MutationKind
	NewBalance      decimal.Decimal
	ExpectedVersion int64
}

// Validate applies the rules that do not need the stored account.
func (m BalanceMutation) Validate() error {
	if len(m.Reference) == 0 || len(m.Reference) > MaxReferenceLength {
		return ErrInvalidReference
	}
	if !m.Kind.IsValid() {
		return ErrInvalidRequest
	}
	if m.NewBalance.IsNegative() {
		return ErrNegativeBalance
	}
	if !InScale(m.NewBalance) {
		return ErrInvalidAmount
	}
	return nil
}

// AccountMutation is one applied balance change. (AccountNumber, Reference,
// Kind) is unique, which is what makes replays of a mutation a no-op.
type AccountMutation struct {
	ID            uuid.UUID
	AccountNumber string
	Reference     string
	Kind          MutationKind
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	AppliedAt     time.Time
}

type MutationResult struct {
	Account *Account
	Applied bool
}
