package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit          TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal       TransactionType = "WITHDRAWAL"
	TransactionTypeInternalTransfer TransactionType = "INTERNAL_TRANSFER"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeInternalTransfer:
		return true
	}
	return false
}

type TransactionStatus string

const TransactionStatusCompleted TransactionStatus = "COMPLETED"

const MaxReferenceLength = 64

type TransactionEntry struct {
	ID          uuid.UUID
	ReferenceID string
	AccountID   string
	Amount      decimal.Decimal
	Type        TransactionType
	Status      TransactionStatus
	Description string
	CreatedAt   time.Time
}

type BatchResult struct {
	ReferenceID string
	Entries     []TransactionEntry
	Created     bool
}

// ValidateBatch checks the shape of a batch before anything is written.
// Internal transfers must be exactly one debit and one credit that cancel out.
func ValidateBatch(referenceID string, entries []TransactionEntry) error {
	if len(referenceID) == 0 || len(referenceID) > MaxReferenceLength {
		return ErrInvalidReference
	}
	if len(entries) == 0 {
		return ErrInvalidBatch
	}

	sum := decimal.Zero
	internal := 0
	for _, e := range entries {
		if e.AccountID == "" || !e.Type.IsValid() || e.Amount.IsZero() {
			return ErrInvalidBatch
		}
		if !InScale(e.Amount) {
			return ErrInvalidAmount
		}
		if e.Type == TransactionTypeInternalTransfer {
			internal++
		}
		sum = sum.Add(e.Amount)
	}

	if internal > 0 {
		if internal != len(entries) || len(entries) != 2 || !sum.IsZero() {
			return ErrInvalidBatch
		}
		if entries[0].AccountID == entries[1].AccountID {
			return ErrInvalidBatch
		}
	}
	return nil
}

// SameEntries reports whether a stored batch matches a replayed one. Order,
// ids and timestamps are ignored.
func SameEntries(stored, replayed []TransactionEntry) bool {
	if len(stored) != len(replayed) {
		return false
	}
	used := make([]bool, len(stored))
	for _, r := range replayed {
		found := false
		for i, s := range stored {
			if used[i] {
				continue
			}
			if s.AccountID == r.AccountID && s.Type == r.Type && s.Amount.Equal(r.Amount) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
