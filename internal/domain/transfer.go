package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferStatusPending TransferStatus = "PENDING"
	TransferStatusSuccess TransferStatus = "SUCCESS"
	TransferStatusFailed  TransferStatus = "FAILED"
)

type TransferType string

const (
	TransferTypeInternal TransferType = "INTERNAL"
	TransferTypeExternal TransferType = "EXTERNAL"
)

type TransferRecord struct {
	Reference     string
	FromAccount   string
	ToAccount     string
	Amount        decimal.Decimal
	Status        TransferStatus
	Type          TransferType
	FailureReason *string
	TransferredOn time.Time
}

// Matches reports whether a stored record describes the same movement as a
// replayed request.
func (t *TransferRecord) Matches(from, to string, amount decimal.Decimal) bool {
	return t.FromAccount == from && t.ToAccount == to && t.Amount.Equal(amount)
}

// MoneyScale is the number of decimal places balances and entries are stored
// with.
const MoneyScale = 2

// InScale reports whether d can be stored without rounding.
func InScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// ValidateAmount accepts positive amounts with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !InScale(amount) {
		return ErrInvalidAmount
	}
	return nil
}

type SagaStep string

const (
	StepDebit  SagaStep = "debit"
	StepCredit SagaStep = "credit"
	StepAppend SagaStep = "append"
	StepRecord SagaStep = "record"
)

// TransferFailure is returned once money may have moved. Reference is the key
// a caller or operator uses to retry or reconcile.
type TransferFailure struct {
	Reference   string
	Step        SagaStep
	Compensated bool
	Err         error
}

func (f *TransferFailure) Error() string {
	return fmt.Sprintf("transfer %s failed at %s (compensated=%t): %v", f.Reference, f.Step, f.Compensated, f.Err)
}

func (f *TransferFailure) Unwrap() []error {
	return []error{f.outcome(), f.Err}
}

func (f *TransferFailure) outcome() error {
	if f.Compensated {
		return ErrTransferFailed
	}
	return ErrTransferIncomplete
}
