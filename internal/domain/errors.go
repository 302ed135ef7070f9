package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindPreconditionFailed
	KindUnavailable
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindUnavailable:
		return "unavailable"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Error is a classified failure with a code that is stable across the wire.
// Sentinels are compared by identity, so wrap them with %w and test with errors.Is.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var registry = map[string]*Error{}

func newError(kind ErrorKind, code, message string) *Error {
	if _, dup := registry[code]; dup {
		panic(fmt.Sprintf("domain: duplicate error code %s", code))
	}
	e := &Error{Kind: kind, Code: code, Message: message}
	registry[code] = e
	return e
}

var (
	ErrNotFound         = newError(KindNotFound, "RESOURCE_NOT_FOUND", "resource not found")
	ErrAccountNotFound  = newError(KindNotFound, "ACCOUNT_NOT_FOUND", "account not found")
	ErrTransferNotFound = newError(KindNotFound, "TRANSFER_NOT_FOUND", "transfer not found")

	ErrAccountExists     = newError(KindConflict, "ACCOUNT_ALREADY_EXISTS", "account of this type already exists for owner")
	ErrVersionConflict   = newError(KindConflict, "VERSION_CONFLICT", "resource was modified concurrently")
	ErrReferenceMismatch = newError(KindConflict, "REFERENCE_MISMATCH", "reference already used with different entries")
	ErrReferenceReused   = newError(KindConflict, "REFERENCE_REUSED", "reference already used for a different transfer")

	ErrAccountNotActive        = newError(KindPreconditionFailed, "ACCOUNT_NOT_ACTIVE", "account is not active")
	ErrAccountAlreadyActive    = newError(KindPreconditionFailed, "ACCOUNT_ALREADY_ACTIVE", "account is already active")
	ErrAccountAlreadyClosed    = newError(KindPreconditionFailed, "ACCOUNT_ALREADY_CLOSED", "account is already closed")
	ErrBelowMinimumBalance     = newError(KindPreconditionFailed, "BELOW_MINIMUM_BALANCE", "balance is below the minimum required for activation")
	ErrNonZeroBalance          = newError(KindPreconditionFailed, "NON_ZERO_BALANCE", "balance must be zero to close the account")
	ErrInsufficientFunds       = newError(KindPreconditionFailed, "INSUFFICIENT_FUNDS", "insufficient funds")
	ErrNegativeBalance         = newError(KindPreconditionFailed, "NEGATIVE_BALANCE", "balance cannot become negative")
	ErrInvalidStatusTransition = newError(KindPreconditionFailed, "INVALID_STATUS_TRANSITION", "status transition not allowed")
	ErrTransferFailed          = newError(KindPreconditionFailed, "TRANSFER_FAILED", "transfer failed and was reversed")

	ErrServiceUnavailable  = newError(KindUnavailable, "SERVICE_UNAVAILABLE", "downstream service unavailable")
	ErrSequenceUnavailable = newError(KindUnavailable, "SEQUENCE_UNAVAILABLE", "sequence allocator unavailable")
	ErrTransferIncomplete  = newError(KindUnavailable, "TRANSFER_INCOMPLETE", "transfer did not complete, retry with the same reference")

	ErrInvalidRequest     = newError(KindInvalid, "INVALID_REQUEST", "invalid request")
	ErrInvalidAmount      = newError(KindInvalid, "INVALID_AMOUNT", "amount must be positive with at most two decimal places")
	ErrSelfTransfer       = newError(KindInvalid, "SELF_TRANSFER", "cannot transfer to the same account")
	ErrInvalidBatch       = newError(KindInvalid, "INVALID_BATCH", "invalid transaction batch")
	ErrInvalidReference   = newError(KindInvalid, "INVALID_REFERENCE", "reference must be between 1 and 64 characters")
	ErrInvalidAccountType = newError(KindInvalid, "INVALID_ACCOUNT_TYPE", "invalid account type")
	ErrInvalidStatus      = newError(KindInvalid, "INVALID_ACCOUNT_STATUS", "invalid account status")
)

// Lookup returns the sentinel registered under code.
func Lookup(code string) (*Error, bool) {
	e, ok := registry[code]
	return e, ok
}

func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the same call may succeed if repeated with the
// same idempotency key.
func IsRetryable(err error) bool {
	return KindOf(err) == KindUnavailable
}
