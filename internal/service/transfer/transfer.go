package transfer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

type Request struct {
	From   string
	To     string
	Amount decimal.Decimal
	// Reference is the idempotency key. Empty means a new one is minted.
	Reference string
}

// Transfer moves Amount from one account to another: debit, credit, append
// the ledger entries, then record. Errors returned once money may have moved
// are *domain.TransferFailure and carry the reference to retry with.
func (s *Service) Transfer(ctx context.Context, req Request) (*domain.TransferRecord, error) {
	log := logging.FromContext(ctx)

	if req.From == "" || req.To == "" {
		return nil, fmt.Errorf("Transfer: %w", domain.ErrInvalidRequest)
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}
	if req.From == req.To {
		return nil, fmt.Errorf("Transfer: %w", domain.ErrSelfTransfer)
	}
	if err := validateReference(req.Reference); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	mv := &movement{
		reference: req.Reference,
		from:      req.From,
		to:        req.To,
		amount:    req.Amount,
		typ:       domain.TransferTypeInternal,
		legs: []*leg{
			{account: req.From, kind: domain.MutationDebit, step: domain.StepDebit},
			{account: req.To, kind: domain.MutationCredit, step: domain.StepCredit},
		},
		entries: []domain.TransactionEntry{
			{
				AccountID:   req.From,
				Amount:      req.Amount.Neg(),
				Type:        domain.TransactionTypeInternalTransfer,
				Description: fmt.Sprintf("Internal fund transfer from %s to %s", req.From, req.To),
			},
			{
				AccountID:   req.To,
				Amount:      req.Amount,
				Type:        domain.TransactionTypeInternalTransfer,
				Description: fmt.Sprintf("Internal fund transfer received from %s", req.From),
			},
		},
	}

	rec, err := s.run(ctx, mv)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	log.Info("transfer finished",
		"reference", rec.Reference,
		"from", rec.FromAccount,
		"to", rec.ToAccount,
		"amount", rec.Amount.StringFixed(2),
		"status", rec.Status,
	)
	return rec, nil
}

type ExternalRequest struct {
	Account   string
	Amount    decimal.Decimal
	Reference string
}

func validateExternal(req ExternalRequest) error {
	if req.Account == "" {
		return domain.ErrInvalidRequest
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return err
	}
	return validateReference(req.Reference)
}

// Deposit credits money arriving from outside the bank. Any account that
// exists can receive it, which is how a PENDING account gets funded.
func (s *Service) Deposit(ctx context.Context, req ExternalRequest) (*domain.TransferRecord, error) {
	if err := validateExternal(req); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	mv := &movement{
		reference: req.Reference,
		to:        req.Account,
		amount:    req.Amount,
		typ:       domain.TransferTypeExternal,
		legs: []*leg{
			{account: req.Account, kind: domain.MutationCredit, step: domain.StepCredit},
		},
		entries: []domain.TransactionEntry{{
			AccountID:   req.Account,
			Amount:      req.Amount,
			Type:        domain.TransactionTypeDeposit,
			Description: fmt.Sprintf("Deposit to %s", req.Account),
		}},
	}

	rec, err := s.run(ctx, mv)
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	logging.FromContext(ctx).Info("deposit finished", "reference", rec.Reference, "account", req.Account, "status", rec.Status)
	return rec, nil
}

func (s *Service) Withdraw(ctx context.Context, req ExternalRequest) (*domain.TransferRecord, error) {
	if err := validateExternal(req); err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	mv := &movement{
		reference: req.Reference,
		from:      req.Account,
		amount:    req.Amount,
		typ:       domain.TransferTypeExternal,
		legs: []*leg{
			{account: req.Account, kind: domain.MutationDebit, step: domain.StepDebit},
		},
		entries: []domain.TransactionEntry{{
			AccountID:   req.Account,
			Amount:      req.Amount.Neg(),
			Type:        domain.TransactionTypeWithdrawal,
			Description: fmt.Sprintf("Withdrawal from %s", req.Account),
		}},
	}

	rec, err := s.run(ctx, mv)
	if err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}
	logging.FromContext(ctx).Info("withdrawal finished", "reference", rec.Reference, "account", req.Account, "status", rec.Status)
	return rec, nil
}
