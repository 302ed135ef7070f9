package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

const reasonEarlierAttempt = "reversed by an earlier attempt"

// leg is one balance write a movement needs. Internal transfers have a debit
// and a credit leg; deposits and withdrawals have one.
type leg struct {
	account string
	kind    domain.MutationKind
	step    domain.SagaStep

	applied  bool
	reversed bool
	// delta is the signed balance change the leg made, as journaled.
	delta    decimal.Decimal
}

func (l *leg) expectedDelta(amount decimal.Decimal) decimal.Decimal {
	if l.kind == domain.MutationDebit {
		return amount.Neg()
	}
	return amount
}

type movement struct {
	reference string
	// supplied is set when the caller chose the reference, so an earlier
	// attempt may have left writes behind.
	supplied bool

	from    string
	to      string
	amount  decimal.Decimal
	typ     domain.TransferType
	legs    []*leg
	entries []domain.TransactionEntry
}

func (mv *movement) record(status domain.TransferStatus, reason *string) *domain.TransferRecord {
	return &domain.TransferRecord{
		Reference:     mv.reference,
		FromAccount:   mv.from,
		ToAccount:     mv.to,
		Amount:        mv.amount,
		Status:        status,
		Type:          mv.typ,
		FailureReason: reason,
		TransferredOn: time.Now().UTC(),
	}
}

func (mv *movement) anyApplied() bool {
	for _, l := range mv.legs {
		if l.applied {
			return true
		}
	}
	return false
}

func (mv *movement) anyReversed() bool {
	for _, l := range mv.legs {
		if l.reversed {
			return true
		}
	}
	return false
}

func validateReference(ref string) error {
	if len(ref) > domain.MaxReferenceLength {
		return domain.ErrInvalidReference
	}
	return nil
}

// run replays a recorded movement or drives a new one to completion.
func (s *Service) run(ctx context.Context, mv *movement) (*domain.TransferRecord, error) {
	if mv.reference != "" {
		existing, err := s.transfers.GetByReference(ctx, mv.reference)
		switch {
		case err == nil:
			if !existing.Matches(mv.from, mv.to, mv.amount) {
				return nil, domain.ErrReferenceReused
			}
			logging.FromContext(ctx).Info("transfer replayed", "reference", mv.reference, "status", existing.Status)
			return existing, nil
		case !errors.Is(err, domain.ErrTransferNotFound):
			return nil, err
		}
		mv.supplied = true
	} else {
		mv.reference = uuid.NewString()
	}

	ctx = logging.With(ctx, "reference", mv.reference)
	return s.execute(ctx, mv)
}

func (s *Service) execute(ctx context.Context, mv *movement) (*domain.TransferRecord, error) {
	log := logging.FromContext(ctx)

	current := make([]*domain.Account, len(mv.legs))
	for i, l := range mv.legs {
		acct, err := s.accounts.GetAccount(ctx, l.account)
		if err != nil {
			return nil, err
		}
		if mv.supplied {
			if err := s.loadJournal(ctx, mv, l); err != nil {
				return nil, err
			}
		}
		if l.kind == domain.MutationDebit && !l.applied {
			if err := checkDebitable(acct, mv.amount); err != nil {
				return nil, err
			}
		}
		current[i] = acct
	}

	if mv.anyReversed() {
		log.Info("earlier attempt was compensated, finishing reversal")
		return s.finishReversed(ctx, mv)
	}

	sagaCtx, cancel := ctx, context.CancelFunc(func() {})
	detached := false
	detach := func() {
		if !detached {
			sagaCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.config.CompletionTimeout)
			detached = true
		}
	}
	defer func() { cancel() }()

	if mv.anyApplied() {
		log.Info("resuming transfer from journal")
		detach()
	}

	for i, l := range mv.legs {
		if l.applied {
			continue
		}
		if err := s.applyLeg(sagaCtx, mv, l, current[i]); err != nil {
			return nil, s.fail(sagaCtx, mv, l.step, err)
		}
		l.applied = true
		detach()
	}

	if _, err := s.transactions.AppendBatch(sagaCtx, mv.reference, mv.entries); err != nil {
		return nil, s.fail(sagaCtx, mv, domain.StepAppend, err)
	}

	stored, err := s.persist(sagaCtx, mv.record(domain.TransferStatusSuccess, nil))
	if err != nil {
		log.Error("failed to record completed transfer", "error", err)
		return nil, &domain.TransferFailure{Reference: mv.reference, Step: domain.StepRecord, Err: err}
	}
	return stored, nil
}

// loadJournal marks what an earlier attempt under the same reference already
// did to the leg's account. Any row that is not this leg, for this amount, is
// a different movement and the reference cannot be reused for it.
func (s *Service) loadJournal(ctx context.Context, mv *movement, l *leg) error {
	journal, err := s.accounts.ListMutations(ctx, l.account, mv.reference)
	if err != nil {
		return err
	}
	want := l.expectedDelta(mv.amount)
	for _, m := range journal {
		switch {
		case m.Kind == l.kind && m.Amount.Equal(want):
			l.applied = true
			l.delta = m.Amount
		case m.Kind == domain.MutationReversal && m.Amount.Equal(want.Neg()):
			l.reversed = true
		default:
			return fmt.Errorf("%s of %s on %s: %w", m.Kind, m.Amount, l.account, domain.ErrReferenceReused)
		}
	}
	return nil
}

// confirmApplied checks a mutation the ledger reported as already applied.
// It can only come from a concurrent attempt under the same reference, which
// must have been for the same amount.
func (s *Service) confirmApplied(ctx context.Context, mv *movement, l *leg) error {
	journal, err := s.accounts.ListMutations(ctx, l.account, mv.reference)
	if err != nil {
		return err
	}
	want := l.expectedDelta(mv.amount)
	for _, m := range journal {
		if m.Kind != l.kind {
			continue
		}
		if !m.Amount.Equal(want) {
			return fmt.Errorf("%s of %s on %s: %w", m.Kind, m.Amount, l.account, domain.ErrReferenceReused)
		}
		l.delta = m.Amount
		return nil
	}
	l.delta = want
	return nil
}

func checkDebitable(acct *domain.Account, amount decimal.Decimal) error {
	if acct.Status != domain.AccountStatusActive {
		return domain.ErrAccountNotActive
	}
	if acct.AvailableBalance.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (s *Service) applyLeg(ctx context.Context, mv *movement, l *leg, acct *domain.Account) error {
	res, err := s.mutate(ctx, l.account, mv.reference, l.kind, acct, func(a *domain.Account) (decimal.Decimal, error) {
		if l.kind == domain.MutationDebit {
			if err := checkDebitable(a, mv.amount); err != nil {
				return decimal.Zero, err
			}
		}
		return a.AvailableBalance.Add(l.expectedDelta(mv.amount)), nil
	})
	if err != nil {
		return err
	}
	if !res.Applied {
		return s.confirmApplied(ctx, mv, l)
	}
	l.delta = l.expectedDelta(mv.amount)
	return nil
}

// reverseLeg undoes the journaled delta of an applied leg.
func (s *Service) reverseLeg(ctx context.Context, mv *movement, l *leg) error {
	_, err := s.mutate(ctx, l.account, mv.reference, domain.MutationReversal, nil, func(a *domain.Account) (decimal.Decimal, error) {
		next := a.AvailableBalance.Sub(l.delta)
		if next.IsNegative() {
			return decimal.Zero, domain.ErrInsufficientFunds
		}
		return next, nil
	})
	return err
}

// mutate applies one balance write computed from the latest account state.
// A version conflict means someone else wrote first, so the account is read
// again and the write recomputed, up to ConflictRetries times.
func (s *Service) mutate(
	ctx context.Context,
	number, reference string,
	kind domain.MutationKind,
	acct *domain.Account,
	next func(*domain.Account) (decimal.Decimal, error),
) (*domain.MutationResult, error) {
	log := logging.FromContext(ctx)

	for attempt := 0; ; attempt++ {
		if acct == nil {
			var err error
			acct, err = s.accounts.GetAccount(ctx, number)
			if err != nil {
				return nil, err
			}
		}

		balance, err := next(acct)
		if err != nil {
			return nil, err
		}

		res, err := s.accounts.ApplyMutation(ctx, number, domain.BalanceMutation{
			Reference:       reference,
			Kind:            kind,
			NewBalance:      balance,
			ExpectedVersion: acct.Version,
		})
		if err == nil {
			log.Info("balance step applied",
				"account_number", number,
				"kind", kind,
				"applied", res.Applied,
			)
			return res, nil
		}

		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= s.config.ConflictRetries {
			return nil, err
		}
		log.Info("version conflict, re-reading account", "account_number", number, "kind", kind, "attempt", attempt+1)
		acct = nil
	}
}

// fail decides what a failed step means for the money already moved.
// Retryable failures leave everything in place because the write may have
// landed; fatal ones undo the applied legs.
func (s *Service) fail(ctx context.Context, mv *movement, step domain.SagaStep, cause error) error {
	log := logging.FromContext(ctx)

	if !mv.anyApplied() && !domain.IsRetryable(cause) {
		return cause
	}

	if domain.IsRetryable(cause) {
		log.Warn("transfer incomplete, retry with the same reference", "step", step, "error", cause)
		return &domain.TransferFailure{Reference: mv.reference, Step: step, Err: cause}
	}

	log.Warn("transfer step failed, compensating", "step", step, "error", cause)
	if err := s.compensate(ctx, mv); err != nil {
		log.Error("compensation failed, manual reconciliation required",
			"step", step,
			"cause", cause,
			"error", err,
		)
		return &domain.TransferFailure{Reference: mv.reference, Step: step, Err: cause}
	}

	s.recordFailed(ctx, mv, failureReason(cause))
	return &domain.TransferFailure{Reference: mv.reference, Step: step, Compensated: true, Err: cause}
}

func (s *Service) compensate(ctx context.Context, mv *movement) error {
	for i := len(mv.legs) - 1; i >= 0; i-- {
		l := mv.legs[i]
		if !l.applied || l.reversed {
			continue
		}
		if err := s.reverseLeg(ctx, mv, l); err != nil {
			return fmt.Errorf("reverse %s on %s: %w", l.kind, l.account, err)
		}
		l.reversed = true
	}
	return nil
}

// finishReversed completes a movement an earlier attempt had started to
// undo. The caller gets the FAILED record, as on any later replay.
func (s *Service) finishReversed(ctx context.Context, mv *movement) (*domain.TransferRecord, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.CompletionTimeout)
	defer cancel()

	if err := s.compensate(ctx, mv); err != nil {
		logging.FromContext(ctx).Error("compensation failed, manual reconciliation required", "error", err)
		return nil, &domain.TransferFailure{Reference: mv.reference, Step: domain.StepRecord, Err: err}
	}
	return s.recordFailed(ctx, mv, reasonEarlierAttempt), nil
}

// recordFailed stores the FAILED record. A lost write here is repaired by the
// next replay, which finds the reversals in the journal.
func (s *Service) recordFailed(ctx context.Context, mv *movement, reason string) *domain.TransferRecord {
	rec := mv.record(domain.TransferStatusFailed, &reason)
	stored, err := s.persist(ctx, rec)
	if err != nil {
		logging.FromContext(ctx).Error("failed to record failed transfer", "error", err)
		return rec
	}
	return stored
}

func (s *Service) persist(ctx context.Context, rec *domain.TransferRecord) (*domain.TransferRecord, error) {
	event, err := domain.NewTransferEvent(rec)
	if err != nil {
		return nil, fmt.Errorf("persist: build event: %w", err)
	}
	stored, _, err := s.transfers.CreateWithEvent(ctx, rec, event)
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	return stored, nil
}

func failureReason(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL_ERROR"
}
