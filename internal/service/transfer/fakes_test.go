package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

// fakeAccounts mirrors the account ledger rules the saga depends on:
// per-(reference, kind) idempotency, the version guard and the status check
// on debits.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	journal  []domain.AccountMutation
	failures map[string][]error
	// beforeApply runs before a mutation is checked, onApply after it lands.
	beforeApply func(number string, kind domain.MutationKind)
	onApply     func(number string, kind domain.MutationKind)
	applies     int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		accounts: map[string]*domain.Account{},
		failures: map[string][]error{},
	}
}

func (f *fakeAccounts) add(number string, status domain.AccountStatus, balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[number] = &domain.Account{
		ID:               uuid.New(),
		AccountNumber:    number,
		OwnerUserID:      uuid.New(),
		AccountType:      domain.AccountTypeSavings,
		Status:           status,
		AvailableBalance: decimal.NewFromInt(balance),
		Version:          1,
	}
}

// failNext makes the next ApplyMutation of kind on number return err before
// touching state.
func (f *fakeAccounts) failNext(number string, kind domain.MutationKind, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := number + "/" + string(kind)
	f.failures[key] = append(f.failures[key], errs...)
}

func (f *fakeAccounts) balance(number string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[number].AvailableBalance
}

func (f *fakeAccounts) mutations(number, reference string) []domain.AccountMutation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AccountMutation
	for _, m := range f.journal {
		if m.AccountNumber == number && m.Reference == reference {
			out = append(out, m)
		}
	}
	return out
}

func unavailable(ctx context.Context) error {
	return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, ctx.Err())
}

func (f *fakeAccounts) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	if ctx.Err() != nil {
		return nil, unavailable(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) ApplyMutation(ctx context.Context, number string, m domain.BalanceMutation) (*domain.MutationResult, error) {
	if ctx.Err() != nil {
		return nil, unavailable(ctx)
	}
	if f.beforeApply != nil {
		f.beforeApply(number, m.Kind)
	}

	f.mu.Lock()
	key := number + "/" + string(m.Kind)
	if errs := f.failures[key]; len(errs) > 0 {
		f.failures[key] = errs[1:]
		f.mu.Unlock()
		return nil, errs[0]
	}

	a, ok := f.accounts[number]
	if !ok {
		f.mu.Unlock()
		return nil, domain.ErrAccountNotFound
	}
	for _, j := range f.journal {
		if j.AccountNumber == number && j.Reference == m.Reference && j.Kind == m.Kind {
			cp := *a
			f.mu.Unlock()
			return &domain.MutationResult{Account: &cp, Applied: false}, nil
		}
	}
	if m.NewBalance.IsNegative() {
		f.mu.Unlock()
		return nil, domain.ErrNegativeBalance
	}
	if m.Kind == domain.MutationDebit && a.Status != domain.AccountStatusActive {
		f.mu.Unlock()
		return nil, domain.ErrAccountNotActive
	}
	if a.Version != m.ExpectedVersion {
		f.mu.Unlock()
		return nil, domain.ErrVersionConflict
	}

	f.journal = append(f.journal, domain.AccountMutation{
		ID:            uuid.New(),
		AccountNumber: number,
		Reference:     m.Reference,
		Kind:          m.Kind,
		Amount:        m.NewBalance.Sub(a.AvailableBalance),
		BalanceAfter:  m.NewBalance,
		AppliedAt:     time.Now(),
	})
	a.AvailableBalance = m.NewBalance
	a.Version++
	ref := m.Reference
	a.LastAppliedReference = &ref
	f.applies++
	cp := *a
	hook := f.onApply
	f.mu.Unlock()

	if hook != nil {
		hook(number, m.Kind)
	}
	return &domain.MutationResult{Account: &cp, Applied: true}, nil
}

func (f *fakeAccounts) ListMutations(ctx context.Context, number, reference string) ([]domain.AccountMutation, error) {
	if ctx.Err() != nil {
		return nil, unavailable(ctx)
	}
	if _, err := f.GetAccount(ctx, number); err != nil {
		return nil, err
	}
	return f.mutations(number, reference), nil
}

type fakeTransactions struct {
	mu       sync.Mutex
	batches  map[string][]domain.TransactionEntry
	failures []error
}

func newFakeTransactions() *fakeTransactions {
	return &fakeTransactions{batches: map[string][]domain.TransactionEntry{}}
}

func (f *fakeTransactions) AppendBatch(ctx context.Context, ref string, entries []domain.TransactionEntry) (*domain.BatchResult, error) {
	if ctx.Err() != nil {
		return nil, unavailable(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	if stored, ok := f.batches[ref]; ok {
		if !domain.SameEntries(stored, entries) {
			return nil, domain.ErrReferenceMismatch
		}
		return &domain.BatchResult{ReferenceID: ref, Entries: stored}, nil
	}
	f.batches[ref] = entries
	return &domain.BatchResult{ReferenceID: ref, Entries: entries, Created: true}, nil
}

type fakeTransfers struct {
	mu      sync.Mutex
	records map[string]*domain.TransferRecord
	order   []string
	events  []*domain.OutboxEvent
	err     error
}

func newFakeTransfers() *fakeTransfers {
	return &fakeTransfers{records: map[string]*domain.TransferRecord{}}
}

func (f *fakeTransfers) CreateWithEvent(_ context.Context, t *domain.TransferRecord, ev *domain.OutboxEvent) (*domain.TransferRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if existing, ok := f.records[t.Reference]; ok {
		return existing, false, nil
	}
	f.records[t.Reference] = t
	f.order = append(f.order, t.Reference)
	if ev != nil {
		f.events = append(f.events, ev)
	}
	return t, true, nil
}

func (f *fakeTransfers) GetByReference(_ context.Context, ref string) (*domain.TransferRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.records[ref]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	return t, nil
}

func (f *fakeTransfers) ListByAccount(_ context.Context, accountID string) ([]domain.TransferRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TransferRecord
	for _, ref := range f.order {
		t := f.records[ref]
		if t.FromAccount == accountID || t.ToAccount == accountID {
			out = append(out, *t)
		}
	}
	return out, nil
}
