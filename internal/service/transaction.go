package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

type transactionRepo interface {
	AppendBatch(ctx context.Context, referenceID string, entries []domain.TransactionEntry) (*domain.BatchResult, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.TransactionEntry, error)
	ListByReference(ctx context.Context, referenceID string) ([]domain.TransactionEntry, error)
}

type TransactionService struct {
	transactions transactionRepo
}

func NewTransactionService(transactions transactionRepo) *TransactionService {
	return &TransactionService{transactions: transactions}
}

// Append records a single entry. An entry without a reference gets a fresh
// one; with a reference it behaves like a batch of one.
func (s *TransactionService) Append(ctx context.Context, entry domain.TransactionEntry) (*domain.BatchResult, error) {
	ref := entry.ReferenceID
	if ref == "" {
		ref = uuid.NewString()
	}
	res, err := s.AppendBatch(ctx, ref, []domain.TransactionEntry{entry})
	if err != nil {
		return nil, fmt.Errorf("Append: %w", err)
	}
	return res, nil
}

func (s *TransactionService) AppendBatch(ctx context.Context, referenceID string, entries []domain.TransactionEntry) (*domain.BatchResult, error) {
	log := logging.FromContext(ctx)

	if err := domain.ValidateBatch(referenceID, entries); err != nil {
		return nil, fmt.Errorf("AppendBatch: %w", err)
	}

	batch := make([]domain.TransactionEntry, len(entries))
	for i, e := range entries {
		e.ID = uuid.New()
		e.ReferenceID = referenceID
		e.Status = domain.TransactionStatusCompleted
		batch[i] = e
	}

	res, err := s.transactions.AppendBatch(ctx, referenceID, batch)
	if err != nil {
		return nil, fmt.Errorf("AppendBatch: %w", err)
	}

	if res.Created {
		log.Info("transaction batch appended", "reference", referenceID, "entries", len(res.Entries))
	} else {
		log.Info("transaction batch replayed", "reference", referenceID)
	}
	return res, nil
}

func (s *TransactionService) ListByAccount(ctx context.Context, accountID string) ([]domain.TransactionEntry, error) {
	entries, err := s.transactions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	return entries, nil
}

func (s *TransactionService) ListByReference(ctx context.Context, referenceID string) ([]domain.TransactionEntry, error) {
	entries, err := s.transactions.ListByReference(ctx, referenceID)
	if err != nil {
		return nil, fmt.Errorf("ListByReference: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("ListByReference: %w", domain.ErrNotFound)
	}
	return entries, nil
}
