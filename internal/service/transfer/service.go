package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

type accountsClient interface {
	GetAccount(ctx context.Context, number string) (*domain.Account, error)
	ApplyMutation(ctx context.Context, number string, m domain.BalanceMutation) (*domain.MutationResult, error)
	ListMutations(ctx context.Context, number, reference string) ([]domain.AccountMutation, error)
}

type transactionsClient interface {
	AppendBatch(ctx context.Context, referenceID string, entries []domain.TransactionEntry) (*domain.BatchResult, error)
}

type transferRepo interface {
	CreateWithEvent(ctx context.Context, t *domain.TransferRecord, event *domain.OutboxEvent) (*domain.TransferRecord, bool, error)
	GetByReference(ctx context.Context, reference string) (*domain.TransferRecord, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.TransferRecord, error)
}

type Config struct {
	// ConflictRetries bounds how often a step re-reads the account after a
	// version conflict before the conflict is treated as fatal.
	ConflictRetries int
	// CompletionTimeout bounds a saga once the first balance write has been
	// accepted; the caller's context no longer applies past that point.
	CompletionTimeout time.Duration
}

type Service struct {
	accounts     accountsClient
	transactions transactionsClient
	transfers    transferRepo
	config       Config
}

func NewService(accounts accountsClient, transactions transactionsClient, transfers transferRepo, cfg Config) *Service {
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = 30 * time.Second
	}
	if cfg.ConflictRetries < 0 {
		cfg.ConflictRetries = 0
	}
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		transfers:    transfers,
		config:       cfg,
	}
}

func (s *Service) GetByReference(ctx context.Context, reference string) (*domain.TransferRecord, error) {
	t, err := s.transfers.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return t, nil
}

func (s *Service) ListByAccount(ctx context.Context, accountID string) ([]domain.TransferRecord, error) {
	ts, err := s.transfers.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	return ts, nil
}
