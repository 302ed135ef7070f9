package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/dto"
)

// TransactionsClient talks to the transaction ledger service.
type TransactionsClient struct {
	c *client
}

func NewTransactionsClient(baseURL string, opts Options) *TransactionsClient {
	return &TransactionsClient{c: newClient("transactions", baseURL, opts)}
}

// AppendBatch is safe to repeat: the ledger answers a replay with the
// entries it already holds.
func (t *TransactionsClient) AppendBatch(ctx context.Context, referenceID string, entries []domain.TransactionEntry) (*domain.BatchResult, error) {
	req := dto.AppendBatchRequest{
		ReferenceID: referenceID,
		Entries:     make([]dto.TransactionEntryRequest, len(entries)),
	}
	for i, e := range entries {
		req.Entries[i] = dto.TransactionEntryRequest{
			AccountID:   e.AccountID,
			Amount:      e.Amount.StringFixed(2),
			Type:        string(e.Type),
			Description: e.Description,
		}
	}

	var resp dto.BatchDTO
	if err := t.c.do(ctx, http.MethodPost, "/transactions/batch", req, &resp); err != nil {
		return nil, fmt.Errorf("AppendBatch: %w", err)
	}

	result := &domain.BatchResult{
		ReferenceID: resp.ReferenceID,
		Created:     resp.Created,
		Entries:     make([]domain.TransactionEntry, len(resp.Entries)),
	}
	for i, d := range resp.Entries {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("AppendBatch: amount: %w", err)
		}
		result.Entries[i] = domain.TransactionEntry{
			ID:          d.ID,
			ReferenceID: d.ReferenceID,
			AccountID:   d.AccountID,
			Amount:      amount,
			Type:        domain.TransactionType(d.Type),
			Status:      domain.TransactionStatus(d.Status),
			Description: d.Description,
			CreatedAt:   d.CreatedAt,
		}
	}
	return result, nil
}
