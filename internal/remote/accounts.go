package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/dto"
)

// AccountsClient talks to the account ledger service.
type AccountsClient struct {
	c *client
}

func NewAccountsClient(baseURL string, opts Options) *AccountsClient {
	return &AccountsClient{c: newClient("accounts", baseURL, opts)}
}

func (a *AccountsClient) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	var body dto.AccountDTO
	if err := a.c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(number), nil, &body); err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	acct, err := accountFromDTO(body)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return acct, nil
}

func (a *AccountsClient) ApplyMutation(ctx context.Context, number string, m domain.BalanceMutation) (*domain.MutationResult, error) {
	req := dto.ApplyMutationRequest{
		Reference:       m.Reference,
		Kind:            string(m.Kind),
		NewBalance:      m.NewBalance.StringFixed(2),
		ExpectedVersion: m.ExpectedVersion,
	}

	var resp dto.ApplyMutationResponse
	path := "/accounts/" + url.PathEscape(number) + "/balance"
	if err := a.c.do(ctx, http.MethodPut, path, req, &resp); err != nil {
		return nil, fmt.Errorf("ApplyMutation: %w", err)
	}

	acct, err := accountFromDTO(resp.Account)
	if err != nil {
		return nil, fmt.Errorf("ApplyMutation: %w", err)
	}
	return &domain.MutationResult{Account: acct, Applied: resp.Applied}, nil
}

func (a *AccountsClient) ListMutations(ctx context.Context, number, reference string) ([]domain.AccountMutation, error) {
	path := "/accounts/" + url.PathEscape(number) + "/mutations"
	if reference != "" {
		path += "?" + url.Values{"reference": {reference}}.Encode()
	}

	var dtos []dto.MutationDTO
	if err := a.c.do(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, fmt.Errorf("ListMutations: %w", err)
	}

	out := make([]domain.AccountMutation, 0, len(dtos))
	for _, d := range dtos {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("ListMutations: amount: %w", err)
		}
		after, err := decimal.NewFromString(d.BalanceAfter)
		if err != nil {
			return nil, fmt.Errorf("ListMutations: balance_after: %w", err)
		}
		out = append(out, domain.AccountMutation{
			ID:            d.ID,
			AccountNumber: d.AccountNumber,
			Reference:     d.Reference,
			Kind:          domain.MutationKind(d.Kind),
			Amount:        amount,
			BalanceAfter:  after,
			AppliedAt:     d.AppliedAt,
		})
	}
	return out, nil
}

func accountFromDTO(d dto.AccountDTO) (*domain.Account, error) {
	balance, err := decimal.NewFromString(d.AvailableBalance)
	if err != nil {
		return nil, fmt.Errorf("available_balance: %w", err)
	}
	return &domain.Account{
		ID:                   d.ID,
		AccountNumber:        d.AccountNumber,
		OwnerUserID:          d.OwnerUserID,
		AccountType:          domain.AccountType(d.AccountType),
		Status:               domain.AccountStatus(d.Status),
		AvailableBalance:     balance,
		Version:              d.Version,
		LastAppliedReference: d.LastAppliedReference,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}, nil
}
