// Package dto holds the JSON shapes the services exchange over HTTP, shared
// by the handlers that serve them and the clients that call them.
package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

// Amounts travel as decimal strings with two fractional digits.

type AccountDTO struct {
	ID                   uuid.UUID `json:"id"`
	AccountNumber        string    `json:"account_number"`
	OwnerUserID          uuid.UUID `json:"owner_user_id"`
	AccountType          string    `json:"account_type"`
	Status               string    `json:"status"`
	AvailableBalance     string    `json:"available_balance"`
	Version              int64     `json:"version"`
	LastAppliedReference *string   `json:"last_applied_reference,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func ToAccountDTO(a *domain.Account) AccountDTO {
	return AccountDTO{
		ID:                   a.ID,
		AccountNumber:        a.AccountNumber,
		OwnerUserID:          a.OwnerUserID,
		AccountType:          string(a.AccountType),
		Status:               string(a.Status),
		AvailableBalance:     a.AvailableBalance.StringFixed(2),
		Version:              a.Version,
		LastAppliedReference: a.LastAppliedReference,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

type MutationDTO struct {
	ID            uuid.UUID `json:"id"`
	AccountNumber string    `json:"account_number"`
	Reference     string    `json:"reference"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	BalanceAfter  string    `json:"balance_after"`
	AppliedAt     time.Time `json:"applied_at"`
}

func ToMutationDTO(m *domain.AccountMutation) MutationDTO {
	return MutationDTO{
		ID:            m.ID,
		AccountNumber: m.AccountNumber,
		Reference:     m.Reference,
		Kind:          string(m.Kind),
		Amount:        m.Amount.StringFixed(2),
		BalanceAfter:  m.BalanceAfter.StringFixed(2),
		AppliedAt:     m.AppliedAt,
	}
}

type ApplyMutationRequest struct {
	Reference       string `json:"reference" validate:"required,max=64"`
	Kind            string `json:"kind" validate:"required,mutation_kind"`
	NewBalance      string `json:"new_balance" validate:"required,decimal"`
	ExpectedVersion int64  `json:"expected_version" validate:"required,min=1"`
}

type ApplyMutationResponse struct {
	Account AccountDTO `json:"account"`
	Applied bool       `json:"applied"`
}

type TransactionEntryRequest struct {
	ReferenceID string `json:"reference_id,omitempty" validate:"max=64"`
	AccountID   string `json:"account_id" validate:"required"`
	Amount      string `json:"amount" validate:"required,decimal"`
	Type        string `json:"type" validate:"required,transaction_type"`
	Description string `json:"description"`
}

type AppendBatchRequest struct {
	ReferenceID string                    `json:"reference_id" validate:"required,max=64"`
	Entries     []TransactionEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

type TransactionDTO struct {
	ID          uuid.UUID `json:"id"`
	ReferenceID string    `json:"reference_id"`
	AccountID   string    `json:"account_id"`
	Amount      string    `json:"amount"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToTransactionDTO(e *domain.TransactionEntry) TransactionDTO {
	return TransactionDTO{
		ID:          e.ID,
		ReferenceID: e.ReferenceID,
		AccountID:   e.AccountID,
		Amount:      e.Amount.StringFixed(2),
		Type:        string(e.Type),
		Status:      string(e.Status),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

type BatchDTO struct {
	ReferenceID string           `json:"reference_id"`
	Created     bool             `json:"created"`
	Entries     []TransactionDTO `json:"entries"`
}

func ToBatchDTO(b *domain.BatchResult) BatchDTO {
	entries := make([]TransactionDTO, len(b.Entries))
	for i := range b.Entries {
		entries[i] = ToTransactionDTO(&b.Entries[i])
	}
	return BatchDTO{ReferenceID: b.ReferenceID, Created: b.Created, Entries: entries}
}

type TransferDTO struct {
	Reference     string    `json:"reference"`
	FromAccount   string    `json:"from_account,omitempty"`
	ToAccount     string    `json:"to_account,omitempty"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	Type          string    `json:"type"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	TransferredOn time.Time `json:"transferred_on"`
}

func ToTransferDTO(t *domain.TransferRecord) TransferDTO {
	return TransferDTO{
		Reference:     t.Reference,
		FromAccount:   t.FromAccount,
		ToAccount:     t.ToAccount,
		Amount:        t.Amount.StringFixed(2),
		Status:        string(t.Status),
		Type:          string(t.Type),
		FailureReason: t.FailureReason,
		TransferredOn: t.TransferredOn,
	}
}

type TransferRequest struct {
	FromAccount string `json:"from_account" validate:"required"`
	ToAccount   string `json:"to_account" validate:"required"`
	Amount      string `json:"amount" validate:"required,money"`
	Reference   string `json:"reference,omitempty" validate:"max=64"`
}

type ExternalTransferRequest struct {
	AccountNumber string `json:"account_number" validate:"required"`
	Amount        string `json:"amount" validate:"required,money"`
	Reference     string `json:"reference,omitempty" validate:"max=64"`
}
