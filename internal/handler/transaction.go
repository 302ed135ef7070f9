package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/dto"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

type transactionService interface {
	Append(ctx context.Context, entry domain.TransactionEntry) (*domain.BatchResult, error)
	AppendBatch(ctx context.Context, referenceID string, entries []domain.TransactionEntry) (*domain.BatchResult, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.TransactionEntry, error)
	ListByReference(ctx context.Context, referenceID string) ([]domain.TransactionEntry, error)
}

type TransactionHandler struct {
	transactions transactionService
}

func NewTransactionHandler(transactions transactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

func (h *TransactionHandler) Register(mux *http.ServeMux, serviceAuth func(http.Handler) http.Handler) {
	mux.Handle("POST /transactions", serviceAuth(http.HandlerFunc(h.Append)))
	mux.Handle("POST /transactions/batch", serviceAuth(http.HandlerFunc(h.AppendBatch)))
	mux.HandleFunc("GET /transactions", h.ListByAccount)
	mux.HandleFunc("GET /transactions/{referenceId}", h.ListByReference)
}

func toEntry(req dto.TransactionEntryRequest) domain.TransactionEntry {
	return domain.TransactionEntry{
		ReferenceID: req.ReferenceID,
		AccountID:   req.AccountID,
		Amount:      decimal.RequireFromString(req.Amount),
		Type:        domain.TransactionType(req.Type),
		Description: req.Description,
	}
}

func (h *TransactionHandler) Append(w http.ResponseWriter, r *http.Request) {
	var req dto.TransactionEntryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.transactions.Append(r.Context(), toEntry(req))
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to append transaction", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, batchStatus(res), dto.ToBatchDTO(res))
}

func (h *TransactionHandler) AppendBatch(w http.ResponseWriter, r *http.Request) {
	var req dto.AppendBatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	entries := make([]domain.TransactionEntry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = toEntry(e)
	}

	res, err := h.transactions.AppendBatch(r.Context(), req.ReferenceID, entries)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to append batch", "reference", req.ReferenceID, "error", err)
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, batchStatus(res), dto.ToBatchDTO(res))
}

// A replayed batch answers 200 so callers can tell it from a fresh write.
func batchStatus(res *domain.BatchResult) int {
	if res.Created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (h *TransactionHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		RespondValidationError(w, []dto.FieldError{{Field: "accountId", Message: "required"}})
		return
	}

	entries, err := h.transactions.ListByAccount(r.Context(), accountID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTOs(entries))
}

func (h *TransactionHandler) ListByReference(w http.ResponseWriter, r *http.Request) {
	entries, err := h.transactions.ListByReference(r.Context(), r.PathValue("referenceId"))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTOs(entries))
}

func toTransactionDTOs(entries []domain.TransactionEntry) []dto.TransactionDTO {
	dtos := make([]dto.TransactionDTO, len(entries))
	for i := range entries {
		dtos[i] = dto.ToTransactionDTO(&entries[i])
	}
	return dtos
}
