package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/dto"
	"github.com/josh-kwaku/banking-core/internal/service/transfer"
)

// IdempotencyKeyHeader names the transfer reference. It wins over a
// reference in the body.
const IdempotencyKeyHeader = "Idempotency-Key"

type transferService interface {
	Transfer(ctx context.Context, req transfer.Request) (*domain.TransferRecord, error)
	Deposit(ctx context.Context, req transfer.ExternalRequest) (*domain.TransferRecord, error)
	Withdraw(ctx context.Context, req transfer.ExternalRequest) (*domain.TransferRecord, error)
	GetByReference(ctx context.Context, reference string) (*domain.TransferRecord, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.TransferRecord, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

func (h *TransferHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /transfers", h.Transfer)
	mux.HandleFunc("GET /transfers", h.ListByAccount)
	mux.HandleFunc("GET /transfers/{reference}", h.Get)
	mux.HandleFunc("POST /deposits", h.Deposit)
	mux.HandleFunc("POST /withdrawals", h.Withdraw)
}

func referenceFrom(r *http.Request, body string) string {
	if key := r.Header.Get(IdempotencyKeyHeader); key != "" {
		return key
	}
	return body
}

func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := h.transfers.Transfer(r.Context(), transfer.Request{
		From:      req.FromAccount,
		To:        req.ToAccount,
		Amount:    decimal.RequireFromString(req.Amount),
		Reference: referenceFrom(r, req.Reference),
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, recordStatus(rec), dto.ToTransferDTO(rec))
}

func (h *TransferHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.external(w, r, h.transfers.Deposit)
}

func (h *TransferHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.external(w, r, h.transfers.Withdraw)
}

func (h *TransferHandler) external(
	w http.ResponseWriter,
	r *http.Request,
	run func(context.Context, transfer.ExternalRequest) (*domain.TransferRecord, error),
) {
	var req dto.ExternalTransferRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := run(r.Context(), transfer.ExternalRequest{
		Account:   req.AccountNumber,
		Amount:    decimal.RequireFromString(req.Amount),
		Reference: referenceFrom(r, req.Reference),
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, recordStatus(rec), dto.ToTransferDTO(rec))
}

// A FAILED record comes back when a reference names a transfer that was
// already reversed. The request itself succeeded in reporting that.
func recordStatus(rec *domain.TransferRecord) int {
	if rec.Status == domain.TransferStatusSuccess {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.transfers.GetByReference(r.Context(), r.PathValue("reference"))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, dto.ToTransferDTO(rec))
}

func (h *TransferHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		RespondValidationError(w, []dto.FieldError{{Field: "accountId", Message: "required"}})
		return
	}

	recs, err := h.transfers.ListByAccount(r.Context(), accountID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	dtos := make([]dto.TransferDTO, len(recs))
	for i := range recs {
		dtos[i] = dto.ToTransferDTO(&recs[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}
