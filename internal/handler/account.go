package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/dto"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

type accountService interface {
	CreateAccount(ctx context.Context, owner uuid.UUID, accountType domain.AccountType) (*domain.Account, error)
	GetAccount(ctx context.Context, number string) (*domain.Account, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]domain.Account, error)
	GetBalance(ctx context.Context, number string) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, number string, target domain.AccountStatus) (*domain.Account, error)
	ApplyMutation(ctx context.Context, number string, m domain.BalanceMutation) (*domain.MutationResult, error)
	ListMutations(ctx context.Context, number, reference string) ([]domain.AccountMutation, error)
}

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Register mounts the account routes. Balance writes go through
// serviceAuth since only the orchestrator may move money.
func (h *AccountHandler) Register(mux *http.ServeMux, serviceAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /accounts", h.Create)
	mux.HandleFunc("GET /accounts", h.ListByOwner)
	mux.HandleFunc("GET /accounts/{number}", h.Get)
	mux.HandleFunc("GET /accounts/{number}/balance", h.Balance)
	mux.HandleFunc("PUT /accounts/{number}/status", h.UpdateStatus)
	mux.HandleFunc("GET /accounts/{number}/mutations", h.ListMutations)
	mux.Handle("PUT /accounts/{number}/balance", serviceAuth(http.HandlerFunc(h.ApplyMutation)))
}

type createAccountRequest struct {
	OwnerUserID string `json:"owner_user_id" validate:"required,uuid"`
	AccountType string `json:"account_type" validate:"required,account_type"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,account_status"`
}

type balanceDTO struct {
	AccountNumber    string `json:"account_number"`
	AvailableBalance string `json:"available_balance"`
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), uuid.MustParse(req.OwnerUserID), domain.AccountType(req.AccountType))
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to create account", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, dto.ToAccountDTO(account))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), r.PathValue("number"))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, dto.ToAccountDTO(account))
}

func (h *AccountHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := uuid.Parse(r.URL.Query().Get("ownerId"))
	if err != nil {
		RespondValidationError(w, []dto.FieldError{{Field: "ownerId", Message: "must be a valid UUID"}})
		return
	}

	accounts, err := h.accounts.ListByOwner(r.Context(), owner)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list accounts", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	dtos := make([]dto.AccountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = dto.ToAccountDTO(&accounts[i])
	}

	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	balance, err := h.accounts.GetBalance(r.Context(), number)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, balanceDTO{AccountNumber: number, AvailableBalance: balance.StringFixed(2)})
}

func (h *AccountHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accounts.UpdateStatus(r.Context(), r.PathValue("number"), domain.AccountStatus(req.Status))
	if err != nil {
		logging.FromContext(r.Context()).Info("status change rejected", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, http.StatusOK, dto.ToAccountDTO(account))
}

func (h *AccountHandler) ApplyMutation(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyMutationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.accounts.ApplyMutation(r.Context(), r.PathValue("number"), domain.BalanceMutation{
		Reference:       req.Reference,
		Kind:            domain.MutationKind(req.Kind),
		NewBalance:      decimal.RequireFromString(req.NewBalance),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, http.StatusOK, dto.ApplyMutationResponse{Account: dto.ToAccountDTO(res.Account), Applied: res.Applied})
}

func (h *AccountHandler) ListMutations(w http.ResponseWriter, r *http.Request) {
	mutations, err := h.accounts.ListMutations(r.Context(), r.PathValue("number"), r.URL.Query().Get("reference"))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	dtos := make([]dto.MutationDTO, len(mutations))
	for i := range mutations {
		dtos[i] = dto.ToMutationDTO(&mutations[i])
	}

	RespondSuccess(w, http.StatusOK, dtos)
}
