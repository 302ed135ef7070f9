package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/banking-core/internal/auth"
	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/dto"
	"github.com/josh-kwaku/banking-core/internal/handler"
	"github.com/josh-kwaku/banking-core/internal/middleware"
)

const testSecret = "remote-test-secret"

func testOptions() Options {
	return Options{
		Caller:          "transfers",
		TokenSecret:     testSecret,
		TokenTTL:        time.Minute,
		Timeout:         time.Second,
		MaxRetries:      2,
		RetryInitial:    time.Millisecond,
		RetryMax:        5 * time.Millisecond,
		BreakerFailures: 100,
		BreakerTimeout:  time.Minute,
	}
}

func testAccountDTO(number string) dto.AccountDTO {
	return dto.AccountDTO{
		ID:               uuid.New(),
		AccountNumber:    number,
		OwnerUserID:      uuid.New(),
		AccountType:      "SAVINGS",
		Status:           "ACTIVE",
		AvailableBalance: "5000.00",
		Version:          3,
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	handler.RespondJSON(w, status, dto.APIResponse{
		Error: &dto.APIError{Code: code, Message: "rejected"},
	})
}

func TestAccountsClient_GetAccount(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/accounts/0600000001", r.URL.Path)
		assert.Equal(t, "req-1", r.Header.Get(middleware.RequestIDHeader))

		token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims, err := auth.ValidateServiceToken(token, testSecret)
		assert.NoError(t, err)
		if claims != nil {
			assert.Equal(t, "transfers", claims.Service)
		}

		handler.RespondSuccess(w, http.StatusOK, testAccountDTO("0600000001"))
	}))
	defer srv.Close()

	c := NewAccountsClient(srv.URL, testOptions())
	ctx := middleware.ContextWithTraceID(context.Background(), "req-1")

	acct, err := c.GetAccount(ctx, "0600000001")
	require.NoError(t, err)
	assert.Equal(t, "0600000001", acct.AccountNumber)
	assert.Equal(t, domain.AccountStatusActive, acct.Status)
	assert.True(t, acct.AvailableBalance.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, int64(3), acct.Version)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Classification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      string
		wantErr   error
		wantCalls int32
	}{
		{name: "not found is fatal", status: http.StatusNotFound, code: "ACCOUNT_NOT_FOUND", wantErr: domain.ErrAccountNotFound, wantCalls: 1},
		{name: "business rule is fatal", status: http.StatusUnprocessableEntity, code: "ACCOUNT_NOT_ACTIVE", wantErr: domain.ErrAccountNotActive, wantCalls: 1},
		{name: "version conflict is surfaced", status: http.StatusConflict, code: "VERSION_CONFLICT", wantErr: domain.ErrVersionConflict, wantCalls: 1},
		{name: "server error is retried", status: http.StatusInternalServerError, code: "INTERNAL_ERROR", wantErr: domain.ErrServiceUnavailable, wantCalls: 3},
		{name: "throttling is retried", status: http.StatusTooManyRequests, code: "RATE_LIMITED", wantErr: domain.ErrServiceUnavailable, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeError(w, tt.status, tt.code)
			}))
			defer srv.Close()

			c := NewAccountsClient(srv.URL, testOptions())
			_, err := c.GetAccount(context.Background(), "0600000001")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_UnknownCodeIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN")
	}))
	defer srv.Close()

	c := NewAccountsClient(srv.URL, testOptions())
	_, err := c.GetAccount(context.Background(), "0600000001")

	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		handler.RespondSuccess(w, http.StatusOK, testAccountDTO("0600000001"))
	}))
	defer srv.Close()

	c := NewAccountsClient(srv.URL, testOptions())
	acct, err := c.GetAccount(context.Background(), "0600000001")

	require.NoError(t, err)
	assert.Equal(t, "0600000001", acct.AccountNumber)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_TransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	opts := testOptions()
	opts.MaxRetries = 0
	c := NewAccountsClient(url, opts)

	_, err := c.GetAccount(context.Background(), "0600000001")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestClient_CancelledContextIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewAccountsClient(srv.URL, testOptions())
	_, err := c.GetAccount(ctx, "0600000001")

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_BreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opts := testOptions()
	opts.MaxRetries = 0
	opts.BreakerFailures = 2
	c := NewAccountsClient(srv.URL, opts)

	for i := 0; i < 2; i++ {
		_, err := c.GetAccount(context.Background(), "0600000001")
		require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	}

	_, err := c.GetAccount(context.Background(), "0600000001")
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestClient_BusinessErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS")
	}))
	defer srv.Close()

	opts := testOptions()
	opts.BreakerFailures = 1
	c := NewAccountsClient(srv.URL, opts)

	for i := 0; i < 5; i++ {
		_, err := c.GetAccount(context.Background(), "0600000001")
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestAccountsClient_ApplyMutation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/accounts/0600000001/balance", r.URL.Path)

		var req dto.ApplyMutationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ref-1", req.Reference)
		assert.Equal(t, "DEBIT", req.Kind)
		assert.Equal(t, "3000.00", req.NewBalance)
		assert.Equal(t, int64(3), req.ExpectedVersion)

		acct := testAccountDTO("0600000001")
		acct.AvailableBalance = "3000.00"
		acct.Version = 4
		handler.RespondSuccess(w, http.StatusOK, dto.ApplyMutationResponse{Account: acct, Applied: true})
	}))
	defer srv.Close()

	c := NewAccountsClient(srv.URL, testOptions())
	res, err := c.ApplyMutation(context.Background(), "0600000001", domain.BalanceMutation{
		Reference:       "ref-1",
		Kind:            domain.MutationDebit,
		NewBalance:      decimal.NewFromInt(3000),
		ExpectedVersion: 3,
	})

	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(4), res.Account.Version)
	assert.True(t, res.Account.AvailableBalance.Equal(decimal.NewFromInt(3000)))
}

func TestAccountsClient_ListMutations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/0600000001/mutations", r.URL.Path)
		assert.Equal(t, "ref 1", r.URL.Query().Get("reference"))
		handler.RespondSuccess(w, http.StatusOK, []dto.MutationDTO{{
			ID:            uuid.New(),
			AccountNumber: "0600000001",
			Reference:     "ref 1",
			Kind:          "DEBIT",
			Amount:        "-2000.00",
			BalanceAfter:  "3000.00",
		}})
	}))
	defer srv.Close()

	c := NewAccountsClient(srv.URL, testOptions())
	ms, err := c.ListMutations(context.Background(), "0600000001", "ref 1")

	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, domain.MutationDebit, ms[0].Kind)
	assert.True(t, ms[0].Amount.Equal(decimal.NewFromInt(-2000)))
}

func TestTransactionsClient_AppendBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactions/batch", r.URL.Path)

		var req dto.AppendBatchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ref-1", req.ReferenceID)
		if assert.Len(t, req.Entries, 2) {
			assert.Equal(t, "-2000.00", req.Entries[0].Amount)
		}

		entries := make([]dto.TransactionDTO, len(req.Entries))
		for i, e := range req.Entries {
			entries[i] = dto.TransactionDTO{
				ID:          uuid.New(),
				ReferenceID: req.ReferenceID,
				AccountID:   e.AccountID,
				Amount:      e.Amount,
				Type:        e.Type,
				Status:      "COMPLETED",
			}
		}
		handler.RespondSuccess(w, http.StatusCreated, dto.BatchDTO{ReferenceID: req.ReferenceID, Created: true, Entries: entries})
	}))
	defer srv.Close()

	c := NewTransactionsClient(srv.URL, testOptions())
	res, err := c.AppendBatch(context.Background(), "ref-1", []domain.TransactionEntry{
		{AccountID: "A", Amount: decimal.NewFromInt(-2000), Type: domain.TransactionTypeInternalTransfer},
		{AccountID: "B", Amount: decimal.NewFromInt(2000), Type: domain.TransactionTypeInternalTransfer},
	})

	require.NoError(t, err)
	assert.True(t, res.Created)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, domain.TransactionStatusCompleted, res.Entries[1].Status)
	assert.True(t, res.Entries[1].Amount.Equal(decimal.NewFromInt(2000)))
}

func TestTransactionsClient_ReferenceMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, "REFERENCE_MISMATCH")
	}))
	defer srv.Close()

	c := NewTransactionsClient(srv.URL, testOptions())
	_, err := c.AppendBatch(context.Background(), "ref-1", []domain.TransactionEntry{
		{AccountID: "A", Amount: decimal.NewFromInt(10), Type: domain.TransactionTypeDeposit},
	})

	require.ErrorIs(t, err, domain.ErrReferenceMismatch)
	assert.False(t, domain.IsRetryable(err))
}
