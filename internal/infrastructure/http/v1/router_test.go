package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txboundary/internal/core/apperror"
	"txboundary/internal/core/id"
	"txboundary/internal/core/tx"
	"txboundary/internal/core/types"
	"txboundary/internal/domain/ledger"
	"txboundary/internal/infrastructure/http/v1/middleware"
	"txboundary/pkg/logger"
)

// fakeLedger returns canned results; err, when set, fails every call.
type fakeLedger struct {
	account  *ledger.Account
	err      error
	panicMsg string

	gotName   string
	gotAmount types.Money
	gotLimit  int
}

func (f *fakeLedger) OpenAccount(_ context.Context, name string, opening types.Money) (*ledger.Account, error) {
	f.gotName, f.gotAmount = name, opening
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

func (f *fakeLedger) GetAccount(_ context.Context, _ id.ID) (*ledger.Account, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

func (f *fakeLedger) Entries(_ context.Context, accountID id.ID, limit int) ([]ledger.Entry, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []ledger.Entry{{ID: id.New(), AccountID: accountID, Kind: ledger.EntryDeposit, Amount: types.MustMoney("1")}}, nil
}

func (f *fakeLedger) Deposit(_ context.Context, _ id.ID, amount types.Money, _ string) (*ledger.Account, error) {
	f.gotAmount = amount
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

func (f *fakeLedger) Withdraw(ctx context.Context, accountID id.ID, amount types.Money, memo string) (*ledger.Account, error) {
	return f.Deposit(ctx, accountID, amount, memo)
}

func (f *fakeLedger) Transfer(_ context.Context, _, _ id.ID, amount types.Money, _ string) (*ledger.Transfer, error) {
	f.gotAmount = amount
	if f.err != nil {
		return nil, f.err
	}
	return &ledger.Transfer{ID: id.New(), From: f.account, To: f.account, Amount: amount}, nil
}

func newTestRouter(svc *fakeLedger) http.Handler {
	return NewRouter(RouterConfig{Logger: logger.Nop(), Ledger: svc})
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func sampleAccount() *ledger.Account {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &ledger.Account{
		ID:        id.New(),
		Name:      "Operating",
		Balance:   types.MustMoney("100.5"),
		Version:   2,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(&fakeLedger{})

	rec, body := do(t, h, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = do(t, h, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_TraceHeaders(t *testing.T) {
	h := newTestRouter(&fakeLedger{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get(middleware.HeaderRequestID))
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderTraceID))
}

func TestRouter_OpenAccount(t *testing.T) {
	svc := &fakeLedger{account: sampleAccount()}
	h := newTestRouter(svc)

	rec, body := do(t, h, http.MethodPost, "/api/v1/accounts", `{"name":"Operating","openingBalance":"100.5"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Operating", svc.gotName)
	assert.True(t, svc.gotAmount.Equal(types.MustMoney("100.5")))
	assert.Equal(t, svc.account.ID.String(), body["id"])
	assert.Equal(t, "100.5", body["balance"])
}

func TestRouter_OpenAccount_InvalidBody(t *testing.T) {
	h := newTestRouter(&fakeLedger{})

	rec, body := do(t, h, http.MethodPost, "/api/v1/accounts", `{"openingBalance":"abc"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeValidation, body["code"])
}

func TestRouter_GetAccount_Errors(t *testing.T) {
	t.Run("malformed id", func(t *testing.T) {
		rec, body := do(t, newTestRouter(&fakeLedger{}), http.MethodGet, "/api/v1/accounts/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperror.CodeValidation, body["code"])
	})

	t.Run("not found", func(t *testing.T) {
		accountID := id.New()
		svc := &fakeLedger{err: apperror.NewNotFound("account", accountID)}
		rec, body := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/accounts/"+accountID.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, apperror.CodeNotFound, body["code"])
	})

	t.Run("unknown error is hidden", func(t *testing.T) {
		svc := &fakeLedger{err: errors.New("connection reset by peer")}
		rec, body := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/accounts/"+id.New().String(), "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, apperror.CodeInternal, body["code"])
		assert.NotContains(t, rec.Body.String(), "connection reset")
	})

	t.Run("panic", func(t *testing.T) {
		svc := &fakeLedger{panicMsg: "boom"}
		rec, body := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/accounts/"+id.New().String(), "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, apperror.CodeInternal, body["code"])
	})
}

func TestRouter_Entries_DefaultLimit(t *testing.T) {
	svc := &fakeLedger{}
	h := newTestRouter(svc)

	rec, body := do(t, h, http.MethodGet, "/api/v1/accounts/"+id.New().String()+"/entries", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ledger.DefaultEntriesLimit, svc.gotLimit)
	assert.Len(t, body["items"], 1)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/accounts/"+id.New().String()+"/entries?limit=1000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Withdraw_InsufficientFunds(t *testing.T) {
	svc := &fakeLedger{err: apperror.NewInsufficientFunds("a", "10", "5")}

	rec, body := do(t, newTestRouter(svc), http.MethodPost,
		"/api/v1/accounts/"+id.New().String()+"/withdraw", `{"amount":"10"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperror.CodeInsufficientFunds, body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "5", details["available"])
}

func TestRouter_Transfer(t *testing.T) {
	svc := &fakeLedger{account: sampleAccount()}
	payload := `{"fromAccountId":"` + id.New().String() + `","toAccountId":"` + id.New().String() + `","amount":"12.25"}`

	rec, body := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/transfers", payload)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "12.25", body["amount"])
	assert.True(t, svc.gotAmount.Equal(types.MustMoney("12.25")))
}

func TestRouter_Transfer_CommitFailure(t *testing.T) {
	svc := &fakeLedger{err: &tx.CommitError{Err: errors.New("could not serialize access")}}
	payload := `{"fromAccountId":"` + id.New().String() + `","toAccountId":"` + id.New().String() + `","amount":"1"}`

	rec, body := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/transfers", payload)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperror.CodeTransaction, body["code"])
	assert.NotContains(t, rec.Body.String(), "serialize")
	details := body["details"].(map[string]any)
	assert.NotEmpty(t, details["request_id"])
}

func TestRouter_Transfer_InvalidIDs(t *testing.T) {
	rec, body := do(t, newTestRouter(&fakeLedger{}), http.MethodPost, "/api/v1/transfers",
		`{"fromAccountId":"x","toAccountId":"y","amount":"1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeValidation, body["code"])
}
