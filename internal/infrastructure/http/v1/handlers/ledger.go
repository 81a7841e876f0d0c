package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"txboundary/internal/core/id"
	"txboundary/internal/core/types"
	"txboundary/internal/domain/ledger"
	"txboundary/internal/infrastructure/http/v1/dto"
)

// LedgerService is the subset of ledger.Service used by the HTTP layer.
type LedgerService interface {
	OpenAccount(ctx context.Context, name string, opening types.Money) (*ledger.Account, error)
	GetAccount(ctx context.Context, accountID id.ID) (*ledger.Account, error)
	Entries(ctx context.Context, accountID id.ID, limit int) ([]ledger.Entry, error)
	Deposit(ctx context.Context, accountID id.ID, amount types.Money, memo string) (*ledger.Account, error)
	Withdraw(ctx context.Context, accountID id.ID, amount types.Money, memo string) (*ledger.Account, error)
	Transfer(ctx context.Context, fromID, toID id.ID, amount types.Money, memo string) (*ledger.Transfer, error)
}

// LedgerHandler handles account and transfer endpoints.
type LedgerHandler struct {
	*BaseHandler
	service LedgerService
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, service LedgerService) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers ledger routes.
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/accounts")
	{
		accounts.POST("", h.OpenAccount)
		accounts.GET("/:id", h.GetAccount)
		accounts.GET("/:id/entries", h.Entries)
		accounts.POST("/:id/deposit", h.Deposit)
		accounts.POST("/:id/withdraw", h.Withdraw)
	}
	rg.POST("/transfers", h.Transfer)
}

// OpenAccount handles POST /accounts.
func (h *LedgerHandler) OpenAccount(c *gin.Context) {
	var req dto.OpenAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	acc, err := h.service.OpenAccount(c.Request.Context(), req.Name, req.OpeningBalance)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromAccount(acc))
}

// GetAccount handles GET /accounts/:id.
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	accountID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	acc, err := h.service.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAccount(acc))
}

// Entries handles GET /accounts/:id/entries.
func (h *LedgerHandler) Entries(c *gin.Context) {
	accountID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var q dto.EntriesQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = ledger.DefaultEntriesLimit
	}

	entries, err := h.service.Entries(c.Request.Context(), accountID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse[dto.EntryResponse]{Items: dto.FromEntries(entries), Limit: q.Limit})
}

// Deposit handles POST /accounts/:id/deposit.
func (h *LedgerHandler) Deposit(c *gin.Context) {
	h.post(c, h.service.Deposit)
}

// Withdraw handles POST /accounts/:id/withdraw.
func (h *LedgerHandler) Withdraw(c *gin.Context) {
	h.post(c, h.service.Withdraw)
}

func (h *LedgerHandler) post(c *gin.Context, op func(context.Context, id.ID, types.Money, string) (*ledger.Account, error)) {
	accountID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PostingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	acc, err := op(c.Request.Context(), accountID, req.Amount, req.Memo)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAccount(acc))
}

// Transfer handles POST /transfers.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	// Both ids passed the uuid binding rule.
	fromID, _ := id.Parse(req.FromAccountID)
	toID, _ := id.Parse(req.ToAccountID)

	t, err := h.service.Transfer(c.Request.Context(), fromID, toID, req.Amount, req.Memo)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromTransfer(t))
}
