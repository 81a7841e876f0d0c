package dto

import (
	"time"

	"txboundary/internal/core/types"
	"txboundary/internal/domain/ledger"
)

// --- Request DTOs ---

// OpenAccountRequest is the request body for opening an account.
type OpenAccountRequest struct {
	Name           string      `json:"name" binding:"required"`
	OpeningBalance types.Money `json:"openingBalance"`
}

// PostingRequest is the request body for deposits and withdrawals.
type PostingRequest struct {
	Amount types.Money `json:"amount"`
	Memo   string      `json:"memo" binding:"max=500"`
}

// TransferRequest is the request body for a transfer between accounts.
type TransferRequest struct {
	FromAccountID string      `json:"fromAccountId" binding:"required,uuid"`
	ToAccountID   string      `json:"toAccountId" binding:"required,uuid"`
	Amount        types.Money `json:"amount"`
	Memo          string      `json:"memo" binding:"max=500"`
}

// EntriesQuery holds query parameters for listing entries.
type EntriesQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// --- Response DTOs ---

// AccountResponse is the response DTO for an account.
type AccountResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Balance   types.Money `json:"balance"`
	Version   int         `json:"version"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FromAccount converts a domain account to its response DTO.
func FromAccount(a *ledger.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID.String(),
		Name:      a.Name,
		Balance:   a.Balance,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// EntryResponse is the response DTO for a ledger entry.
type EntryResponse struct {
	ID         string      `json:"id"`
	AccountID  string      `json:"accountId"`
	TransferID *string     `json:"transferId,omitempty"`
	Kind       string      `json:"kind"`
	Amount     types.Money `json:"amount"`
	Memo       string      `json:"memo,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// FromEntries converts domain entries to response DTOs.
func FromEntries(entries []ledger.Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		r := EntryResponse{
			ID:        e.ID.String(),
			AccountID: e.AccountID.String(),
			Kind:      string(e.Kind),
			Amount:    e.Amount,
			Memo:      e.Memo,
			CreatedAt: e.CreatedAt,
		}
		if e.TransferID != nil {
			s := e.TransferID.String()
			r.TransferID = &s
		}
		out = append(out, r)
	}
	return out
}

// TransferResponse is the response DTO for a completed transfer.
type TransferResponse struct {
	ID     string          `json:"id"`
	Amount types.Money     `json:"amount"`
	From   AccountResponse `json:"from"`
	To     AccountResponse `json:"to"`
}

// FromTransfer converts a domain transfer to its response DTO.
func FromTransfer(t *ledger.Transfer) TransferResponse {
	return TransferResponse{
		ID:     t.ID.String(),
		Amount: t.Amount,
		From:   FromAccount(t.From),
		To:     FromAccount(t.To),
	}
}
