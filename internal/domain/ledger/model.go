// Package ledger provides double-entry style account balances.
//
// Every balance change is recorded as an Entry. Multi-step operations
// (Transfer) compose single-step ones (Deposit, Withdraw); each step runs in
// its own transaction boundary and joins the enclosing one when present.
package ledger

import (
	"strings"
	"time"

	"txboundary/internal/core/apperror"
	"txboundary/internal/core/id"
	"txboundary/internal/core/types"
)

// Account holds a balance.
type Account struct {
	ID        id.ID       `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Balance   types.Money `db:"balance" json:"balance"`
	Version   int         `db:"version" json:"version"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}

// NewAccount creates an account with zero balance.
func NewAccount(name string) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidation("account name is required")
	}
	if len(name) > 200 {
		return nil, apperror.NewValidation("account name is too long").WithDetail("max", 200)
	}

	now := time.Now().UTC()
	return &Account{
		ID:        id.New(),
		Name:      name,
		Balance:   types.Zero(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Apply changes the balance by amount (negative for debits).
func (a *Account) Apply(amount types.Money) {
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now().UTC()
}

// EntryKind classifies ledger entries.
type EntryKind string

const (
	EntryOpening    EntryKind = "opening"
	EntryDeposit    EntryKind = "deposit"
	EntryWithdrawal EntryKind = "withdrawal"
)

// Entry is one signed balance change.
type Entry struct {
	ID         id.ID       `db:"id" json:"id"`
	AccountID  id.ID       `db:"account_id" json:"accountId"`
	TransferID *id.ID      `db:"transfer_id" json:"transferId,omitempty"`
	Kind       EntryKind   `db:"kind" json:"kind"`
	Amount     types.Money `db:"amount" json:"amount"`
	Memo       string      `db:"memo" json:"memo"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
}

// Transfer is the result of moving funds between two accounts.
type Transfer struct {
	ID     id.ID       `json:"id"`
	From   *Account    `json:"from"`
	To     *Account    `json:"to"`
	Amount types.Money `json:"amount"`
}

func validateAmount(amount types.Money) error {
	if !amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").WithDetail("amount", amount.String())
	}
	if !amount.Equal(amount.Truncate(types.MoneyScale)) {
		return apperror.NewValidation("amount has too many fractional digits").
			WithDetail("amount", amount.String())
	}
	return nil
}

// EventTransferCompleted is published when a transfer commits.
const EventTransferCompleted = "TransferCompleted"

// TransferCompleted is the payload of EventTransferCompleted.
type TransferCompleted struct {
	TransferID id.ID       `json:"transferId"`
	From       id.ID       `json:"from"`
	To         id.ID       `json:"to"`
	Amount     types.Money `json:"amount"`
	Memo       string      `json:"memo,omitempty"`
}
