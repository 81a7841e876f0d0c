package ledger

import (
	"context"

	"txboundary/internal/core/id"
)

// Repository defines persistence for accounts and entries.
// Implementations take the transaction from context.
type Repository interface {
	CreateAccount(ctx context.Context, acc *Account) error

	// GetAccount returns apperror NOT_FOUND for unknown ids.
	GetAccount(ctx context.Context, accountID id.ID) (*Account, error)

	// GetAccountForUpdate is GetAccount with a row lock.
	GetAccountForUpdate(ctx context.Context, accountID id.ID) (*Account, error)

	// UpdateBalance writes the balance with optimistic locking on Version
	// and increments Version on success.
	UpdateBalance(ctx context.Context, acc *Account) error

	InsertEntry(ctx context.Context, entry *Entry) error

	// ListEntries returns the newest entries first.
	ListEntries(ctx context.Context, accountID id.ID, limit int) ([]Entry, error)
}
