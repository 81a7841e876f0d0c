// Package tx provides transaction demarcation.
//
// Boundary wraps an operation so that a transaction handle is begun before
// the operation runs and resolved after it returns. When the handle is
// already active the boundary joins the enclosing transaction instead and
// leaves resolution to whoever began it.
//
// The package defines the ports (Handle, Provider, Manager); concrete
// handles live in infrastructure/storage.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management used by domain services.
//
// The actual implementation lives in infrastructure/storage/postgres.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back (or marked
	// rollback-only when it was joined). If fn succeeds, it is committed.
	//
	// Nested calls join the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Within runs fn through m and returns its result.
// On any error the zero value is returned.
func Within[T any](ctx context.Context, m Manager, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := m.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
