package tx

import (
	"context"
)

// Handle is one unit of work against a resource.
//
// A handle is confined to a single call stack. It is owned by whatever
// Provider vends it; Boundary only observes and transitions its state.
//
//	Inactive --Begin--> Active --MarkRollbackOnly--> ActiveRollbackOnly
//	Active --Commit--> Inactive
//	Active | ActiveRollbackOnly --Rollback--> Inactive
type Handle interface {
	IsActive() bool
	IsRollbackOnly() bool

	// Begin starts a fresh transaction. A new transaction is never rollback-only.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// MarkRollbackOnly flags the active transaction so that its owner rolls
	// it back instead of committing. The flag is only cleared by Begin.
	MarkRollbackOnly()
}

// Provider vends the handle for the current call.
// It is consulted once per Boundary invocation.
type Provider interface {
	Handle(ctx context.Context) (Handle, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Handle, error)

// Handle implements Provider.
func (f ProviderFunc) Handle(ctx context.Context) (Handle, error) {
	return f(ctx)
}
