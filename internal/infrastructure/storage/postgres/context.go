package postgres

import (
	"context"
	"errors"

	"txboundary/internal/core/tx"
)

// ErrNoSession is returned by ContextProvider when no session is bound.
var ErrNoSession = errors.New("postgres: no session bound to context")

// sessionKey is the context key for the bound Session.
type sessionKey struct{}

// WithSession binds s to ctx. Every transaction boundary running under the
// returned context uses s as its handle.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the bound session, or nil if none.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return s
	}
	return nil
}

// ContextProvider is a tx.Provider that hands out the session bound to the
// call context.
type ContextProvider struct{}

// Compile-time check that ContextProvider implements tx.Provider interface.
var _ tx.Provider = ContextProvider{}

// Handle implements tx.Provider.
func (ContextProvider) Handle(ctx context.Context) (tx.Handle, error) {
	if s := SessionFromContext(ctx); s != nil {
		return s, nil
	}
	return nil, ErrNoSession
}
