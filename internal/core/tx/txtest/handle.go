// Package txtest provides an in-memory tx.Handle for tests.
package txtest

import (
	"context"
	"errors"
	"fmt"

	"txboundary/internal/core/tx"
)

// Compile-time check that Handle implements tx.Handle interface.
var _ tx.Handle = (*Handle)(nil)

var (
	// ErrNotActive is returned by Commit and Rollback on an inactive handle.
	ErrNotActive = errors.New("txtest: transaction not active")

	// ErrAlreadyActive is returned by Begin on an active handle.
	ErrAlreadyActive = errors.New("txtest: transaction already active")

	// ErrRolledBack is returned by Commit on a rollback-only handle.
	// The handle is rolled back as a side effect.
	ErrRolledBack = errors.New("txtest: commit on rollback-only transaction rolled back")
)

// State of a Handle.
type State int

const (
	Inactive State = iota
	Active
	ActiveRollbackOnly
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case ActiveRollbackOnly:
		return "active-rollback-only"
	default:
		return "inactive"
	}
}

// Handle records every transition it goes through.
// Set the *Err fields to inject failures.
type Handle struct {
	active       bool
	rollbackOnly bool

	BeginErr    error
	CommitErr   error
	RollbackErr error

	// CommitDeactivates leaves the handle inactive when CommitErr is returned.
	CommitDeactivates bool

	Begins    int
	Commits   int
	Rollbacks int
	Marks     int

	// Journal lists calls in order: "begin", "commit", "rollback", "mark".
	Journal []string
}

// NewHandle returns an inactive handle.
func NewHandle() *Handle {
	return &Handle{}
}

// NewActiveHandle returns a handle with a transaction already in progress,
// as if begun by an enclosing caller.
func NewActiveHandle() *Handle {
	return &Handle{active: true}
}

// State returns the current state.
func (h *Handle) State() State {
	switch {
	case h.active && h.rollbackOnly:
		return ActiveRollbackOnly
	case h.active:
		return Active
	default:
		return Inactive
	}
}

func (h *Handle) IsActive() bool {
	return h.active
}

func (h *Handle) IsRollbackOnly() bool {
	return h.rollbackOnly
}

func (h *Handle) Begin(_ context.Context) error {
	h.Begins++
	h.Journal = append(h.Journal, "begin")
	if h.BeginErr != nil {
		return h.BeginErr
	}
	if h.active {
		return ErrAlreadyActive
	}
	h.active = true
	h.rollbackOnly = false
	return nil
}

func (h *Handle) Commit(_ context.Context) error {
	h.Commits++
	h.Journal = append(h.Journal, "commit")
	if !h.active {
		return ErrNotActive
	}
	if h.rollbackOnly {
		h.active = false
		return ErrRolledBack
	}
	if h.CommitErr != nil {
		if h.CommitDeactivates {
			h.active = false
		}
		return h.CommitErr
	}
	h.active = false
	return nil
}

func (h *Handle) Rollback(_ context.Context) error {
	h.Rollbacks++
	h.Journal = append(h.Journal, "rollback")
	if !h.active {
		return ErrNotActive
	}
	if h.RollbackErr != nil {
		return h.RollbackErr
	}
	h.active = false
	return nil
}

// MarkRollbackOnly is a no-op on an inactive handle.
func (h *Handle) MarkRollbackOnly() {
	h.Marks++
	h.Journal = append(h.Journal, "mark")
	if h.active {
		h.rollbackOnly = true
	}
}

func (h *Handle) String() string {
	return fmt.Sprintf("txtest.Handle(%s)", h.State())
}

// Provider always returns h.
func Provider(h tx.Handle) tx.Provider {
	return tx.ProviderFunc(func(context.Context) (tx.Handle, error) {
		return h, nil
	})
}

// FailingProvider always fails with err.
func FailingProvider(err error) tx.Provider {
	return tx.ProviderFunc(func(context.Context) (tx.Handle, error) {
		return nil, err
	})
}
