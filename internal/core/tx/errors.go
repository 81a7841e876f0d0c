package tx

import (
	"errors"
)

var (
	// ErrNoHandle is returned when the provider cannot supply a handle.
	// This is a wiring defect, not a business failure.
	ErrNoHandle = errors.New("tx: no transaction handle")

	// ErrBegin is returned when a local transaction cannot be started.
	ErrBegin = errors.New("tx: begin transaction")

	// ErrCommit matches every *CommitError via errors.Is.
	ErrCommit = errors.New("tx: commit transaction")

	errNilHandle = errors.New("provider returned nil handle")
)

// CommitError is surfaced when an operation succeeded but committing the
// transaction it owned did not. Err is the driver's commit failure.
type CommitError struct {
	Err error
}

// Error implements error interface
func (e *CommitError) Error() string {
	return ErrCommit.Error() + ": " + e.Err.Error()
}

// Unwrap returns the commit failure for errors.Is/As support
func (e *CommitError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCommit.
func (e *CommitError) Is(target error) bool {
	return target == ErrCommit
}

// IsCommitFailure checks if err carries a commit failure.
func IsCommitFailure(err error) bool {
	var commitErr *CommitError
	return errors.As(err, &commitErr)
}

// IsInfrastructure reports whether err was produced by the boundary itself
// (provider, begin or commit) rather than by the wrapped operation.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrNoHandle) || errors.Is(err, ErrBegin) || errors.Is(err, ErrCommit)
}
