package tx

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"txboundary/pkg/logger"
)

var tracer = otel.Tracer("txboundary/tx")

var errGoexit = errors.New("goroutine exited during transaction")

// Compile-time check that Boundary implements Manager interface.
var _ Manager = (*Boundary)(nil)

// Boundary begins, joins and resolves transactions around operations.
//
// A Boundary keeps no state between calls. Whether a call owns the
// transaction ("local") is decided once, on entry, from the handle's active
// flag. Only the owner commits or rolls back; a joined call that fails marks
// the transaction rollback-only and leaves resolution to the owner.
//
// Failures of the wrapped operation are returned unchanged (panics are
// re-raised with the original value). Rollback failures are logged and never
// surfaced. A failed commit is surfaced as *CommitError.
type Boundary struct {
	provider Provider
	log      *logger.Logger
	name     string
	outcomes metric.Int64Counter
}

// Option configures a Boundary.
type Option func(*Boundary)

// WithLogger sets the logger used for state transition diagnostics.
// Without it the logger is taken from the call context.
func WithLogger(log *logger.Logger) Option {
	return func(b *Boundary) {
		b.log = log
	}
}

// WithName labels spans, logs and metrics produced by the boundary.
func WithName(name string) Option {
	return func(b *Boundary) {
		b.name = name
	}
}

// NewBoundary creates a boundary that takes handles from provider.
//
// Panics if provider is nil.
func NewBoundary(provider Provider, opts ...Option) *Boundary {
	if provider == nil {
		panic("tx.NewBoundary: provider must not be nil")
	}

	b := &Boundary{
		provider: provider,
		name:     "default",
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.outcomes == nil {
		b.outcomes = newOutcomeCounter()
	}
	return b
}

// Name returns the boundary label.
func (b *Boundary) Name() string {
	return b.name
}

// Run executes fn inside a transaction boundary.
//
// Panics if fn is nil.
func (b *Boundary) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		panic("tx.Boundary.Run: fn must not be nil")
	}

	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RunInTransaction implements Manager.
func (b *Boundary) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.Run(ctx, fn)
}

// Call executes fn inside boundary b and returns its result.
//
// When fn fails, its result and error are returned exactly as fn returned
// them. When the commit of a local transaction fails, the zero value and a
// *CommitError are returned.
//
// Panics if fn is nil.
func Call[T any](ctx context.Context, b *Boundary, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		panic("tx.Call: fn must not be nil")
	}

	ctx, span := tracer.Start(ctx, "tx.boundary",
		trace.WithAttributes(attribute.String("tx.boundary", b.name)),
	)
	defer span.End()

	inv, err := b.enter(ctx, span)
	if err != nil {
		return zero, err
	}

	result, err := invoke(ctx, b, inv, fn)
	if err != nil {
		b.abort(ctx, inv, err)
		return result, err
	}

	if err := b.complete(ctx, inv); err != nil {
		return zero, err
	}
	return result, nil
}

// invocation is the stack-local state of one call.
type invocation struct {
	handle Handle
	local  bool
	log    *logger.Logger
	span   trace.Span
}

// enter obtains the handle and begins a local transaction when none is active.
func (b *Boundary) enter(ctx context.Context, span trace.Span) (*invocation, error) {
	log := b.logger(ctx)

	handle, err := b.provider.Handle(ctx)
	if err == nil && handle == nil {
		err = errNilHandle
	}
	if err != nil {
		log.Errorw("cannot obtain transaction handle", "error", err)
		b.fail(ctx, span, OutcomeProviderFailed, err)
		return nil, fmt.Errorf("%w: %w", ErrNoHandle, err)
	}
	log.Debugw("retrieved transaction handle", "handle", handle)

	inv := &invocation{
		handle: handle,
		local:  !handle.IsActive(),
		log:    log,
		span:   span,
	}
	span.SetAttributes(attribute.Bool("tx.local", inv.local))

	if !inv.local {
		log.Debugw("transaction already active, joining", "handle", handle)
		return inv, nil
	}

	log.Debugw("beginning transaction", "handle", handle)
	if err := handle.Begin(ctx); err != nil {
		log.Errorw("cannot begin transaction", "handle", handle, "error", err)
		b.fail(ctx, span, OutcomeBeginFailed, err)
		return nil, fmt.Errorf("%w: %w", ErrBegin, err)
	}
	return inv, nil
}

// invoke runs fn. If fn panics (or calls runtime.Goexit) the transaction is
// resolved as a failure before unwinding continues with the original value.
func invoke[T any](ctx context.Context, b *Boundary, inv *invocation, fn func(ctx context.Context) (T, error)) (result T, err error) {
	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		if r == nil {
			b.abort(ctx, inv, errGoexit)
			return
		}
		b.abort(ctx, inv, fmt.Errorf("panic: %v", r))
		panic(r)
	}()

	result, err = fn(ctx)
	returned = true
	return result, err
}

// abort resolves the transaction after the operation failed with cause.
func (b *Boundary) abort(ctx context.Context, inv *invocation, cause error) {
	h := inv.handle
	inv.span.RecordError(cause)
	inv.span.SetStatus(codes.Error, cause.Error())

	switch {
	case inv.local && (h.IsActive() || h.IsRollbackOnly()):
		inv.log.Debugw("rolling back local transaction", "handle", h, "cause", cause)
		b.rollback(ctx, inv, cause)
		b.finish(ctx, inv, OutcomeRollback)
	case !h.IsRollbackOnly():
		inv.log.Debugw("marking transaction rollback-only", "handle", h, "cause", cause)
		h.MarkRollbackOnly()
		b.finish(ctx, inv, OutcomeMarkRollbackOnly)
	default:
		inv.log.Debugw("transaction already rollback-only", "handle", h, "cause", cause)
		b.finish(ctx, inv, OutcomeMarkRollbackOnly)
	}
}

// complete resolves the transaction after the operation succeeded.
func (b *Boundary) complete(ctx context.Context, inv *invocation) error {
	h := inv.handle

	if !inv.local {
		inv.log.Debugw("not committing joined transaction", "handle", h)
		b.finish(ctx, inv, OutcomeJoin)
		return nil
	}

	if !h.IsActive() {
		inv.log.Debugw("local transaction no longer active", "handle", h)
		b.finish(ctx, inv, OutcomeNone)
		return nil
	}

	if h.IsRollbackOnly() {
		inv.log.Debugw("rolling back transaction marked rollback-only", "handle", h)
		b.rollback(ctx, inv, nil)
		b.finish(ctx, inv, OutcomeRollback)
		return nil
	}

	if err := h.Commit(ctx); err != nil {
		inv.span.RecordError(err)
		inv.span.SetStatus(codes.Error, err.Error())
		if h.IsActive() {
			inv.log.Debugw("rolling back transaction after failed commit", "handle", h, "error", err)
			b.rollback(ctx, inv, err)
		}
		b.finish(ctx, inv, OutcomeCommitFailed)
		return &CommitError{Err: err}
	}

	inv.log.Debugw("committed transaction", "handle", h)
	b.finish(ctx, inv, OutcomeCommit)
	return nil
}

// rollback never reports its failure to the caller. The rollback runs even
// when ctx is already cancelled.
func (b *Boundary) rollback(ctx context.Context, inv *invocation, cause error) {
	if err := inv.handle.Rollback(context.WithoutCancel(ctx)); err != nil {
		inv.log.Errorw("rollback failed", "handle", inv.handle, "error", err, "cause", cause)
		inv.span.RecordError(err)
	}
}

func (b *Boundary) finish(ctx context.Context, inv *invocation, outcome Outcome) {
	inv.span.SetAttributes(attribute.String("tx.outcome", string(outcome)))
	b.record(ctx, outcome)
}

func (b *Boundary) fail(ctx context.Context, span trace.Span, outcome Outcome, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("tx.outcome", string(outcome)))
	b.record(ctx, outcome)
}

func (b *Boundary) logger(ctx context.Context) *logger.Logger {
	if b.log != nil {
		return b.log.WithContext(ctx).With("boundary", b.name)
	}
	return logger.FromContext(ctx).With("boundary", b.name)
}
