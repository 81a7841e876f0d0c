package tx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Outcome is the way one invocation left its transaction.
type Outcome string

const (
	OutcomeCommit           Outcome = "commit"
	OutcomeCommitFailed     Outcome = "commit_failed"
	OutcomeRollback         Outcome = "rollback"
	OutcomeMarkRollbackOnly Outcome = "mark_rollback_only"
	OutcomeJoin             Outcome = "join"
	OutcomeProviderFailed   Outcome = "provider_failed"
	OutcomeBeginFailed      Outcome = "begin_failed"
	OutcomeNone             Outcome = "none"
)

const meterName = "txboundary/tx"

func newOutcomeCounter() metric.Int64Counter {
	counter, err := otel.Meter(meterName).Int64Counter(
		"tx_boundary_outcomes_total",
		metric.WithDescription("Transaction boundary invocations by outcome"),
	)
	if err != nil {
		return noop.Int64Counter{}
	}
	return counter
}

func (b *Boundary) record(ctx context.Context, outcome Outcome) {
	b.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("boundary", b.name),
		attribute.String("outcome", string(outcome)),
	))
}
