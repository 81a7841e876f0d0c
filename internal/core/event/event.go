// Package event defines domain events and the port used to publish them.
package event

import (
	"context"

	"txboundary/internal/core/id"
)

// Event is a fact recorded by the domain, e.g. a completed transfer.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// Publisher records events. Implementations publish within the caller's
// transaction, so an event exists only if the surrounding work commits.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
