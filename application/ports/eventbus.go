package ports

import (
	"context"

	"relevance-engine/domain/events"
)

// EventBus publishes domain events raised by aggregates once their
// owning write has durably landed in the document store (spec §4.5 step
// 5: async side effects are dispatched after the linearization-point
// write).
type EventBus interface {
	Publish(ctx context.Context, events []events.DomainEvent) error
}
