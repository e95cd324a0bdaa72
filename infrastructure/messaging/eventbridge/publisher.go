// Package eventbridge adapts ports.EventBus to AWS EventBridge, grounded
// on the teacher's infrastructure/messaging EventBridgePublisher
// (backend/internal/infrastructure/messaging/publisher.go): domain
// events are marshaled to JSON and sent through PutEvents in batches of
// at most ten entries, EventBridge's per-call limit.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"relevance-engine/domain/events"
	pkgerrors "relevance-engine/pkg/errors"
)

const batchSize = 10

// Publisher implements ports.EventBus over an EventBridge client.
type Publisher struct {
	client   *eventbridge.Client
	busName  string
	source   string
	logger   *zap.Logger
}

// NewPublisher builds a Publisher targeting busName (falling back to
// "default") with the given event source.
func NewPublisher(client *eventbridge.Client, busName, source string, logger *zap.Logger) *Publisher {
	if busName == "" {
		busName = "default"
	}
	if source == "" {
		source = "relevance-engine"
	}
	return &Publisher{client: client, busName: busName, source: source, logger: logger}
}

// Publish sends every event to EventBridge, batching at most ten
// entries per PutEvents call (spec §5: side-effect dispatch must be
// cancellation-safe and idempotent per memory id; EventBridge delivery
// itself is at-least-once).
func (p *Publisher) Publish(ctx context.Context, evts []events.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	for start := 0; start < len(evts); start += batchSize {
		end := start + batchSize
		if end > len(evts) {
			end = len(evts)
		}
		if err := p.publishBatch(ctx, evts[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, batch []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	for _, evt := range batch {
		detail, err := json.Marshal(evt)
		if err != nil {
			return pkgerrors.Wrap(err, "marshaling domain event")
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(evt.EventType()),
			Detail:       aws.String(string(detail)),
		})
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return pkgerrors.NewDependencyError("eventbridge put-events failed", err)
	}
	if out.FailedEntryCount > 0 {
		if p.logger != nil {
			p.logger.Warn("eventbridge reported failed entries", zap.Int32("failed", out.FailedEntryCount))
		}
		return pkgerrors.NewDependencyError(fmt.Sprintf("eventbridge rejected %d of %d entries", out.FailedEntryCount, len(entries)), nil)
	}
	return nil
}
