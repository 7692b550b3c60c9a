// Package events handles event emission for resolution outcomes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/midfield-app/clover/pkg/kafka"
	"github.com/midfield-app/clover/pkg/models"
	"github.com/midfield-app/clover/pkg/tracing"
)

// Event types emitted per resolved record
const (
	EventPlayerMatched    = "player.matched"
	EventPlayerUnresolved = "player.unresolved"
)

// ResolutionPublisher publishes resolution events downstream
type ResolutionPublisher interface {
	PublishResolutionEvents(ctx context.Context, events []*kafka.ResolutionEvent) error
}

// Emitter translates match results into resolution events
type Emitter struct {
	publisher ResolutionPublisher
	logger    ectologger.Logger
	sourceTag string
}

// NewEmitter creates a new resolution event emitter
func NewEmitter(publisher ResolutionPublisher, logger ectologger.Logger, sourceTag string) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
		sourceTag: sourceTag,
	}
}

// EmitBatchResolved publishes one event per record in the batch, matched and
// unresolved alike, so downstream consumers see the full resolution picture.
func (e *Emitter) EmitBatchResolved(ctx context.Context, team string, results []*models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatchResolved")
	defer span.End()

	if len(results) == 0 {
		return nil
	}

	events := make([]*kafka.ResolutionEvent, 0, len(results))
	for _, result := range results {
		eventType := EventPlayerUnresolved
		if result.Matched() {
			eventType = EventPlayerMatched
		}

		events = append(events, &kafka.ResolutionEvent{
			EventType:        eventType,
			EntityID:         result.EntityID,
			SourceTag:        e.sourceTag,
			SourceExternalID: result.Record.SofifaID,
			DisplayName:      result.Record.Name,
			Team:             team,
			MatchMethod:      string(result.Method),
			MatchConfidence:  result.Confidence,
			Timestamp:        result.Timestamp,
		})
	}

	if err := e.publisher.PublishResolutionEvents(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit resolution events")
		return err
	}

	return nil
}
