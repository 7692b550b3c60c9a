// Package merging applies resolved ratings onto canonical player topics
package merging

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/midfield-app/clover/pkg/models"
	"github.com/midfield-app/clover/pkg/normalizers"
	"github.com/midfield-app/clover/pkg/tracing"
)

// RatingsStore persists one source's ratings entry onto a topic without
// touching other sources' entries.
type RatingsStore interface {
	ReplaceRatingsEntry(ctx context.Context, topicID, sourceTag string, entry models.RatingsEntry) error
}

// Engine turns match results into source-tagged ratings bag writes
type Engine struct {
	logger    ectologger.Logger
	store     RatingsStore
	sourceTag string
}

// NewEngine creates a new merge engine for the given source tag
func NewEngine(logger ectologger.Logger, store RatingsStore, sourceTag string) *Engine {
	return &Engine{
		logger:    logger,
		store:     store,
		sourceTag: sourceTag,
	}
}

// Apply writes the resolved record's ratings under this engine's source tag.
// Only the source's own key in the bag is replaced; entries from other
// sources survive untouched. Applying the same result twice converges on the
// same stored state.
func (e *Engine) Apply(ctx context.Context, result *models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.Apply")
	defer span.End()

	if !result.Matched() {
		return fmt.Errorf("cannot merge unresolved record %q", result.Record.Name)
	}

	entry := e.buildEntry(result)
	if err := e.store.ReplaceRatingsEntry(ctx, result.EntityID, e.sourceTag, entry); err != nil {
		return fmt.Errorf("failed to merge ratings for topic %s: %w", result.EntityID, err)
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":  result.EntityID,
		"source_tag": e.sourceTag,
		"overall":    entry.Overall,
	}).Debug("Merged ratings entry")

	return nil
}

// buildEntry derives the stored bag entry from a match result. The slug comes
// from the scraped display name, not the canonical title, so the entry
// records what the source actually called the player.
func (e *Engine) buildEntry(result *models.MatchResult) models.RatingsEntry {
	record := result.Record
	return models.RatingsEntry{
		ID:              record.SofifaID,
		Slug:            normalizers.Slugify(record.Name),
		Overall:         record.Overall,
		Potential:       record.Potential,
		Stats:           record.FullStats,
		MatchConfidence: result.Confidence,
		LastUpdated:     result.Timestamp,
	}
}
