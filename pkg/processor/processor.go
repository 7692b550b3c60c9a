// Package processor orchestrates batch resolution: validate, scope, match,
// merge, heal, audit, emit.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/midfield-app/clover/pkg/candidates"
	"github.com/midfield-app/clover/pkg/kafka"
	"github.com/midfield-app/clover/pkg/matching"
	"github.com/midfield-app/clover/pkg/merging"
	"github.com/midfield-app/clover/pkg/models"
	"github.com/midfield-app/clover/pkg/tracing"
)

// ErrInvalidBatch marks structurally invalid payloads. Transport layers map
// it to a client error instead of retrying.
var ErrInvalidBatch = errors.New("invalid sync batch")

// MatchLogStore persists audit rows for attempted resolutions
type MatchLogStore interface {
	CreateBatch(ctx context.Context, entries []models.MatchLogEntry) error
}

// RelationshipHealer repairs missing member_of relationships for players
// that resolved outside the team scope. Returns true when a relationship was
// created.
type RelationshipHealer interface {
	EnsureMemberOf(ctx context.Context, playerID, teamID string) (bool, error)
}

// ResolutionEmitter publishes per-record resolution outcomes downstream
type ResolutionEmitter interface {
	EmitBatchResolved(ctx context.Context, team string, results []*models.MatchResult) error
}

// Config configures batch processing
type Config struct {
	SourceTag      string
	WorkerCount    int
	HealingEnabled bool
}

// Processor runs one scraped roster batch through the resolution pipeline
type Processor struct {
	logger    ectologger.Logger
	validate  *validator.Validate
	candidate *candidates.Builder
	matcher   *matching.Engine
	merger    *merging.Engine
	matchLog  MatchLogStore
	healer    RelationshipHealer
	emitter   ResolutionEmitter
	config    Config
}

// NewProcessor creates a new batch processor
func NewProcessor(
	logger ectologger.Logger,
	candidate *candidates.Builder,
	matcher *matching.Engine,
	merger *merging.Engine,
	matchLog MatchLogStore,
	healer RelationshipHealer,
	emitter ResolutionEmitter,
	config Config,
) *Processor {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	return &Processor{
		logger:    logger,
		validate:  validator.New(),
		candidate: candidate,
		matcher:   matcher,
		merger:    merger,
		matchLog:  matchLog,
		healer:    healer,
		emitter:   emitter,
		config:    config,
	}
}

// ProcessBatch resolves every record in the batch against the scraped team's
// roster. Record-level failures never cascade: a record that errors is
// audited as unresolved and the rest of the batch proceeds. The audit log is
// the one hard dependency; if it cannot be written the batch fails, and a
// replay converges because merges are idempotent.
func (p *Processor) ProcessBatch(ctx context.Context, batch *models.SyncBatchRequest) (*models.BatchSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessBatch")
	defer span.End()

	if err := p.validate.Struct(batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"team":    batch.Team,
		"records": len(batch.Players),
	})
	log.Info("Processing ratings batch")

	set, err := p.candidate.Build(ctx, batch.Team)
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate set for %q: %w", batch.Team, err)
	}

	results := p.resolveAll(ctx, batch, set)

	summary := &models.BatchSummary{Processed: len(results)}
	for _, result := range results {
		if !result.Matched() {
			continue
		}
		if err := p.merger.Apply(ctx, result); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"name":      result.Record.Name,
				"entity_id": result.EntityID,
			}).Error("Failed to merge resolved record")
			continue
		}
		summary.Matched++

		if p.heal(ctx, result, set) {
			summary.Healed++
		}
	}

	if err := p.writeMatchLog(ctx, batch.Team, results); err != nil {
		return nil, fmt.Errorf("failed to write match log: %w", err)
	}

	if err := p.emitter.EmitBatchResolved(ctx, batch.Team, results); err != nil {
		// Best-effort: downstream notification must not fail an applied batch.
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to emit resolution events")
	}

	log.WithFields(map[string]any{
		"matched": summary.Matched,
		"healed":  summary.Healed,
	}).Info("Processed ratings batch")

	return summary, nil
}

// HandleMessage adapts ProcessBatch to the Kafka consumer. Malformed and
// structurally invalid payloads are logged and dropped so a poison message
// cannot wedge the partition; infrastructure errors propagate uncommitted
// for redelivery.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.HandleMessage")
	defer span.End()

	batch, err := msg.ParseBatchRequest()
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"offset": msg.Offset,
		}).Error("Dropping malformed batch message")
		return nil
	}

	_, err = p.ProcessBatch(ctx, batch)
	if errors.Is(err, ErrInvalidBatch) {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"offset": msg.Offset,
		}).Error("Dropping structurally invalid batch message")
		return nil
	}
	return err
}

// resolveAll fans records out over the worker pool. Results land at the
// record's own index, so batch order is preserved regardless of which worker
// finishes first.
func (p *Processor) resolveAll(ctx context.Context, batch *models.SyncBatchRequest, set *candidates.Set) []*models.MatchResult {
	results := make([]*models.MatchResult, len(batch.Players))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.config.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				record := &batch.Players[i]
				result, err := p.matcher.Resolve(ctx, record, set.Players)
				if err != nil {
					p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
						"name": record.Name,
					}).Error("Resolution failed, auditing record as unresolved")
					result = &models.MatchResult{
						Record:    record,
						Method:    models.MatchMethodUnresolved,
						Timestamp: time.Now().UTC(),
					}
				}
				results[i] = result
			}
		}()
	}

	for i := range batch.Players {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// heal repairs a missing member_of relationship for records that resolved
// through the global fallback, which by definition matched outside the
// scoped roster.
func (p *Processor) heal(ctx context.Context, result *models.MatchResult, set *candidates.Set) bool {
	if !p.config.HealingEnabled || set.Team == nil {
		return false
	}
	if result.Method != models.MatchMethodGlobalFallback {
		return false
	}

	created, err := p.healer.EnsureMemberOf(ctx, result.EntityID, set.Team.ID)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": result.EntityID,
			"team_id":   set.Team.ID,
		}).Warn("Failed to heal member_of relationship")
		return false
	}
	if created {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"entity_id": result.EntityID,
			"team_id":   set.Team.ID,
		}).Info("Healed missing member_of relationship")
	}
	return created
}

func (p *Processor) writeMatchLog(ctx context.Context, team string, results []*models.MatchResult) error {
	entries := make([]models.MatchLogEntry, 0, len(results))
	for _, result := range results {
		entry := models.MatchLogEntry{
			ID:                uuid.NewString(),
			SourceDisplayName: result.Record.Name,
			SourceExternalID:  result.Record.SofifaID,
			SourceTag:         p.config.SourceTag,
			MatchConfidence:   result.Confidence,
			MatchMethod:       result.Method,
			MatchDetails: models.MatchDetails{
				Overall: result.Record.Overall,
				Team:    team,
			},
			CreatedAt: result.Timestamp,
		}
		if result.Matched() {
			entityID := result.EntityID
			entry.EntityID = &entityID
		}
		entries = append(entries, entry)
	}
	return p.matchLog.CreateBatch(ctx, entries)
}
