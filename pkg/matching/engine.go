// Package matching implements tiered resolution of scraped player records
// against canonical player topics
package matching

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/midfield-app/clover/pkg/models"
	"github.com/midfield-app/clover/pkg/normalizers"
	"github.com/midfield-app/clover/pkg/tracing"
)

// GlobalPlayerStore is the narrow store surface the unscoped fallback needs
type GlobalPlayerStore interface {
	// GetPlayerByName returns the player topic whose title matches the given
	// name case-insensitively, or nil when no such topic exists. Errors are
	// infrastructure failures, never "not found".
	GetPlayerByName(ctx context.Context, name string) (*models.Topic, error)
}

// EngineConfig contains configuration for the resolution engine
type EngineConfig struct {
	SourceTag                string  // attribute bag key for this source (default: "sofifa")
	FuzzyThreshold           float64 // strict lower bound for fuzzy scoped acceptance (default: 0.85)
	ExactConfidence          float64 // fixed confidence for exact scoped matches (default: 0.9)
	GlobalFallbackConfidence float64 // fixed confidence for global fallback matches (default: 0.85)
	GlobalFallbackMinOverall float64 // overall rating a record must exceed to qualify for global fallback (default: 85)
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		SourceTag:                "sofifa",
		FuzzyThreshold:           0.85,
		ExactConfidence:          0.9,
		GlobalFallbackConfidence: 0.85,
		GlobalFallbackMinOverall: 85,
	}
}

// strategyFunc attempts one resolution strategy. A nil result means the
// strategy did not accept; the driver moves on to the next one.
type strategyFunc func(ctx context.Context, record *models.ScrapedPlayer, normalizedName string, candidates []models.Topic) (*models.MatchResult, error)

// Engine resolves scraped records through an ordered list of strategies,
// short-circuiting at the first accepted match. The order is a contract:
// id, exact scoped, fuzzy scoped, global fallback.
type Engine struct {
	logger     ectologger.Logger
	store      GlobalPlayerStore
	scorer     *Scorer
	config     EngineConfig
	strategies []strategyFunc
}

// NewEngine creates a new resolution engine
func NewEngine(logger ectologger.Logger, store GlobalPlayerStore, config EngineConfig) *Engine {
	e := &Engine{
		logger: logger,
		store:  store,
		scorer: NewScorer(),
		config: config,
	}
	e.strategies = []strategyFunc{
		e.matchByID,
		e.matchExactScoped,
		e.matchFuzzyScoped,
		e.matchGlobalFallback,
	}
	return e
}

// Resolve maps one scraped record onto a canonical player, or reports it
// unresolved. Unresolved is an outcome, not an error; errors are reserved for
// store failures.
func (e *Engine) Resolve(ctx context.Context, record *models.ScrapedPlayer, candidates []models.Topic) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Resolve")
	defer span.End()

	normalizedName := normalizers.NormalizeDisplayName(record.Name)

	for _, strat := range e.strategies {
		result, err := strat(ctx, record, normalizedName, candidates)
		if err != nil {
			return nil, err
		}
		if result != nil {
			result.Record = record
			result.Timestamp = time.Now().UTC()
			e.logger.WithContext(ctx).WithFields(map[string]any{
				"name":       record.Name,
				"entity_id":  result.EntityID,
				"method":     result.Method,
				"confidence": result.Confidence,
			}).Debug("Resolved scraped record")
			return result, nil
		}
	}

	return &models.MatchResult{
		Record:     record,
		Method:     models.MatchMethodUnresolved,
		Confidence: 0.0,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// matchByID accepts when exactly one scoped candidate's ratings bag already
// carries this record's external id from a prior sync. Ambiguity (two
// candidates with the same id) falls through rather than guessing.
func (e *Engine) matchByID(ctx context.Context, record *models.ScrapedPlayer, normalizedName string, candidates []models.Topic) (*models.MatchResult, error) {
	if record.SofifaID == "" {
		return nil, nil
	}

	var found *models.Topic
	for i := range candidates {
		entry, ok := candidates[i].Ratings.Data[e.config.SourceTag]
		if !ok || entry.ID != record.SofifaID {
			continue
		}
		if found != nil {
			e.logger.WithContext(ctx).WithFields(map[string]any{
				"sofifa_id": record.SofifaID,
			}).Warn("External id appears on multiple scoped candidates, skipping id match")
			return nil, nil
		}
		found = &candidates[i]
	}

	if found == nil {
		return nil, nil
	}

	return &models.MatchResult{
		EntityID:   found.ID,
		Method:     models.MatchMethodID,
		Confidence: 1.0,
	}, nil
}

// matchExactScoped accepts when a scoped candidate's normalized canonical name
// equals the record's normalized name, or their last tokens agree (surname
// heuristic, so "l. messi" resolves to "lionel messi"). The surname heuristic
// can false-positive when two players on one roster share a surname; the
// first candidate in store order wins. Upstream does not specify a tie-break,
// so none is attempted here.
func (e *Engine) matchExactScoped(ctx context.Context, record *models.ScrapedPlayer, normalizedName string, candidates []models.Topic) (*models.MatchResult, error) {
	if normalizedName == "" {
		return nil, nil
	}
	lastToken := normalizers.LastToken(normalizedName)

	for i := range candidates {
		candidateName := normalizers.NormalizeDisplayName(candidates[i].Title)
		if candidateName == normalizedName || (lastToken != "" && normalizers.LastToken(candidateName) == lastToken) {
			return &models.MatchResult{
				EntityID:   candidates[i].ID,
				Method:     models.MatchMethodExactScoped,
				Confidence: e.config.ExactConfidence,
			}, nil
		}
	}

	return nil, nil
}

// matchFuzzyScoped scores every scoped candidate with Jaro-Winkler and
// accepts the best one when it is strictly above the threshold.
func (e *Engine) matchFuzzyScoped(ctx context.Context, record *models.ScrapedPlayer, normalizedName string, candidates []models.Topic) (*models.MatchResult, error) {
	if normalizedName == "" {
		return nil, nil
	}

	bestScore := 0.0
	bestID := ""
	for i := range candidates {
		candidateName := normalizers.NormalizeDisplayName(candidates[i].Title)
		score := e.scorer.JaroWinkler(candidateName, normalizedName)
		if score > bestScore {
			bestScore = score
			bestID = candidates[i].ID
		}
	}

	if bestID == "" || bestScore <= e.config.FuzzyThreshold {
		return nil, nil
	}

	return &models.MatchResult{
		EntityID:   bestID,
		Method:     models.MatchMethodFuzzyScoped,
		Confidence: bestScore,
	}, nil
}

// matchGlobalFallback queries the store globally for an exact-name player
// match. Gated on the record's overall rating so that ungrounded global
// matching is only risked for records important enough to justify it.
func (e *Engine) matchGlobalFallback(ctx context.Context, record *models.ScrapedPlayer, normalizedName string, candidates []models.Topic) (*models.MatchResult, error) {
	if record.Overall <= e.config.GlobalFallbackMinOverall {
		return nil, nil
	}

	topic, err := e.store.GetPlayerByName(ctx, record.Name)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, nil
	}

	return &models.MatchResult{
		EntityID:   topic.ID,
		Method:     models.MatchMethodGlobalFallback,
		Confidence: e.config.GlobalFallbackConfidence,
	}, nil
}
