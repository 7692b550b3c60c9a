// Package candidates builds the team-scoped candidate set a batch resolves
// against
package candidates

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/midfield-app/clover/pkg/models"
	"github.com/midfield-app/clover/pkg/tracing"
)

// TeamStore is the store surface needed to scope candidates to a roster
type TeamStore interface {
	// GetTeamByName returns the club topic whose title matches the given name
	// case-insensitively, or nil when no such club exists.
	GetTeamByName(ctx context.Context, name string) (*models.Topic, error)
	// ListPlayersByTeam returns every player topic related to the club via a
	// member_of relationship.
	ListPlayersByTeam(ctx context.Context, teamID string) ([]models.Topic, error)
}

// Set is the scoped resolution context for one batch. Built once per batch
// and shared read-only by every record in it.
type Set struct {
	Team    *models.Topic  // nil when the scraped team name is unknown
	Players []models.Topic // empty when Team is nil
}

// Builder constructs candidate sets from the entity store
type Builder struct {
	logger ectologger.Logger
	store  TeamStore
}

// NewBuilder creates a new candidate set builder
func NewBuilder(logger ectologger.Logger, store TeamStore) *Builder {
	return &Builder{
		logger: logger,
		store:  store,
	}
}

// Build looks up the scraped team name and loads its roster. An unknown team
// is not an error: the batch still runs, with an empty scoped set, so that
// high-value records can resolve through the global fallback.
func (b *Builder) Build(ctx context.Context, teamName string) (*Set, error) {
	ctx, span := tracing.StartSpan(ctx, "candidates.Builder.Build")
	defer span.End()

	team, err := b.store.GetTeamByName(ctx, teamName)
	if err != nil {
		return nil, err
	}
	if team == nil {
		b.logger.WithContext(ctx).WithFields(map[string]any{
			"team": teamName,
		}).Warn("Team not found in entity store, resolving batch without scoped candidates")
		return &Set{}, nil
	}

	players, err := b.store.ListPlayersByTeam(ctx, team.ID)
	if err != nil {
		return nil, err
	}

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"team":       team.Title,
		"team_id":    team.ID,
		"candidates": len(players),
	}).Debug("Built scoped candidate set")

	return &Set{
		Team:    team,
		Players: players,
	}, nil
}
