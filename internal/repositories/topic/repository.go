// Package topic persists canonical player and club topics
package topic

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/midfield-app/clover/pkg/database"
	"github.com/midfield-app/clover/pkg/models"
	"github.com/midfield-app/clover/pkg/tracing"
)

// RelationshipMemberOf links a player topic to the club topic they play for
const RelationshipMemberOf = "member_of"

// Repository handles topic persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new topic repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetTeamByName retrieves a club topic by case-insensitive title. Returns
// nil when no such club exists.
func (r *Repository) GetTeamByName(ctx context.Context, name string) (*models.Topic, error) {
	ctx, span := tracing.StartSpan(ctx, "topic.Repository.GetTeamByName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "title", "type", "ratings")
	sb.From("topics")
	sb.Where(
		sb.ILike("title", name),
		sb.Equal("type", models.TopicTypeClub),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get team by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to look up team")
	}

	return &topic, nil
}

// ListPlayersByTeam retrieves every player topic with a member_of
// relationship to the given club.
func (r *Repository) ListPlayersByTeam(ctx context.Context, teamID string) ([]models.Topic, error) {
	ctx, span := tracing.StartSpan(ctx, "topic.Repository.ListPlayersByTeam")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("t.id", "t.title", "t.type", "t.ratings")
	sb.From("topics t")
	sb.Join("relationships r", "r.from_topic_id = t.id")
	sb.Where(
		sb.Equal("r.to_topic_id", teamID),
		sb.Equal("r.type", RelationshipMemberOf),
		sb.Equal("t.type", models.TopicTypePlayer),
	)
	sb.OrderBy("t.title")

	query, args := sb.Build()
	players := []models.Topic{}
	if err := r.db.SelectContext(ctx, &players, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list players by team")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load team roster")
	}

	return players, nil
}

// GetPlayerByName retrieves a player topic by case-insensitive title,
// unscoped by team. Returns nil when no such player exists.
func (r *Repository) GetPlayerByName(ctx context.Context, name string) (*models.Topic, error) {
	ctx, span := tracing.StartSpan(ctx, "topic.Repository.GetPlayerByName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "title", "type", "ratings")
	sb.From("topics")
	sb.Where(
		sb.ILike("title", name),
		sb.Equal("type", models.TopicTypePlayer),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get player by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to look up player")
	}

	return &topic, nil
}

// ReplaceRatingsEntry writes one source's entry into the topic's ratings bag.
// The jsonb concatenation replaces only the source's own key; entries from
// other sources are untouched. Replaying the same entry is a no-op.
func (r *Repository) ReplaceRatingsEntry(ctx context.Context, topicID, sourceTag string, entry models.RatingsEntry) error {
	ctx, span := tracing.StartSpan(ctx, "topic.Repository.ReplaceRatingsEntry")
	defer span.End()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	query := `
		UPDATE topics
		SET ratings = COALESCE(ratings, '{}'::jsonb) || jsonb_build_object($2::text, $3::jsonb),
		    updated_at = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, topicID, sourceTag, data, time.Now().UTC())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to replace ratings entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update ratings")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "topic not found")
	}

	return nil
}

// EnsureMemberOf creates the member_of relationship between a player and a
// club if it does not already exist. Returns true when a row was created.
func (r *Repository) EnsureMemberOf(ctx context.Context, playerID, teamID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "topic.Repository.EnsureMemberOf")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("relationships")
	sb.Cols("id", "from_topic_id", "to_topic_id", "type", "created_at")
	sb.Values(uuid.NewString(), playerID, teamID, RelationshipMemberOf, time.Now().UTC())
	sb.SQL("ON CONFLICT (from_topic_id, to_topic_id, type) DO NOTHING")

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to ensure member_of relationship")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create relationship")
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
