// Package matchlog persists the per-record resolution audit trail
package matchlog

import (
	"context"
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

// Repository handles match log persistence
type Repository struct {
	db            database.DB
	logger        ectologger.Logger
	reviewCeiling float64
}

// NewRepository creates a new match log repository. Rows below the review
// ceiling (plus unresolved rows) are what ListForReview surfaces.
func NewRepository(db database.DB, logger ectologger.Logger, reviewCeiling float64) *Repository {
	return &Repository{
		db:            db,
		logger:        logger,
		reviewCeiling: reviewCeiling,
	}
}

// row mirrors the player_match_log table. match_details is stored as jsonb.
type row struct {
	ID                string                              `db:"id"`
	EntityID          *string                             `db:"entity_id"`
	SourceDisplayName string                              `db:"source_display_name"`
	SourceExternalID  string                              `db:"source_external_id"`
	SourceTag         string                              `db:"source_tag"`
	MatchConfidence   float64                             `db:"match_confidence"`
	MatchMethod       string                              `db:"match_method"`
	MatchDetails      database.JSONB[models.MatchDetails] `db:"match_details"`
	CreatedAt         time.Time                           `db:"created_at"`
}

// CreateBatch inserts one audit row per attempted resolution
func (r *Repository) CreateBatch(ctx context.Context, entries []models.MatchLogEntry) error {
	ctx, span := tracing.StartSpan(ctx, "matchlog.Repository.CreateBatch")
	defer span.End()

	if len(entries) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("player_match_log")
	sb.Cols("id", "entity_id", "source_display_name", "source_external_id", "source_tag", "match_confidence", "match_method", "match_details", "created_at")
	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := entry.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		details := database.JSONB[models.MatchDetails]{Data: entry.MatchDetails}
		sb.Values(id, entry.EntityID, entry.SourceDisplayName, entry.SourceExternalID, entry.SourceTag, entry.MatchConfidence, string(entry.MatchMethod), details, createdAt)
	}

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create match log entries")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to write match log")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entries": len(entries),
	}).Debug("Created match log entries")

	return nil
}

// ListForReview returns the most recent rows needing human attention:
// unresolved records and matches below the review confidence ceiling.
func (r *Repository) ListForReview(ctx context.Context, limit int) ([]models.MatchLogEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "matchlog.Repository.ListForReview")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "entity_id", "source_display_name", "source_external_id", "source_tag", "match_confidence", "match_method", "match_details", "created_at")
	sb.From("player_match_log")
	sb.Where(
		sb.Or(
			sb.LessThan("match_confidence", r.reviewCeiling),
			sb.Equal("match_method", string(models.MatchMethodUnresolved)),
		),
	)
	sb.OrderBy("created_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	rows := []row{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match log entries for review")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load match log")
	}

	entries := make([]models.MatchLogEntry, len(rows))
	for i, r := range rows {
		entries[i] = models.MatchLogEntry{
			ID:                r.ID,
			EntityID:          r.EntityID,
			SourceDisplayName: r.SourceDisplayName,
			SourceExternalID:  r.SourceExternalID,
			SourceTag:         r.SourceTag,
			MatchConfidence:   r.MatchConfidence,
			MatchMethod:       models.MatchMethod(r.MatchMethod),
			MatchDetails:      r.MatchDetails.Data,
			CreatedAt:         r.CreatedAt,
		}
	}

	return entries, nil
}
