// Package sync exposes the ratings sync API
package sync

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/midfield-app/clover/internal/repositories/matchlog"
	"github.com/midfield-app/clover/pkg/models"
	"github.com/midfield-app/clover/pkg/processor"
)

// Register registers ratings sync routes
func Register(g *echo.Group) {
	g.POST("/ratings", SyncRatings)
	g.GET("/matches/review", ListMatchesForReview)
}

// SyncRatings runs one scraped roster batch through the resolution pipeline
func SyncRatings(c echo.Context) error {
	ctx := c.Request().Context()

	var batch models.SyncBatchRequest
	if err := c.Bind(&batch); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, proc, err := ectoinject.GetContext[*processor.Processor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	summary, err := proc.ProcessBatch(ctx, &batch)
	if err != nil {
		if errors.Is(err, processor.ErrInvalidBatch) {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(http.StatusOK, models.SyncBatchResponse{
		Message:   "Ratings sync complete",
		Team:      batch.Team,
		Processed: summary.Processed,
		Matched:   summary.Matched,
		Healed:    summary.Healed,
	})
}

// ListMatchesForReview lists recent low-confidence and unresolved match log
// rows for human review
func ListMatchesForReview(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*matchlog.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entries, err := repo.ListForReview(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entries)
}
