package merging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midfield-app/clover/pkg/models"
)

type fakeRatingsStore struct {
	err     error
	topicID string
	tag     string
	entry   models.RatingsEntry
	calls   int
}

func (f *fakeRatingsStore) ReplaceRatingsEntry(_ context.Context, topicID, sourceTag string, entry models.RatingsEntry) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.topicID = topicID
	f.tag = sourceTag
	f.entry = entry
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestEngineApply(t *testing.T) {
	store := &fakeRatingsStore{}
	engine := NewEngine(testLogger(), store, "sofifa")

	resolvedAt := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	result := &models.MatchResult{
		Record: &models.ScrapedPlayer{
			SofifaID:  "231747",
			Name:      "Kylian Mbappé",
			Overall:   91,
			Potential: 94,
			FullStats: map[string]any{"pace": 97.0},
		},
		EntityID:   "t-1",
		Method:     models.MatchMethodExactScoped,
		Confidence: 0.9,
		Timestamp:  resolvedAt,
	}

	err := engine.Apply(context.Background(), result)
	require.NoError(t, err)

	assert.Equal(t, "t-1", store.topicID)
	assert.Equal(t, "sofifa", store.tag)
	assert.Equal(t, "231747", store.entry.ID)
	assert.Equal(t, "kylian-mbappé", store.entry.Slug)
	assert.Equal(t, 91.0, store.entry.Overall)
	assert.Equal(t, 94.0, store.entry.Potential)
	assert.Equal(t, map[string]any{"pace": 97.0}, store.entry.Stats)
	assert.Equal(t, 0.9, store.entry.MatchConfidence)
	assert.Equal(t, resolvedAt, store.entry.LastUpdated)
}

func TestEngineApplyUnresolved(t *testing.T) {
	store := &fakeRatingsStore{}
	engine := NewEngine(testLogger(), store, "sofifa")

	result := &models.MatchResult{
		Record: &models.ScrapedPlayer{Name: "Unknown Player", Overall: 60},
		Method: models.MatchMethodUnresolved,
	}

	err := engine.Apply(context.Background(), result)
	require.Error(t, err)
	assert.Equal(t, 0, store.calls)
}

func TestEngineApplyStoreError(t *testing.T) {
	store := &fakeRatingsStore{err: errors.New("deadlock detected")}
	engine := NewEngine(testLogger(), store, "sofifa")

	result := &models.MatchResult{
		Record:     &models.ScrapedPlayer{Name: "Kylian Mbappé", Overall: 91},
		EntityID:   "t-1",
		Method:     models.MatchMethodID,
		Confidence: 1.0,
		Timestamp:  time.Now().UTC(),
	}

	err := engine.Apply(context.Background(), result)
	require.Error(t, err)
	assert.ErrorContains(t, err, "t-1")
}
