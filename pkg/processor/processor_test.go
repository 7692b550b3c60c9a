package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midfield-app/clover/pkg/candidates"
	"github.com/midfield-app/clover/pkg/kafka"
	"github.com/midfield-app/clover/pkg/matching"
	"github.com/midfield-app/clover/pkg/merging"
	"github.com/midfield-app/clover/pkg/models"
)

type fakeStore struct {
	teams     map[string]*models.Topic
	rosters   map[string][]models.Topic
	global    map[string]*models.Topic
	ratingErr error

	merged []string
}

func (f *fakeStore) GetTeamByName(_ context.Context, name string) (*models.Topic, error) {
	return f.teams[strings.ToLower(name)], nil
}

func (f *fakeStore) ListPlayersByTeam(_ context.Context, teamID string) ([]models.Topic, error) {
	return f.rosters[teamID], nil
}

func (f *fakeStore) GetPlayerByName(_ context.Context, name string) (*models.Topic, error) {
	return f.global[strings.ToLower(name)], nil
}

func (f *fakeStore) ReplaceRatingsEntry(_ context.Context, topicID, _ string, _ models.RatingsEntry) error {
	if f.ratingErr != nil {
		return f.ratingErr
	}
	f.merged = append(f.merged, topicID)
	return nil
}

type fakeMatchLog struct {
	err     error
	entries []models.MatchLogEntry
}

func (f *fakeMatchLog) CreateBatch(_ context.Context, entries []models.MatchLogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

type fakeHealer struct {
	created bool
	err     error
	calls   int
	player  string
	team    string
}

func (f *fakeHealer) EnsureMemberOf(_ context.Context, playerID, teamID string) (bool, error) {
	f.calls++
	f.player = playerID
	f.team = teamID
	return f.created, f.err
}

type fakeEmitter struct {
	err     error
	team    string
	results []*models.MatchResult
}

func (f *fakeEmitter) EmitBatchResolved(_ context.Context, team string, results []*models.MatchResult) error {
	if f.err != nil {
		return f.err
	}
	f.team = team
	f.results = results
	return nil
}

type fixture struct {
	store     *fakeStore
	matchLog  *fakeMatchLog
	healer    *fakeHealer
	emitter   *fakeEmitter
	processor *Processor
}

func newFixture(store *fakeStore, config Config) *fixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f := &fixture{
		store:    store,
		matchLog: &fakeMatchLog{},
		healer:   &fakeHealer{created: true},
		emitter:  &fakeEmitter{},
	}
	f.processor = NewProcessor(
		logger,
		candidates.NewBuilder(logger, store),
		matching.NewEngine(logger, store, matching.DefaultConfig()),
		merging.NewEngine(logger, store, config.SourceTag),
		f.matchLog,
		f.healer,
		f.emitter,
		config,
	)
	return f
}

func defaultTestConfig() Config {
	return Config{SourceTag: "sofifa", WorkerCount: 2, HealingEnabled: true}
}

func realMadrid() *fakeStore {
	return &fakeStore{
		teams: map[string]*models.Topic{
			"real madrid": {ID: "club-1", Title: "Real Madrid", Type: models.TopicTypeClub},
		},
		rosters: map[string][]models.Topic{
			"club-1": {
				{ID: "p-1", Title: "Jude Bellingham", Type: models.TopicTypePlayer},
				{ID: "p-2", Title: "Vinícius Júnior", Type: models.TopicTypePlayer},
			},
		},
	}
}

func TestProcessBatch(t *testing.T) {
	f := newFixture(realMadrid(), defaultTestConfig())

	batch := &models.SyncBatchRequest{
		Team: "Real Madrid",
		Players: []models.ScrapedPlayer{
			{SofifaID: "252371", Name: "Jude Bellingham", Overall: 90},
			{SofifaID: "238794", Name: "Vinicius Junior", Overall: 90},
			{SofifaID: "999999", Name: "Some Unknown Youth Player", Overall: 55},
		},
	}

	summary, err := f.processor.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 0, summary.Healed)
	assert.ElementsMatch(t, []string{"p-1", "p-2"}, f.store.merged)

	require.Len(t, f.matchLog.entries, 3)
	byName := map[string]models.MatchLogEntry{}
	for _, entry := range f.matchLog.entries {
		byName[entry.SourceDisplayName] = entry
		assert.Equal(t, "sofifa", entry.SourceTag)
		assert.Equal(t, "Real Madrid", entry.MatchDetails.Team)
		assert.NotEmpty(t, entry.ID)
	}
	require.NotNil(t, byName["Jude Bellingham"].EntityID)
	assert.Equal(t, "p-1", *byName["Jude Bellingham"].EntityID)
	assert.Nil(t, byName["Some Unknown Youth Player"].EntityID)
	assert.Equal(t, models.MatchMethodUnresolved, byName["Some Unknown Youth Player"].MatchMethod)

	assert.Equal(t, "Real Madrid", f.emitter.team)
	assert.Len(t, f.emitter.results, 3)
}

func TestProcessBatchValidation(t *testing.T) {
	tests := []struct {
		name  string
		batch *models.SyncBatchRequest
	}{
		{
			name:  "missing team",
			batch: &models.SyncBatchRequest{Players: []models.ScrapedPlayer{{Name: "A", Overall: 70}}},
		},
		{
			name:  "empty players",
			batch: &models.SyncBatchRequest{Team: "Real Madrid", Players: []models.ScrapedPlayer{}},
		},
		{
			name: "player missing name",
			batch: &models.SyncBatchRequest{
				Team:    "Real Madrid",
				Players: []models.ScrapedPlayer{{Overall: 70}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(realMadrid(), defaultTestConfig())

			summary, err := f.processor.ProcessBatch(context.Background(), tt.batch)
			require.ErrorIs(t, err, ErrInvalidBatch)
			assert.Nil(t, summary)
			assert.Empty(t, f.matchLog.entries)
		})
	}
}

func TestProcessBatchUnknownTeam(t *testing.T) {
	f := newFixture(&fakeStore{}, defaultTestConfig())

	batch := &models.SyncBatchRequest{
		Team: "Nonexistent FC",
		Players: []models.ScrapedPlayer{
			{Name: "Somebody", Overall: 70},
		},
	}

	summary, err := f.processor.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Matched)
	require.Len(t, f.matchLog.entries, 1)
	assert.Equal(t, models.MatchMethodUnresolved, f.matchLog.entries[0].MatchMethod)
}

func TestProcessBatchHealing(t *testing.T) {
	store := realMadrid()
	store.global = map[string]*models.Topic{
		"kylian mbappe": {ID: "p-9", Title: "Kylian Mbappe", Type: models.TopicTypePlayer},
	}

	batch := &models.SyncBatchRequest{
		Team: "Real Madrid",
		Players: []models.ScrapedPlayer{
			// Not on the stored roster yet; resolves via global fallback.
			{SofifaID: "231747", Name: "Kylian Mbappe", Overall: 91},
		},
	}

	t.Run("heals missing membership", func(t *testing.T) {
		f := newFixture(store, defaultTestConfig())
		f.store.merged = nil

		summary, err := f.processor.ProcessBatch(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Matched)
		assert.Equal(t, 1, summary.Healed)
		assert.Equal(t, "p-9", f.healer.player)
		assert.Equal(t, "club-1", f.healer.team)
	})

	t.Run("healing disabled", func(t *testing.T) {
		config := defaultTestConfig()
		config.HealingEnabled = false
		f := newFixture(store, config)
		f.store.merged = nil

		summary, err := f.processor.ProcessBatch(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Matched)
		assert.Equal(t, 0, summary.Healed)
		assert.Equal(t, 0, f.healer.calls)
	})

	t.Run("healer failure does not fail the batch", func(t *testing.T) {
		f := newFixture(store, defaultTestConfig())
		f.store.merged = nil
		f.healer.err = errors.New("relationship insert failed")

		summary, err := f.processor.ProcessBatch(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Matched)
		assert.Equal(t, 0, summary.Healed)
	})
}

func TestProcessBatchMergeFailureDoesNotCascade(t *testing.T) {
	store := realMadrid()
	store.ratingErr = errors.New("deadlock detected")
	f := newFixture(store, defaultTestConfig())

	batch := &models.SyncBatchRequest{
		Team: "Real Madrid",
		Players: []models.ScrapedPlayer{
			{Name: "Jude Bellingham", Overall: 90},
		},
	}

	summary, err := f.processor.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Matched)
	assert.Len(t, f.matchLog.entries, 1)
}

func TestProcessBatchMatchLogFailure(t *testing.T) {
	f := newFixture(realMadrid(), defaultTestConfig())
	f.matchLog.err = errors.New("connection refused")

	batch := &models.SyncBatchRequest{
		Team: "Real Madrid",
		Players: []models.ScrapedPlayer{
			{Name: "Jude Bellingham", Overall: 90},
		},
	}

	_, err := f.processor.ProcessBatch(context.Background(), batch)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidBatch)
}

func TestProcessBatchEmitterFailureIsBestEffort(t *testing.T) {
	f := newFixture(realMadrid(), defaultTestConfig())
	f.emitter.err = errors.New("broker unavailable")

	batch := &models.SyncBatchRequest{
		Team: "Real Madrid",
		Players: []models.ScrapedPlayer{
			{Name: "Jude Bellingham", Overall: 90},
		},
	}

	summary, err := f.processor.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Matched)
}

func TestHandleMessage(t *testing.T) {
	t.Run("valid batch is processed", func(t *testing.T) {
		f := newFixture(realMadrid(), defaultTestConfig())

		msg := &kafka.IncomingMessage{
			Value: []byte(`{"team":"Real Madrid","players":[{"name":"Jude Bellingham","overall":90}]}`),
		}
		require.NoError(t, f.processor.HandleMessage(context.Background(), msg))
		assert.Len(t, f.matchLog.entries, 1)
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		f := newFixture(realMadrid(), defaultTestConfig())

		msg := &kafka.IncomingMessage{Value: []byte(`{not json`)}
		require.NoError(t, f.processor.HandleMessage(context.Background(), msg))
		assert.Empty(t, f.matchLog.entries)
	})

	t.Run("invalid batch is dropped", func(t *testing.T) {
		f := newFixture(realMadrid(), defaultTestConfig())

		msg := &kafka.IncomingMessage{Value: []byte(`{"team":"","players":[]}`)}
		require.NoError(t, f.processor.HandleMessage(context.Background(), msg))
		assert.Empty(t, f.matchLog.entries)
	})

	t.Run("infrastructure failure propagates for redelivery", func(t *testing.T) {
		f := newFixture(realMadrid(), defaultTestConfig())
		f.matchLog.err = errors.New("connection refused")

		msg := &kafka.IncomingMessage{
			Value: []byte(`{"team":"Real Madrid","players":[{"name":"Jude Bellingham","overall":90}]}`),
		}
		require.Error(t, f.processor.HandleMessage(context.Background(), msg))
	})
}
