package candidates

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midfield-app/clover/pkg/models"
)

type fakeTeamStore struct {
	teams   map[string]*models.Topic
	rosters map[string][]models.Topic
	teamErr error
	listErr error
}

func (f *fakeTeamStore) GetTeamByName(_ context.Context, name string) (*models.Topic, error) {
	if f.teamErr != nil {
		return nil, f.teamErr
	}
	return f.teams[strings.ToLower(name)], nil
}

func (f *fakeTeamStore) ListPlayersByTeam(_ context.Context, teamID string) ([]models.Topic, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rosters[teamID], nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestBuilderBuild(t *testing.T) {
	store := &fakeTeamStore{
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
	builder := NewBuilder(testLogger(), store)

	set, err := builder.Build(context.Background(), "Real Madrid")
	require.NoError(t, err)
	require.NotNil(t, set.Team)
	assert.Equal(t, "club-1", set.Team.ID)
	assert.Len(t, set.Players, 2)
}

func TestBuilderBuildUnknownTeam(t *testing.T) {
	builder := NewBuilder(testLogger(), &fakeTeamStore{})

	set, err := builder.Build(context.Background(), "Nonexistent FC")
	require.NoError(t, err)
	assert.Nil(t, set.Team)
	assert.Empty(t, set.Players)
}

func TestBuilderBuildEmptyRoster(t *testing.T) {
	store := &fakeTeamStore{
		teams: map[string]*models.Topic{
			"newly promoted": {ID: "club-2", Title: "Newly Promoted", Type: models.TopicTypeClub},
		},
	}
	builder := NewBuilder(testLogger(), store)

	set, err := builder.Build(context.Background(), "Newly Promoted")
	require.NoError(t, err)
	require.NotNil(t, set.Team)
	assert.Empty(t, set.Players)
}

func TestBuilderBuildStoreErrors(t *testing.T) {
	t.Run("team lookup failure", func(t *testing.T) {
		store := &fakeTeamStore{teamErr: errors.New("connection refused")}
		builder := NewBuilder(testLogger(), store)

		set, err := builder.Build(context.Background(), "Real Madrid")
		require.Error(t, err)
		assert.Nil(t, set)
	})

	t.Run("roster lookup failure", func(t *testing.T) {
		store := &fakeTeamStore{
			teams: map[string]*models.Topic{
				"real madrid": {ID: "club-1", Title: "Real Madrid", Type: models.TopicTypeClub},
			},
			listErr: errors.New("connection refused"),
		}
		builder := NewBuilder(testLogger(), store)

		set, err := builder.Build(context.Background(), "Real Madrid")
		require.Error(t, err)
		assert.Nil(t, set)
	})
}
