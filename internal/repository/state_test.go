package repository

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
	"github.com/rocketscienceinc/gamesync-backend/testing/suite"
)

func TestStateRepository_Save(t *testing.T) {
	ctx, st := suite.New(t)

	stateRepo := NewStateRepository(st.Storage)

	// Given: a state with a payload and version
	state := &entity.State{
		G:       json.RawMessage(`{"cells":["X","","","","","","","",""]}`),
		Ctx:     entity.Ctx{NumPlayers: 2, CurrentPlayer: "1", TurnNum: 1},
		Version: 1,
	}

	// When: Save is called
	err := stateRepo.Save(ctx, "match-123", state)

	// Then: no error should be returned
	require.NoError(t, err)
}

func TestStateRepository_GetByID(t *testing.T) {
	t.Run("GetByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		stateRepo := NewStateRepository(st.Storage)

		// Given: a stored state
		state := &entity.State{
			G:       json.RawMessage(`{"cells":["","","","","","","","",""]}`),
			Ctx:     entity.Ctx{NumPlayers: 2, CurrentPlayer: "0"},
			Version: 0,
		}

		err := stateRepo.Save(ctx, "match-123", state)
		require.NoError(t, err)

		// When: GetByID is called with the existing ID
		retrieved, err := stateRepo.GetByID(ctx, "match-123")

		// Then: the retrieved state should match the saved one
		require.NoError(t, err)
		require.Equal(t, state.Version, retrieved.Version)
		require.Equal(t, state.Ctx, retrieved.Ctx)
		require.JSONEq(t, string(state.G), string(retrieved.G))
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		stateRepo := NewStateRepository(st.Storage)

		// When: GetByID is called with a non-existent ID
		retrieved, err := stateRepo.GetByID(ctx, "no-such-match")

		// Then: an ErrStateNotFound error should be returned
		require.Error(t, err)
		assert.Equal(t, ErrStateNotFound, err)
		assert.Nil(t, retrieved)
	})
}

func TestStateRepository_DeleteByID(t *testing.T) {
	ctx, st := suite.New(t)

	stateRepo := NewStateRepository(st.Storage)

	// Given: a stored state
	state := &entity.State{
		Ctx:     entity.Ctx{NumPlayers: 2, CurrentPlayer: "0"},
		Version: 3,
	}

	err := stateRepo.Save(ctx, "match-123", state)
	require.NoError(t, err)

	// When: DeleteByID is called with the existing ID
	err = stateRepo.DeleteByID(ctx, "match-123")

	// Then: the state is gone
	require.NoError(t, err)

	_, err = stateRepo.GetByID(ctx, "match-123")
	require.Error(t, err)
	assert.Equal(t, ErrStateNotFound, err)
}
