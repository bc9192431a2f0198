package tictactoe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gamesync-backend/internal/apperror"
	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
)

func moveAction(t *testing.T, cell int) entity.Action {
	t.Helper()

	payload, err := json.Marshal(MovePayload{Cell: cell})
	require.NoError(t, err)

	return entity.Action{Type: ActionMove, Payload: payload}
}

func boardOf(t *testing.T, state *entity.State) Board {
	t.Helper()

	var board Board
	require.NoError(t, json.Unmarshal(state.G, &board))
	return board
}

func TestReducer_Setup(t *testing.T) {
	r := &reducer{}

	// When: a two-player game is set up
	state, err := r.Setup(2)
	require.NoError(t, err)

	// Then: the board is empty and seat 0 is to move
	board := boardOf(t, state)
	assert.Equal(t, [9]string{}, board.Cells)
	assert.Equal(t, StatusOngoing, board.Status)
	assert.Equal(t, "0", state.Ctx.CurrentPlayer)
	assert.Equal(t, 2, state.Ctx.NumPlayers)

	// And: any other player count is refused
	_, err = r.Setup(3)
	require.Error(t, err)
}

func TestReducer_Apply(t *testing.T) {
	t.Run("should place the current player's mark and hand the turn over", func(t *testing.T) {
		r := &reducer{}

		state, err := r.Setup(2)
		require.NoError(t, err)

		// When: seat 0 plays cell 4
		next, err := r.Apply(state, moveAction(t, 4))
		require.NoError(t, err)

		// Then: X lands on the board and seat 1 is to move
		board := boardOf(t, next)
		assert.Equal(t, PlayerX, board.Cells[4])
		assert.Equal(t, "1", next.Ctx.CurrentPlayer)
		assert.Equal(t, 1, next.Ctx.TurnNum)

		// And: the original state is untouched
		assert.Equal(t, [9]string{}, boardOf(t, state).Cells)
		assert.Equal(t, "0", state.Ctx.CurrentPlayer)
	})

	t.Run("should reject a move into an occupied cell", func(t *testing.T) {
		r := &reducer{}

		state, err := r.Setup(2)
		require.NoError(t, err)

		state, err = r.Apply(state, moveAction(t, 0))
		require.NoError(t, err)

		_, err = r.Apply(state, moveAction(t, 0))
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
	})

	t.Run("should reject an out-of-range cell", func(t *testing.T) {
		r := &reducer{}

		state, err := r.Setup(2)
		require.NoError(t, err)

		_, err = r.Apply(state, moveAction(t, 9))
		require.ErrorIs(t, err, ErrInvalidCell)
	})

	t.Run("should reject an unknown action type", func(t *testing.T) {
		r := &reducer{}

		state, err := r.Setup(2)
		require.NoError(t, err)

		_, err = r.Apply(state, entity.Action{Type: "shuffle"})
		require.Error(t, err)
	})

	t.Run("should finish the game when a row is complete", func(t *testing.T) {
		r := &reducer{}

		state, err := r.Setup(2)
		require.NoError(t, err)

		// X: 0, 1, 2 wins; O: 3, 4
		for _, cell := range []int{0, 3, 1, 4, 2} {
			state, err = r.Apply(state, moveAction(t, cell))
			require.NoError(t, err)
		}

		board := boardOf(t, state)
		assert.Equal(t, StatusFinished, board.Status)
		assert.Equal(t, PlayerX, board.Winner)
		assert.Equal(t, "", state.Ctx.CurrentPlayer)

		// And: no further moves are accepted
		_, err = r.Apply(state, moveAction(t, 5))
		require.ErrorIs(t, err, apperror.ErrGameFinished)
	})

	t.Run("should finish with a tie on a full board", func(t *testing.T) {
		r := &reducer{}

		state, err := r.Setup(2)
		require.NoError(t, err)

		// X O X / X O O / O X X leaves no winner
		for _, cell := range []int{0, 1, 2, 4, 3, 6, 7, 5, 8} {
			state, err = r.Apply(state, moveAction(t, cell))
			require.NoError(t, err)
		}

		board := boardOf(t, state)
		assert.Equal(t, StatusFinished, board.Status)
		assert.Equal(t, PlayerTie, board.Winner)
	})
}
