package gamestore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gamesync-backend/internal/apperror"
	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
	"github.com/rocketscienceinc/gamesync-backend/internal/game"
	"github.com/rocketscienceinc/gamesync-backend/internal/repository"
	"github.com/rocketscienceinc/gamesync-backend/internal/tictactoe"
)

// memRepo is an in-memory StateRepository for unit tests.
type memRepo struct {
	mu     sync.Mutex
	states map[string]*entity.State
}

func newMemRepo() *memRepo {
	return &memRepo{states: make(map[string]*entity.State)}
}

func (that *memRepo) Save(_ context.Context, matchID string, state *entity.State) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.states[matchID] = state.Clone()
	return nil
}

func (that *memRepo) GetByID(_ context.Context, matchID string) (*entity.State, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	state, exists := that.states[matchID]
	if !exists {
		return nil, repository.ErrStateNotFound
	}
	return state.Clone(), nil
}

func (that *memRepo) DeleteByID(_ context.Context, matchID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.states, matchID)
	return nil
}

func newStore(t *testing.T) *Store {
	t.Helper()

	games := game.NewRegistry()
	require.NoError(t, games.Register(tictactoe.Game()))

	return New(newMemRepo(), games)
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	// When: a match was never created
	_, err := store.Get(ctx, "no-such-match")

	// Then: ErrMatchNotFound comes back
	require.ErrorIs(t, err, apperror.ErrMatchNotFound)
}

func TestStore_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	// When: the match is created twice
	first, err := store.CreateIfAbsent(ctx, "match-1", tictactoe.GameName, 2)
	require.NoError(t, err)

	second, err := store.CreateIfAbsent(ctx, "match-1", tictactoe.GameName, 2)
	require.NoError(t, err)

	// Then: both calls see the same initial state at version 0
	assert.Equal(t, int64(0), first.Version)
	assert.Equal(t, first, second)

	// And: an unknown game type is refused
	_, err = store.CreateIfAbsent(ctx, "match-2", "checkers", 2)
	require.ErrorIs(t, err, apperror.ErrUnknownGameType)
}

func TestStore_Apply(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	state, err := store.CreateIfAbsent(ctx, "match-1", tictactoe.GameName, 2)
	require.NoError(t, err)

	// When: an action is applied
	next, err := store.Apply(state, tictactoe.GameName, entity.Action{
		Type:    tictactoe.ActionMove,
		Payload: []byte(`{"cell":0}`),
	})
	require.NoError(t, err)

	// Then: the version advances by exactly one and the input is untouched
	assert.Equal(t, int64(1), next.Version)
	assert.Equal(t, int64(0), state.Version)

	// And: a reducer rejection surfaces as an error without a new state
	_, err = store.Apply(next, tictactoe.GameName, entity.Action{
		Type:    tictactoe.ActionMove,
		Payload: []byte(`{"cell":0}`),
	})
	require.ErrorIs(t, err, apperror.ErrCellOccupied)
}

func TestStore_Replace(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	state, err := store.CreateIfAbsent(ctx, "match-1", tictactoe.GameName, 2)
	require.NoError(t, err)

	next, err := store.Apply(state, tictactoe.GameName, entity.Action{
		Type:    tictactoe.ActionMove,
		Payload: []byte(`{"cell":4}`),
	})
	require.NoError(t, err)

	// When: the applied state is persisted
	require.NoError(t, store.Replace(ctx, "match-1", next))

	// Then: subsequent reads see it
	stored, err := store.Get(ctx, "match-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}
