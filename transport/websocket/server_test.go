package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gamesync-backend/internal/client"
	"github.com/rocketscienceinc/gamesync-backend/internal/engine"
	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
	"github.com/rocketscienceinc/gamesync-backend/internal/game"
	"github.com/rocketscienceinc/gamesync-backend/internal/gamestore"
	"github.com/rocketscienceinc/gamesync-backend/internal/registry"
	"github.com/rocketscienceinc/gamesync-backend/internal/repository"
	"github.com/rocketscienceinc/gamesync-backend/internal/tictactoe"
)

// memRepo keeps state in memory so the transport test needs no Redis.
type memRepo struct {
	mu     sync.Mutex
	states map[string]*entity.State
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

func startTestServer(t *testing.T) string {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	games := game.NewRegistry()
	require.NoError(t, games.Register(tictactoe.Game()))

	store := gamestore.New(&memRepo{states: make(map[string]*entity.State)}, games)
	rooms := registry.New(time.Minute)

	srv := New(logger, nil)
	srv.Attach(engine.New(logger, games, store, rooms, srv, nil))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(rooms.Close)

	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + tictactoe.GameName
}

func dialMachine(t *testing.T, url, playerName string) *client.Machine {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	c, err := Dial(ctx, logger, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	m := client.NewMachine(logger, tictactoe.Game().Reducer, c, playerName, 2, []string{tictactoe.ActionMove})
	go func() { _ = c.Listen(m) }()

	require.NoError(t, m.Connect())
	require.NoError(t, m.WaitSeated(ctx))

	return m
}

func TestServer_EndToEnd(t *testing.T) {
	url := startTestServer(t)

	// Given: two clients seated through matchmaking
	machineA := dialMachine(t, url, "alice")
	machineB := dialMachine(t, url, "bob")

	require.NotNil(t, machineA.MatchID())
	require.NotNil(t, machineB.MatchID())
	assert.Equal(t, *machineA.MatchID(), *machineB.MatchID())

	require.NotNil(t, machineA.Seat())
	require.NotNil(t, machineB.Seat())
	assert.Equal(t, 0, *machineA.Seat())
	assert.Equal(t, 1, *machineB.Seat())

	// both start from the initial snapshot
	require.Eventually(t, func() bool {
		stateA, stateB := machineA.State(), machineB.State()
		return stateA != nil && stateB != nil
	}, 5*time.Second, 10*time.Millisecond)

	// When: player A makes the first move
	payload, err := json.Marshal(tictactoe.MovePayload{Cell: 4})
	require.NoError(t, err)
	machineA.Dispatch(entity.Action{Type: tictactoe.ActionMove, Payload: payload})

	// Then: the admitted action reaches both clients as a version-1 snapshot
	require.Eventually(t, func() bool {
		stateB := machineB.State()
		return stateB != nil && stateB.Version == 1
	}, 5*time.Second, 10*time.Millisecond)

	var board tictactoe.Board
	require.NoError(t, json.Unmarshal(machineB.State().G, &board))
	assert.Equal(t, tictactoe.PlayerX, board.Cells[4])

	// And: player B answers and the turn round-trips back to A
	reply, err := json.Marshal(tictactoe.MovePayload{Cell: 0})
	require.NoError(t, err)
	machineB.Dispatch(entity.Action{Type: tictactoe.ActionMove, Payload: reply})

	require.Eventually(t, func() bool {
		stateA := machineA.State()
		return stateA != nil && stateA.Version == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, json.Unmarshal(machineA.State().G, &board))
	assert.Equal(t, tictactoe.PlayerO, board.Cells[0])
}
