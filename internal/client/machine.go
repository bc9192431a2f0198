// Package client implements the client half of the synchronization protocol:
// an optimistic local store whose dispatch path forwards allow-listed actions
// to the server, reconciled by authoritative full-state snapshots.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
	"github.com/rocketscienceinc/gamesync-backend/internal/game"
)

// Phase is the connection lifecycle of the machine.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseAwaitingSeat
	PhaseSeated
)

func (that Phase) String() string {
	switch that {
	case PhaseAwaitingSeat:
		return "awaiting_seat"
	case PhaseSeated:
		return "seated"
	default:
		return "disconnected"
	}
}

// Sender is the outbound half of the wire protocol. Delivery is
// fire-and-forget: a lost message just means the local state diverges until
// the next snapshot.
type Sender interface {
	SendHandshake(playerName string, matchID *string, seat *int, numPlayers int) error
	SendAction(action entity.Action, matchID string, seat *int) error
}

// Machine keeps the local optimistic copy of a match's state.
type Machine struct {
	logger     *slog.Logger
	reducer    game.Reducer
	sender     Sender
	forward    map[string]struct{}
	playerName string
	numPlayers int

	mu      sync.Mutex
	phase   Phase
	matchID *string
	seat    *int
	state   *entity.State

	seated     chan struct{}
	seatedOnce sync.Once
}

// NewMachine builds a machine for one connection. forwardTypes is the
// allow-list of action types that go to the server; everything else stays
// local.
func NewMachine(logger *slog.Logger, reducer game.Reducer, sender Sender, playerName string, numPlayers int, forwardTypes []string) *Machine {
	forward := make(map[string]struct{}, len(forwardTypes))
	for _, t := range forwardTypes {
		forward[t] = struct{}{}
	}

	return &Machine{
		logger:     logger.With("component", "client"),
		reducer:    reducer,
		sender:     sender,
		forward:    forward,
		playerName: playerName,
		numPlayers: numPlayers,
		seated:     make(chan struct{}),
	}
}

// Connect sends the initial handshake. With no match id yet this asks the
// server for a seat.
func (that *Machine) Connect() error {
	that.mu.Lock()
	if that.phase == PhaseDisconnected {
		that.phase = PhaseAwaitingSeat
	}
	matchID, seat := that.matchID, that.seat
	that.mu.Unlock()

	if err := that.sender.SendHandshake(that.playerName, matchID, seat, that.numPlayers); err != nil {
		return fmt.Errorf("failed to send handshake: %w", err)
	}

	return nil
}

// Dispatch applies an action to the local state immediately (the optimistic
// update) and, when its type is allow-listed, forwards it to the server
// tagged with the version the local store saw before applying.
func (that *Machine) Dispatch(action entity.Action) {
	that.dispatch(action, false)
}

// dispatch is the single apply path. fromServer is the provenance flag:
// server-originated dispatches are never re-forwarded, which is what keeps
// snapshot replays from echoing back over the wire.
func (that *Machine) dispatch(action entity.Action, fromServer bool) {
	that.mu.Lock()

	var knownVersion int64
	if that.state != nil {
		knownVersion = that.state.Version
	}

	if that.state != nil {
		next, err := that.reducer.Apply(that.state, action)
		if err != nil {
			that.logger.Debug("local apply rejected", "type", action.Type, "error", err)
		} else {
			next.Version = that.state.Version + 1
			that.state = next
		}
	}

	_, forwarded := that.forward[action.Type]
	matchID, seat := that.matchID, that.seat
	that.mu.Unlock()

	if fromServer || !forwarded || matchID == nil {
		return
	}

	action.Version = knownVersion
	if err := that.sender.SendAction(action, *matchID, seat); err != nil {
		that.logger.Debug("failed to send action", "type", action.Type, "error", err)
	}
}

// HandleSnapshot reconciles an authoritative push: snapshots for the current
// match replace the local state wholesale, optimistic divergence included.
// Snapshots for any other match are ignored.
func (that *Machine) HandleSnapshot(matchID string, state *entity.State) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.matchID == nil || *that.matchID != matchID {
		return
	}

	that.state = state.Clone()
}

// HandleJoin records the matchmaking result and unblocks WaitSeated.
func (that *Machine) HandleJoin(matchID string, seat int) {
	that.mu.Lock()
	that.matchID = &matchID
	that.seat = &seat
	that.phase = PhaseSeated
	that.mu.Unlock()

	that.logger.Info("joined match", "player", that.playerName, "matchID", matchID, "seat", seat)

	that.seatedOnce.Do(func() {
		close(that.seated)
	})
}

// WaitSeated blocks until the server confirms a seat assignment.
func (that *Machine) WaitSeated(ctx context.Context) error {
	select {
	case <-that.seated:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for seat: %w", ctx.Err())
	}
}

// UpdateMatchID swaps the claimed match and re-handshakes to fetch the
// current authoritative snapshot under the new identity.
func (that *Machine) UpdateMatchID(matchID string) error {
	that.mu.Lock()
	that.matchID = &matchID
	that.mu.Unlock()

	return that.Connect()
}

// UpdateSeat swaps the claimed seat (nil for observer) and re-handshakes.
func (that *Machine) UpdateSeat(seat *int) error {
	that.mu.Lock()
	that.seat = seat
	that.mu.Unlock()

	return that.Connect()
}

// State returns a copy of the local state, or nil before the first snapshot.
func (that *Machine) State() *entity.State {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.state == nil {
		return nil
	}
	return that.state.Clone()
}

func (that *Machine) CurrentPhase() Phase {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.phase
}

func (that *Machine) MatchID() *string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.matchID
}

func (that *Machine) Seat() *int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.seat
}
