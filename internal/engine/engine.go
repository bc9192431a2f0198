// Package engine implements the server side of the synchronization protocol:
// seat handshakes, authoritative move admission and per-seat filtered
// broadcast.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gamesync-backend/internal/apperror"
	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
	"github.com/rocketscienceinc/gamesync-backend/internal/game"
	"github.com/rocketscienceinc/gamesync-backend/internal/gamestore"
	"github.com/rocketscienceinc/gamesync-backend/internal/registry"
)

type roomRegistry interface {
	RequestSeat(connID, gameType string, matchID *string, playerName string, capacity int) (string, int, bool, error)
	Attach(connID, gameType, matchID string, seat *int, playerName string, capacity int)
	ReleaseSeat(connID string)
	Leave(connID string)
	Occupants(matchID string) []registry.Occupant
	Match(matchID string) (entity.Match, bool)
	MatchCount() int
}

// SnapshotSender pushes server events to a single connection. The websocket
// server implements it; tests use a recording fake.
type SnapshotSender interface {
	SendJoin(connID, matchID string, seat int) error
	SendSnapshot(connID, matchID string, state *entity.State) error
}

type stats interface {
	SetActiveMatches(count int)
	ActionAdmitted()
	ActionRejected(reason string)
	SnapshotSent()
	ObserveBroadcast(duration time.Duration)
}

type Engine struct {
	logger *slog.Logger
	games  *game.Registry
	store  *gamestore.Store
	rooms  roomRegistry
	sender SnapshotSender
	stats  stats

	mu         sync.Mutex
	matchLocks map[string]*sync.Mutex
}

// New builds the engine. stats may be nil.
func New(logger *slog.Logger, games *game.Registry, store *gamestore.Store, rooms roomRegistry, sender SnapshotSender, stats stats) *Engine {
	return &Engine{
		logger:     logger.With("component", "engine"),
		games:      games,
		store:      store,
		rooms:      rooms,
		sender:     sender,
		stats:      stats,
		matchLocks: make(map[string]*sync.Mutex),
	}
}

// lockFor serializes admission per match: without it, two concurrent
// submissions against the same version could both pass the token check.
func (that *Engine) lockFor(matchID string) *sync.Mutex {
	that.mu.Lock()
	defer that.mu.Unlock()

	lock, exists := that.matchLocks[matchID]
	if !exists {
		lock = &sync.Mutex{}
		that.matchLocks[matchID] = lock
	}
	return lock
}

// HandleSync processes a handshake. A nil matchID means the connection wants
// a seat: matchmaking picks or creates a match and the seat assignment goes
// back to the requester alone. Either way the requester then receives the
// current filtered snapshot.
func (that *Engine) HandleSync(ctx context.Context, connID, playerName, gameType string, matchID *string, seat *int, numPlayers int) error {
	log := that.logger.With("method", "HandleSync", "connID", connID)

	g, exists := that.games.Get(gameType)
	if !exists {
		return fmt.Errorf("%w: %s", apperror.ErrUnknownGameType, gameType)
	}

	if numPlayers <= 0 {
		numPlayers = g.Capacity
	}

	var id string

	if matchID == nil {
		log.Info("player requests a seat", "player", playerName, "gameType", gameType)

		assignedID, assignedSeat, created, err := that.rooms.RequestSeat(connID, gameType, nil, playerName, g.Capacity)
		if err != nil {
			return fmt.Errorf("failed to request seat: %w", err)
		}

		id = assignedID
		seat = &assignedSeat

		log.Info("player seated", "player", playerName, "matchID", id, "seat", assignedSeat, "created", created)

		if err = that.sender.SendJoin(connID, id, assignedSeat); err != nil {
			log.Error("failed to send join", "error", err)
		}
	} else {
		id = *matchID
		that.rooms.Attach(connID, gameType, id, seat, playerName, g.Capacity)
	}

	if that.stats != nil {
		that.stats.SetActiveMatches(that.rooms.MatchCount())
	}

	lock := that.lockFor(id)
	lock.Lock()
	state, err := that.store.CreateIfAbsent(ctx, id, gameType, numPlayers)
	lock.Unlock()
	if err != nil {
		return fmt.Errorf("failed to create or get state: %w", err)
	}

	if err = that.push(g, connID, id, seat, state); err != nil {
		log.Error("failed to send snapshot", "error", err)
	}

	return nil
}

// HandleAction runs the admission state machine for one submitted action.
// Every rejection is a silent drop as far as the sender is concerned; the
// verdict is meaningful only when err is nil.
func (that *Engine) HandleAction(ctx context.Context, connID, matchID string, seat *int, action entity.Action) (Verdict, error) {
	log := that.logger.With("method", "HandleAction", "connID", connID, "matchID", matchID)

	lock := that.lockFor(matchID)
	lock.Lock()
	defer lock.Unlock()

	match, exists := that.rooms.Match(matchID)
	if !exists {
		return that.reject(log, VerdictMatchNotFound), nil
	}

	state, err := that.store.Get(ctx, matchID)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		return that.reject(log, VerdictMatchNotFound), nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load state: %w", err)
	}

	// Observers have no write privilege.
	if seat == nil {
		return that.reject(log, VerdictObserverWrite), nil
	}

	if state.Ctx.CurrentPlayer != entity.AnyPlayer && entity.SeatString(*seat) != state.Ctx.CurrentPlayer {
		return that.reject(log, VerdictNotCurrentPlayer), nil
	}

	// Exactly one submission per version wins; everyone else re-derives
	// from the next snapshot.
	if action.Version != state.Version {
		return that.reject(log, VerdictStaleVersion), nil
	}

	next, err := that.store.Apply(state, match.GameType, action)
	if err != nil {
		log.Debug("reducer rejected action", "type", action.Type, "error", err)
		return that.reject(log, VerdictRuleRejected), nil
	}

	if err = that.store.Replace(ctx, matchID, next); err != nil {
		return 0, fmt.Errorf("failed to persist state: %w", err)
	}

	if that.stats != nil {
		that.stats.ActionAdmitted()
	}

	that.broadcast(matchID, match.GameType, next)

	return VerdictAdmitted, nil
}

// HandleDisconnect drops the connection's identity mapping; its seat stays
// reserved for the registry's grace period.
func (that *Engine) HandleDisconnect(connID string) {
	that.rooms.ReleaseSeat(connID)

	if that.stats != nil {
		that.stats.SetActiveMatches(that.rooms.MatchCount())
	}
}

// HandleLeave is an explicit departure: the seat frees up immediately.
func (that *Engine) HandleLeave(connID string) {
	that.rooms.Leave(connID)
}

// broadcast pushes the just-committed state to every occupant, each through
// its own seat's view projection.
func (that *Engine) broadcast(matchID, gameType string, state *entity.State) {
	log := that.logger.With("method", "broadcast", "matchID", matchID)

	g, exists := that.games.Get(gameType)
	if !exists {
		log.Error("game type vanished from registry", "gameType", gameType)
		return
	}

	start := time.Now()

	for _, occupant := range that.rooms.Occupants(matchID) {
		if err := that.push(g, occupant.ConnID, matchID, occupant.Seat, state); err != nil {
			log.Error("failed to push snapshot", "connID", occupant.ConnID, "error", err)
		}
	}

	if that.stats != nil {
		that.stats.ObserveBroadcast(time.Since(start))
	}
}

// push sends one seat-filtered full-state snapshot.
func (that *Engine) push(g game.Game, connID, matchID string, seat *int, state *entity.State) error {
	view, err := g.View.PlayerView(state.G, state.Ctx, seat)
	if err != nil {
		return fmt.Errorf("failed to project view: %w", err)
	}

	snapshot := *state
	snapshot.G = view

	if err = that.sender.SendSnapshot(connID, matchID, &snapshot); err != nil {
		return fmt.Errorf("failed to send snapshot: %w", err)
	}

	if that.stats != nil {
		that.stats.SnapshotSent()
	}

	return nil
}

func (that *Engine) reject(log *slog.Logger, verdict Verdict) Verdict {
	log.Debug("action dropped", "reason", verdict.String())

	if that.stats != nil {
		that.stats.ActionRejected(verdict.String())
	}

	return verdict
}
