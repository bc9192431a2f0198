// Package gamestore is the glue between the rule reducers and the persistence
// layer: one authoritative state instance per active match.
package gamestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gamesync-backend/internal/apperror"
	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
	"github.com/rocketscienceinc/gamesync-backend/internal/game"
	"github.com/rocketscienceinc/gamesync-backend/internal/repository"
)

type Store struct {
	repo  repository.StateRepository
	games *game.Registry
}

func New(repo repository.StateRepository, games *game.Registry) *Store {
	return &Store{
		repo:  repo,
		games: games,
	}
}

// Get returns the authoritative state of a match.
func (that *Store) Get(ctx context.Context, matchID string) (*entity.State, error) {
	state, err := that.repo.GetByID(ctx, matchID)
	if errors.Is(err, repository.ErrStateNotFound) {
		return nil, apperror.ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	return state, nil
}

// CreateIfAbsent sets up and persists the initial state for a match, or
// returns the existing one.
func (that *Store) CreateIfAbsent(ctx context.Context, matchID, gameType string, numPlayers int) (*entity.State, error) {
	state, err := that.Get(ctx, matchID)
	if err == nil {
		return state, nil
	}

	if !errors.Is(err, apperror.ErrMatchNotFound) {
		return nil, err
	}

	g, exists := that.games.Get(gameType)
	if !exists {
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownGameType, gameType)
	}

	state, err = g.Reducer.Setup(numPlayers)
	if err != nil {
		return nil, fmt.Errorf("failed to set up game: %w", err)
	}
	state.Version = 0

	if err = that.repo.Save(ctx, matchID, state); err != nil {
		return nil, fmt.Errorf("failed to save initial state: %w", err)
	}

	return state, nil
}

// Apply runs the reducer and advances the version token by exactly one. No
// admission checks happen here: the caller validates first. The version bump
// is centralized here so a game author's reducer cannot break monotonicity.
func (that *Store) Apply(state *entity.State, gameType string, action entity.Action) (*entity.State, error) {
	g, exists := that.games.Get(gameType)
	if !exists {
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownGameType, gameType)
	}

	next, err := g.Reducer.Apply(state, action)
	if err != nil {
		return nil, err
	}

	next.Version = state.Version + 1

	return next, nil
}

// Replace persists an applied state back to the store.
func (that *Store) Replace(ctx context.Context, matchID string, state *entity.State) error {
	if err := that.repo.Save(ctx, matchID, state); err != nil {
		return fmt.Errorf("failed to replace state: %w", err)
	}

	return nil
}
