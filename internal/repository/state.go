package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
)

var ErrStateNotFound = errors.New("state not found")

// StateRepository persists one authoritative state per match id. The sync
// engine is the only writer.
type StateRepository interface {
	Save(ctx context.Context, matchID string, state *entity.State) error
	GetByID(ctx context.Context, matchID string) (*entity.State, error)
	DeleteByID(ctx context.Context, matchID string) error
}

type dbState struct {
	client *redis.Client
}

func NewStateRepository(client *redis.Client) StateRepository {
	return &dbState{
		client: client,
	}
}

func (that *dbState) Save(ctx context.Context, matchID string, state *entity.State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("could not marshal state: %w", err)
	}

	matchKey := "match:" + matchID
	if err = that.client.Set(ctx, matchKey, stateJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}

	return nil
}

func (that *dbState) GetByID(ctx context.Context, matchID string) (*entity.State, error) {
	matchKey := "match:" + matchID

	response, err := that.client.Get(ctx, matchKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get state by id: %w", err)
	}

	var state entity.State
	if err = json.Unmarshal([]byte(response), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &state, nil
}

func (that *dbState) DeleteByID(ctx context.Context, matchID string) error {
	matchKey := "match:" + matchID

	if err := that.client.Del(ctx, matchKey).Err(); err != nil {
		return fmt.Errorf("failed to delete state by id: %w", err)
	}

	return nil
}
