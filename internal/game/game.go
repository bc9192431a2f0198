package game

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
)

// Reducer is the game author's rule engine. Both methods are pure: Apply must
// build the next state without mutating the one it was given. Version
// bookkeeping is not the reducer's job, the game store advances the token
// after every applied action.
type Reducer interface {
	Setup(numPlayers int) (*entity.State, error)
	Apply(state *entity.State, action entity.Action) (*entity.State, error)
}

// ViewProjection filters the full game payload down to what one seat is
// permitted to see. A nil seat is an observer. Same inputs must yield the
// same output.
type ViewProjection interface {
	PlayerView(g json.RawMessage, ctx entity.Ctx, seat *int) (json.RawMessage, error)
}

// Game binds a registered game type to its rules and per-seat view.
type Game struct {
	Name     string
	Capacity int
	Reducer  Reducer
	View     ViewProjection
}

// identityView is the default projection: every seat sees everything.
type identityView struct{}

func (identityView) PlayerView(g json.RawMessage, _ entity.Ctx, _ *int) (json.RawMessage, error) {
	return g, nil
}

// IdentityView returns the projection used for games without hidden
// information.
func IdentityView() ViewProjection {
	return identityView{}
}

// Registry holds every game type the server can host.
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

func NewRegistry() *Registry {
	return &Registry{
		games: make(map[string]Game),
	}
}

// Register adds a game type; a nil View defaults to full visibility.
func (that *Registry) Register(g Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if g.Name == "" || g.Reducer == nil {
		return fmt.Errorf("game %q: name and reducer are required", g.Name)
	}

	if _, exists := that.games[g.Name]; exists {
		return fmt.Errorf("game %q is already registered", g.Name)
	}

	if g.View == nil {
		g.View = IdentityView()
	}

	that.games[g.Name] = g

	return nil
}

func (that *Registry) Get(name string) (Game, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	g, exists := that.games[name]
	return g, exists
}
