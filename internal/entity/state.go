package entity

import (
	"encoding/json"
	"strconv"
)

// AnyPlayer is the turn-authority wildcard: when Ctx.CurrentPlayer holds it,
// every seated player may submit an action.
const AnyPlayer = "any"

// Ctx carries the turn metadata the synchronization engine needs to admit or
// drop an action. Everything game-specific lives in State.G.
type Ctx struct {
	NumPlayers    int    `json:"numPlayers"`
	CurrentPlayer string `json:"currentPlayer"`
	TurnNum       int    `json:"turn"`
	Phase         string `json:"phase,omitempty"`
}

// State is one match's authoritative state: an opaque game payload G, the turn
// context, and the optimistic-concurrency version token.
type State struct {
	G       json.RawMessage `json:"G"`
	Ctx     Ctx             `json:"ctx"`
	Version int64           `json:"version"`
}

// Clone returns a deep copy; G is copied byte-wise so reducers can build the
// next state without touching the committed one.
func (that *State) Clone() *State {
	next := *that
	if that.G != nil {
		next.G = make(json.RawMessage, len(that.G))
		copy(next.G, that.G)
	}
	return &next
}

// Action is a move or game-level event submitted against a known version of
// the state. The (matchID, seat) attribution travels out of band.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Version int64           `json:"version"`
}

// SeatString renders a seat the way Ctx.CurrentPlayer stores it.
func SeatString(seat int) string {
	return strconv.Itoa(seat)
}
