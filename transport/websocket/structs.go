package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
)

const (
	// ActionSync doubles as the client→server handshake and the
	// server→client snapshot push.
	ActionSync = "sync"
	// ActionJoin carries a seat assignment back to the requester.
	ActionJoin = "join"
	// ActionGame carries a move or game event with its version token.
	ActionGame = "action"
	// ActionLeave gives the seat up immediately instead of waiting out
	// the disconnect grace period.
	ActionLeave = "leave"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HandshakePayload - client→server "sync". A nil MatchID requests
// matchmaking; a nil Seat attaches an observer.
type HandshakePayload struct {
	PlayerName string  `json:"playerName"`
	MatchID    *string `json:"matchId"`
	Seat       *int    `json:"seat"`
	NumPlayers int     `json:"numPlayers"`
}

// JoinPayload - server→client seat assignment, sent only to the requester.
type JoinPayload struct {
	MatchID string `json:"matchId"`
	Seat    int    `json:"seat"`
}

// SnapshotPayload - server→client authoritative, seat-filtered full state.
type SnapshotPayload struct {
	MatchID string        `json:"matchId"`
	State   *entity.State `json:"state"`
}

// ActionPayload - client→server move submission with out-of-band attribution.
type ActionPayload struct {
	Action  entity.Action `json:"action"`
	MatchID string        `json:"matchId"`
	Seat    *int          `json:"seat"`
}
