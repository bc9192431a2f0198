package entity

import "time"

// Match is one in-progress game instance: metadata only, the state itself
// lives in the authoritative game store.
type Match struct {
	ID        string    `json:"id"`
	GameType  string    `json:"gameType"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"createdAt"`
}
