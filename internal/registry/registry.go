// Package registry tracks which connections occupy which match and seat. It
// is the single source of match metadata; authoritative game state lives in
// the game store.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
)

// Occupant is one connection inside a match; Seat is nil for observers.
type Occupant struct {
	ConnID string
	Seat   *int
}

// identity is the connection → (match, seat) record. A connection belongs to
// at most one match at a time.
type identity struct {
	matchID    string
	seat       *int
	playerName string
}

// vacatedSeat is a seat whose holder disconnected. It still counts as
// occupied until `freeAt`, then becomes reusable. An explicit leave sets
// freeAt to the moment of leaving.
type vacatedSeat struct {
	seat   int
	freeAt time.Time
}

type matchRoom struct {
	match     entity.Match
	occupants map[string]struct{}
	vacated   []vacatedSeat
}

// Registry is the room/seat table. It is created at server start and torn
// down at shutdown; nothing here is package-global.
type Registry struct {
	mu      sync.Mutex
	grace   time.Duration
	now     func() time.Time
	matches map[string]*matchRoom
	order   []string
	conns   map[string]identity
}

// New builds an empty registry. grace is how long a disconnected player's
// seat stays reserved before matchmaking may hand it out again.
func New(grace time.Duration) *Registry {
	return &Registry{
		grace:   grace,
		now:     time.Now,
		matches: make(map[string]*matchRoom),
		conns:   make(map[string]identity),
	}
}

// RequestSeat seats a connection. With a nil matchID it scans matches of the
// game type in creation order for the first one with room and creates a fresh
// match if none has any; with an explicit matchID it joins (or creates) that
// match. The returned seat is a reclaimed vacated seat when one is free,
// otherwise max(assigned seats)+1.
func (that *Registry) RequestSeat(connID, gameType string, matchID *string, playerName string, capacity int) (string, int, bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	var room *matchRoom
	created := false

	switch {
	case matchID != nil:
		room = that.matches[*matchID]
		if room == nil {
			room = that.createMatch(*matchID, gameType, capacity)
			created = true
		}
	default:
		room = that.findOpenMatch(gameType)
		if room == nil {
			room = that.createMatch(that.newMatchID(gameType), gameType, capacity)
			created = true
		}
	}

	seat := that.assignSeat(room, connID)

	that.attach(connID, room, identity{matchID: room.match.ID, seat: &seat, playerName: playerName})

	return room.match.ID, seat, created, nil
}

// Attach registers a connection under an explicit (matchID, seat) identity
// without matchmaking; a nil seat attaches an observer. Used on handshakes
// that already carry an identity, e.g. after the client swapped match or
// seat.
func (that *Registry) Attach(connID, gameType, matchID string, seat *int, playerName string, capacity int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room := that.matches[matchID]
	if room == nil {
		room = that.createMatch(matchID, gameType, capacity)
	}

	that.attach(connID, room, identity{matchID: matchID, seat: seat, playerName: playerName})
}

// ReleaseSeat handles a disconnect: the identity record goes away and the
// connection stops receiving broadcasts, but the seat stays reserved for the
// grace period so a quick reconnect does not lose it.
func (that *Registry) ReleaseSeat(connID string) {
	that.release(connID, that.grace)
}

// Leave is an explicit departure: the seat becomes reusable immediately.
func (that *Registry) Leave(connID string) {
	that.release(connID, 0)
}

func (that *Registry) release(connID string, grace time.Duration) {
	that.mu.Lock()
	defer that.mu.Unlock()

	id, exists := that.conns[connID]
	if !exists {
		return
	}

	delete(that.conns, connID)

	room := that.matches[id.matchID]
	if room == nil {
		return
	}

	delete(room.occupants, connID)

	if id.seat != nil {
		room.vacated = append(room.vacated, vacatedSeat{seat: *id.seat, freeAt: that.now().Add(grace)})
	}
}

// Occupants returns the match's live connections ordered by seat (observers
// last), the fan-out input for broadcasts.
func (that *Registry) Occupants(matchID string) []Occupant {
	that.mu.Lock()
	defer that.mu.Unlock()

	room := that.matches[matchID]
	if room == nil {
		return nil
	}

	occupants := make([]Occupant, 0, len(room.occupants))
	for connID := range room.occupants {
		id := that.conns[connID]
		occupants = append(occupants, Occupant{ConnID: connID, Seat: id.seat})
	}

	sort.Slice(occupants, func(i, j int) bool {
		a, b := occupants[i], occupants[j]
		switch {
		case a.Seat == nil:
			return false
		case b.Seat == nil:
			return true
		case *a.Seat != *b.Seat:
			return *a.Seat < *b.Seat
		default:
			return a.ConnID < b.ConnID
		}
	})

	return occupants
}

// Match returns the metadata of a known match.
func (that *Registry) Match(matchID string) (entity.Match, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, exists := that.matches[matchID]
	if !exists {
		return entity.Match{}, false
	}
	return room.match, true
}

// MatchCount reports how many matches the registry currently tracks.
func (that *Registry) MatchCount() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return len(that.matches)
}

// Close tears the tables down.
func (that *Registry) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.matches = make(map[string]*matchRoom)
	that.order = nil
	that.conns = make(map[string]identity)
}

// findOpenMatch scans matches of gameType in creation order for the first one
// whose occupied-seat count is below capacity.
func (that *Registry) findOpenMatch(gameType string) *matchRoom {
	for _, id := range that.order {
		room := that.matches[id]
		if room == nil || room.match.GameType != gameType {
			continue
		}
		if that.occupiedSeats(room) < room.match.Capacity {
			return room
		}
	}
	return nil
}

// occupiedSeats counts seats held by live connections plus vacated seats
// still inside their grace window.
func (that *Registry) occupiedSeats(room *matchRoom) int {
	count := 0
	for connID := range room.occupants {
		if id := that.conns[connID]; id.seat != nil {
			count++
		}
	}

	now := that.now()
	for _, v := range room.vacated {
		if v.freeAt.After(now) {
			count++
		}
	}

	return count
}

// assignSeat prefers the lowest reclaimable vacated seat; otherwise it is
// max(assigned seats, requester as -1)+1, so a fresh match starts at 0.
func (that *Registry) assignSeat(room *matchRoom, connID string) int {
	now := that.now()

	reclaim := -1
	for i, v := range room.vacated {
		if v.freeAt.After(now) {
			continue
		}
		if reclaim < 0 || v.seat < room.vacated[reclaim].seat {
			reclaim = i
		}
	}
	if reclaim >= 0 {
		seat := room.vacated[reclaim].seat
		room.vacated = append(room.vacated[:reclaim], room.vacated[reclaim+1:]...)
		return seat
	}

	maxSeat := -1
	for occupant := range room.occupants {
		if occupant == connID {
			continue
		}
		if id := that.conns[occupant]; id.seat != nil && *id.seat > maxSeat {
			maxSeat = *id.seat
		}
	}

	// seats inside their grace window are still owned
	for _, v := range room.vacated {
		if v.freeAt.After(now) && v.seat > maxSeat {
			maxSeat = v.seat
		}
	}

	return maxSeat + 1
}

// attach records the identity, moving the connection out of any previous
// match first.
func (that *Registry) attach(connID string, room *matchRoom, id identity) {
	if prev, exists := that.conns[connID]; exists && prev.matchID != id.matchID {
		if prevRoom := that.matches[prev.matchID]; prevRoom != nil {
			delete(prevRoom.occupants, connID)
		}
	}

	// Re-claiming a seat cancels its pending vacancy, so the seat cannot be
	// handed out twice once the grace window ends.
	if id.seat != nil {
		for i, v := range room.vacated {
			if v.seat == *id.seat {
				room.vacated = append(room.vacated[:i], room.vacated[i+1:]...)
				break
			}
		}
	}

	room.occupants[connID] = struct{}{}
	that.conns[connID] = id
}

func (that *Registry) createMatch(id, gameType string, capacity int) *matchRoom {
	room := &matchRoom{
		match: entity.Match{
			ID:        id,
			GameType:  gameType,
			Capacity:  capacity,
			CreatedAt: that.now(),
		},
		occupants: make(map[string]struct{}),
	}

	that.matches[id] = room
	that.order = append(that.order, id)

	return room
}

// newMatchID generates a practically-unique id, re-rolling on the off chance
// of a collision with an existing match.
func (that *Registry) newMatchID(gameType string) string {
	for {
		id := gameType + "_" + uuid.NewString()
		if _, exists := that.matches[id]; !exists {
			return id
		}
	}
}
