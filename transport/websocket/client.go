package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/gamesync-backend/internal/client"
	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
)

// Client is the wire half of a client.Machine: it implements client.Sender
// for the outbound path and pumps inbound pushes into the machine.
type Client struct {
	logger *slog.Logger

	ws      *websocket.Conn
	writeMu sync.Mutex
}

// Dial connects to a server's game-type channel, e.g.
// ws://host:port/ws/tictactoe.
func Dial(ctx context.Context, logger *slog.Logger, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	return &Client{
		logger: logger.With("component", "websocket-client"),
		ws:     ws,
	}, nil
}

// SendHandshake implements client.Sender.
func (that *Client) SendHandshake(playerName string, matchID *string, seat *int, numPlayers int) error {
	return that.send(ActionSync, HandshakePayload{
		PlayerName: playerName,
		MatchID:    matchID,
		Seat:       seat,
		NumPlayers: numPlayers,
	})
}

// SendAction implements client.Sender.
func (that *Client) SendAction(action entity.Action, matchID string, seat *int) error {
	return that.send(ActionGame, ActionPayload{
		Action:  action,
		MatchID: matchID,
		Seat:    seat,
	})
}

// Leave gives the seat up immediately.
func (that *Client) Leave() error {
	return that.send(ActionLeave, nil)
}

// Listen pumps server pushes into the machine until the connection closes.
func (that *Client) Listen(machine *client.Machine) error {
	log := that.logger.With("method", "Listen")

	for {
		var msg Message
		if err := that.ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		switch msg.Action {
		case ActionJoin:
			var payload JoinPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				log.Error("failed to unmarshal join", "error", err)
				continue
			}
			machine.HandleJoin(payload.MatchID, payload.Seat)

		case ActionSync:
			var payload SnapshotPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				log.Error("failed to unmarshal snapshot", "error", err)
				continue
			}
			machine.HandleSnapshot(payload.MatchID, payload.State)

		default:
			log.Debug("unknown action", "action", msg.Action)
		}
	}
}

func (that *Client) Close() error {
	return that.ws.Close()
}

func (that *Client) send(action string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		raw = b
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.ws.WriteJSON(Message{Action: action, Payload: raw}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}
