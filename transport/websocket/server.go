package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/gamesync-backend/internal/engine"
	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
	"github.com/rocketscienceinc/gamesync-backend/internal/monitor"
)

type syncEngine interface {
	HandleSync(ctx context.Context, connID, playerName, gameType string, matchID *string, seat *int, numPlayers int) error
	HandleAction(ctx context.Context, connID, matchID string, seat *int, action entity.Action) (engine.Verdict, error)
	HandleDisconnect(connID string)
	HandleLeave(connID string)
}

// conn wraps one client link; writes are serialized so broadcasts and replies
// never interleave frames.
type conn struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (that *conn) writeJSON(v any) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()
	return that.ws.WriteJSON(v)
}

// Server accepts connections on /ws/{gameType} and pumps their messages into
// the sync engine. It also implements engine.SnapshotSender.
type Server struct {
	logger *slog.Logger
	engine syncEngine
	stats  *monitor.Monitor

	upgrader websocket.Upgrader

	connsMu sync.RWMutex
	conns   map[string]*conn
}

// New builds the server; the engine is attached afterwards because it needs
// this server as its snapshot sender. stats may be nil.
func New(logger *slog.Logger, stats *monitor.Monitor) *Server {
	return &Server{
		logger: logger.With("component", "websocket"),
		stats:  stats,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// Attach wires the sync engine in.
func (that *Server) Attach(eng syncEngine) {
	that.engine = eng
}

// Handler returns the /ws/ endpoint handler.
func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", that.serveConnection)
	return mux
}

// Start - runs the WebSocket server until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveConnection upgrades one connection and runs its read loop. The game
// type is the channel namespace: /ws/tictactoe serves tictactoe matches.
func (that *Server) serveConnection(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")
	ctx := r.Context()

	gameType := strings.TrimPrefix(r.URL.Path, "/ws/")
	if gameType == "" {
		http.Error(w, "game type is required", http.StatusBadRequest)
		return
	}

	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := &conn{id: uuid.NewString(), ws: ws}

	that.connsMu.Lock()
	that.conns[c.id] = c
	that.connsMu.Unlock()

	if that.stats != nil {
		that.stats.ConnectionOpened()
	}

	log = log.With("connID", c.id, "gameType", gameType)
	log.Info("connection established")

	that.readLoop(ctx, log, c, gameType)

	that.engine.HandleDisconnect(c.id)

	that.connsMu.Lock()
	delete(that.conns, c.id)
	that.connsMu.Unlock()

	if that.stats != nil {
		that.stats.ConnectionClosed()
	}

	_ = ws.Close()
	log.Info("connection closed")
}

// readLoop dispatches incoming envelopes until the connection dies.
// Malformed input is logged and skipped, never fatal.
func (that *Server) readLoop(ctx context.Context, log *slog.Logger, c *conn, gameType string) {
	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("read failed", "error", err)
			}
			return
		}

		switch msg.Action {
		case ActionSync:
			that.handleHandshake(ctx, log, c, gameType, msg.Payload)
		case ActionGame:
			that.handleAction(ctx, log, c, msg.Payload)
		case ActionLeave:
			that.engine.HandleLeave(c.id)
		default:
			log.Debug("unknown action", "action", msg.Action)
		}
	}
}

func (that *Server) handleHandshake(ctx context.Context, log *slog.Logger, c *conn, gameType string, payload json.RawMessage) {
	var req HandshakePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Error("failed to unmarshal handshake", "error", err)
		return
	}

	if err := that.engine.HandleSync(ctx, c.id, req.PlayerName, gameType, req.MatchID, req.Seat, req.NumPlayers); err != nil {
		log.Error("handshake failed", "error", err)
	}
}

func (that *Server) handleAction(ctx context.Context, log *slog.Logger, c *conn, payload json.RawMessage) {
	var req ActionPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Error("failed to unmarshal action", "error", err)
		return
	}

	verdict, err := that.engine.HandleAction(ctx, c.id, req.MatchID, req.Seat, req.Action)
	if err != nil {
		log.Error("action handling failed", "error", err)
		return
	}

	log.Debug("action processed", "matchID", req.MatchID, "verdict", verdict.String())
}

// SendJoin implements engine.SnapshotSender.
func (that *Server) SendJoin(connID, matchID string, seat int) error {
	return that.send(connID, ActionJoin, JoinPayload{MatchID: matchID, Seat: seat})
}

// SendSnapshot implements engine.SnapshotSender.
func (that *Server) SendSnapshot(connID, matchID string, state *entity.State) error {
	return that.send(connID, ActionSync, SnapshotPayload{MatchID: matchID, State: state})
}

func (that *Server) send(connID, action string, payload any) error {
	that.connsMu.RLock()
	c, exists := that.conns[connID]
	that.connsMu.RUnlock()

	if !exists {
		return fmt.Errorf("connection %s not found", connID)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err = c.writeJSON(Message{Action: action, Payload: raw}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}
