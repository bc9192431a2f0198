package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/gamesync-backend/internal/config"
	"github.com/rocketscienceinc/gamesync-backend/internal/engine"
	"github.com/rocketscienceinc/gamesync-backend/internal/game"
	"github.com/rocketscienceinc/gamesync-backend/internal/gamestore"
	"github.com/rocketscienceinc/gamesync-backend/internal/monitor"
	"github.com/rocketscienceinc/gamesync-backend/internal/registry"
	"github.com/rocketscienceinc/gamesync-backend/internal/repository"
	"github.com/rocketscienceinc/gamesync-backend/internal/repository/storage"
	"github.com/rocketscienceinc/gamesync-backend/internal/tictactoe"
	"github.com/rocketscienceinc/gamesync-backend/transport/rest"
	"github.com/rocketscienceinc/gamesync-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisClient, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisClient.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	games := game.NewRegistry()
	if err = games.Register(tictactoe.Game()); err != nil {
		return fmt.Errorf("could not register game: %w", err)
	}

	rooms := registry.New(conf.SeatGracePeriod)
	defer rooms.Close()

	stateRepo := repository.NewStateRepository(redisClient)
	store := gamestore.New(stateRepo, games)
	stats := monitor.New("gamesync")

	wsServer := websocket.New(logger, stats)
	syncEngine := engine.New(logger, games, store, rooms, wsServer, stats)
	wsServer.Attach(syncEngine)

	// run HTTP server (health + metrics)
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort, stats.Handler()); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
