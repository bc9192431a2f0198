// Package tictactoe is the reference game shipped with the server: a complete
// reducer over the sync engine's opaque state payload. It doubles as the
// default registered game type and as the rules engine the tests play against.
package tictactoe

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gamesync-backend/internal/apperror"
	"github.com/rocketscienceinc/gamesync-backend/internal/entity"
	"github.com/rocketscienceinc/gamesync-backend/internal/game"
)

const (
	GameName = "tictactoe"

	ActionMove = "move"

	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""

	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

var (
	ErrInvalidCell = errors.New("invalid cell index")

	WinCombos = [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Board is the game payload serialized into entity.State.G.
type Board struct {
	Cells  [9]string `json:"cells"`
	Winner string    `json:"winner,omitempty"`
	Status string    `json:"status"`
}

// MovePayload is the payload of an ActionMove action.
type MovePayload struct {
	Cell int `json:"cell"`
}

// Game returns the registrable game descriptor. Tic-tac-toe has no hidden
// information, so the default full-visibility view applies.
func Game() game.Game {
	return game.Game{
		Name:     GameName,
		Capacity: 2,
		Reducer:  &reducer{},
	}
}

type reducer struct{}

// Setup - produces the initial state: empty board, seat 0 (X) to move.
func (that *reducer) Setup(numPlayers int) (*entity.State, error) {
	if numPlayers != 2 {
		return nil, fmt.Errorf("tictactoe needs exactly 2 players, got %d", numPlayers)
	}

	board := Board{Status: StatusOngoing}

	g, err := json.Marshal(board)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}

	return &entity.State{
		G: g,
		Ctx: entity.Ctx{
			NumPlayers:    numPlayers,
			CurrentPlayer: entity.SeatString(0),
		},
	}, nil
}

// Apply - plays one move for the current player and hands the turn over.
func (that *reducer) Apply(state *entity.State, action entity.Action) (*entity.State, error) {
	if action.Type != ActionMove {
		return nil, fmt.Errorf("unsupported action type %q", action.Type)
	}

	var board Board
	if err := json.Unmarshal(state.G, &board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}

	if board.Status == StatusFinished {
		return nil, apperror.ErrGameFinished
	}

	var move MovePayload
	if err := json.Unmarshal(action.Payload, &move); err != nil {
		return nil, fmt.Errorf("failed to unmarshal move: %w", err)
	}

	if move.Cell < 0 || move.Cell >= len(board.Cells) {
		return nil, fmt.Errorf("%w: cell %d", ErrInvalidCell, move.Cell)
	}

	if board.Cells[move.Cell] != EmptyCell {
		return nil, apperror.ErrCellOccupied
	}

	mark := markFor(state.Ctx.CurrentPlayer)
	board.Cells[move.Cell] = mark

	next := state.Clone()
	next.Ctx.TurnNum++

	switch winner := checkGameStatus(board.Cells); winner {
	case PlayerX, PlayerO, PlayerTie:
		board.Winner = winner
		board.Status = StatusFinished
		next.Ctx.CurrentPlayer = ""
	default:
		next.Ctx.CurrentPlayer = toggleSeat(state.Ctx.CurrentPlayer)
	}

	g, err := json.Marshal(board)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}
	next.G = g

	return next, nil
}

// markFor - maps a seat to its mark: seat 0 plays X, seat 1 plays O.
func markFor(seat string) string {
	if seat == entity.SeatString(0) {
		return PlayerX
	}
	return PlayerO
}

func toggleSeat(seat string) string {
	if seat == entity.SeatString(0) {
		return entity.SeatString(1)
	}
	return entity.SeatString(0)
}

func checkGameStatus(cells [9]string) string {
	for _, combo := range WinCombos {
		a, b, c := cells[combo[0]], cells[combo[1]], cells[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	for _, cell := range cells {
		if cell == EmptyCell {
			return ""
		}
	}

	return PlayerTie
}
