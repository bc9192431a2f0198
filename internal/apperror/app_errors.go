package apperror

import "errors"

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrUnknownGameType = errors.New("unknown game type")
	ErrMatchFull       = errors.New("match is full")
	ErrCellOccupied    = errors.New("cell is already occupied")
	ErrGameFinished    = errors.New("game is already finished")
)
