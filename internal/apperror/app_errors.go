package apperror

import "errors"

var (
	ErrInvalidIndex = errors.New("cell index out of range")
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrGameOver     = errors.New("game is already over")
	ErrGameNotFound = errors.New("game not found")
)
