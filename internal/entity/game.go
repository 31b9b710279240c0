package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
)

// Cell is the content of a single board square.
type Cell string

const (
	EmptyCell Cell = ""
	MarkX     Cell = "X"
	MarkO     Cell = "O"
)

// BoardSize is the number of cells on the 3x3 grid.
const BoardSize = 9

// Board holds cells in row-major order: row = index / 3, column = index % 3.
type Board [BoardSize]Cell

// Occupied returns the number of non-empty cells.
func (that Board) Occupied() int {
	count := 0
	for _, cell := range that {
		if cell != EmptyCell {
			count++
		}
	}
	return count
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusDraw       Status = "draw"
)

func (that Status) IsTerminal() bool {
	return that == StatusWon || that == StatusDraw
}

// WinPattern is a triple of board indices forming a line.
type WinPattern [3]int

// WinPatterns are checked in this order; the first completed line is the one reported.
var WinPatterns = [8]WinPattern{
	{0, 1, 2},
	{0, 3, 6},
	{0, 4, 8},
	{1, 4, 7},
	{2, 5, 8},
	{2, 4, 6},
	{3, 4, 5},
	{6, 7, 8},
}

// RejectReason explains why a move was not accepted.
type RejectReason string

const (
	ReasonNone         RejectReason = ""
	ReasonCellOccupied RejectReason = "cell_occupied"
	ReasonGameOver     RejectReason = "game_over"
)

// Err maps the reason to its sentinel error, nil when the move was accepted.
func (that RejectReason) Err() error {
	switch that {
	case ReasonCellOccupied:
		return apperror.ErrCellOccupied
	case ReasonGameOver:
		return apperror.ErrGameOver
	default:
		return nil
	}
}

// Outcome describes how a game stands: in progress, won along a line, or drawn.
type Outcome struct {
	Status      Status `json:"status"`
	Winner      Player `json:"winner,omitempty"`
	WinningLine []int  `json:"winning_line,omitempty"`
}

// State is a read-only snapshot of a game.
type State struct {
	Board         Board  `json:"board"`
	CurrentPlayer Player `json:"current_player"`
	MoveCount     int    `json:"move_count"`
	Outcome
}

// MoveResult is returned for every move that addressed a valid cell.
type MoveResult struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"rejection_reason,omitempty"`
	Player   Player       `json:"player,omitempty"`
	Cell     int          `json:"cell"`
	Outcome
}

func (that MoveResult) String() string {
	if !that.Accepted {
		return fmt.Sprintf("cell %d rejected: %s", that.Cell, that.Reason)
	}

	switch that.Status {
	case StatusWon:
		return fmt.Sprintf("%s takes cell %d and wins along %v", that.Player, that.Cell, that.WinningLine)
	case StatusDraw:
		return fmt.Sprintf("%s takes cell %d, draw", that.Player, that.Cell)
	default:
		return fmt.Sprintf("%s takes cell %d", that.Player, that.Cell)
	}
}
