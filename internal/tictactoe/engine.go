// Package tictactoe holds the game-state engine: move legality, turn order and
// win/draw detection for a single 3x3 game.
//
// An Engine is not safe for concurrent use; hosts serving several goroutines
// must hold one mutex around every call.
package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

// Engine holds the state of one game.
type Engine struct {
	board     entity.Board
	turn      entity.Player
	moveCount int
	status    entity.Status
	winner    entity.Player
	line      entity.WinPattern
}

// NewEngine returns an engine in the initial configuration, O to move.
func NewEngine() *Engine {
	engine := &Engine{}
	engine.Reset()

	return engine
}

// Reset reinitializes the game: empty board, no moves, O to move.
func (that *Engine) Reset() {
	that.board = entity.Board{}
	that.turn = entity.FirstPlayer
	that.moveCount = 0
	that.status = entity.StatusInProgress
	that.winner = ""
	that.line = entity.WinPattern{}
}

// ApplyMove places the current player's mark on cell index.
// An index outside the board is an error; an occupied cell or a finished game
// yields a rejected result and leaves the state untouched.
func (that *Engine) ApplyMove(index int) (entity.MoveResult, error) {
	if index < 0 || index >= entity.BoardSize {
		return entity.MoveResult{}, fmt.Errorf("%w: %d", apperror.ErrInvalidIndex, index)
	}

	if reason := that.validateMove(index); reason != entity.ReasonNone {
		return entity.MoveResult{
			Reason:  reason,
			Cell:    index,
			Outcome: that.Outcome(),
		}, nil
	}

	player := that.turn
	that.board[index] = player.Mark()
	that.moveCount++
	that.updateGameStatus(player)

	return entity.MoveResult{
		Accepted: true,
		Player:   player,
		Cell:     index,
		Outcome:  that.Outcome(),
	}, nil
}

// CurrentState returns a copy of the game state.
func (that *Engine) CurrentState() entity.State {
	return entity.State{
		Board:         that.board,
		CurrentPlayer: that.turn,
		MoveCount:     that.moveCount,
		Outcome:       that.Outcome(),
	}
}

// Outcome reports the status, and the winner and line once the game is won.
func (that *Engine) Outcome() entity.Outcome {
	outcome := entity.Outcome{Status: that.status}
	if that.status == entity.StatusWon {
		outcome.Winner = that.winner
		outcome.WinningLine = []int{that.line[0], that.line[1], that.line[2]}
	}

	return outcome
}

func (that *Engine) validateMove(index int) entity.RejectReason {
	if that.status.IsTerminal() {
		return entity.ReasonGameOver
	}

	if that.board[index] != entity.EmptyCell {
		return entity.ReasonCellOccupied
	}

	return entity.ReasonNone
}

// updateGameStatus - runs after every accepted move. A win is checked before
// the full-board draw, so a ninth move completing a line still wins.
func (that *Engine) updateGameStatus(player entity.Player) {
	if line, ok := findLine(that.board, player.Mark()); ok {
		that.status = entity.StatusWon
		that.winner = player
		that.line = line
		return
	}

	if that.moveCount == entity.BoardSize {
		that.status = entity.StatusDraw
		return
	}

	that.turn = player.Opponent()
}

// findLine returns the first pattern in declared order fully held by mark.
func findLine(board entity.Board, mark entity.Cell) (entity.WinPattern, bool) {
	for _, pattern := range entity.WinPatterns {
		a, b, c := board[pattern[0]], board[pattern[1]], board[pattern[2]]
		if a == mark && b == mark && c == mark {
			return pattern, true
		}
	}

	return entity.WinPattern{}, false
}
