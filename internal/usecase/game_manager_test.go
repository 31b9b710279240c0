package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*entity.GameEvent
	err    error
}

func (that *fakePublisher) Publish(_ context.Context, event *entity.GameEvent) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, event)
	return that.err
}

func (that *fakePublisher) Events() []*entity.GameEvent {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]*entity.GameEvent(nil), that.events...)
}

func newManager(publisher *fakePublisher) *GameManager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGameManager(logger, publisher)
}

func TestGameManager_NewGame(t *testing.T) {
	// Given: a manager with no games
	publisher := &fakePublisher{}
	manager := newManager(publisher)

	// When: two games are created
	firstID, state, err := manager.NewGame(context.Background())
	require.NoError(t, err)
	secondID, _, err := manager.NewGame(context.Background())
	require.NoError(t, err)

	// Then: each has its own id and starts with O to move
	assert.NotEmpty(t, firstID)
	assert.NotEqual(t, firstID, secondID)
	assert.Equal(t, entity.PlayerO, state.CurrentPlayer)
	assert.Equal(t, entity.StatusInProgress, state.Status)
	assert.Equal(t, 2, manager.Count())

	// And: a created event is published for each
	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, entity.EventGameCreated, events[0].Type)
	assert.Equal(t, firstID, events[0].GameID)
}

func TestGameManager_MakeTurn(t *testing.T) {
	t.Run("Accepted moves are published", func(t *testing.T) {
		publisher := &fakePublisher{}
		manager := newManager(publisher)
		ctx := context.Background()
		gameID, _, err := manager.NewGame(ctx)
		require.NoError(t, err)

		// When: O wins along the top row
		var result entity.MoveResult
		for _, cell := range []int{0, 3, 1, 4, 2} {
			result, _, err = manager.MakeTurn(ctx, gameID, cell)
			require.NoError(t, err)
			require.True(t, result.Accepted)
		}

		// Then: the last result reports the win
		assert.Equal(t, entity.StatusWon, result.Status)
		assert.Equal(t, entity.PlayerO, result.Winner)
		assert.Equal(t, []int{0, 1, 2}, result.WinningLine)

		// And: one turn event per move follows the created event
		events := publisher.Events()
		require.Len(t, events, 6)
		last := events[5]
		assert.Equal(t, entity.EventGameTurn, last.Type)
		require.NotNil(t, last.Result)
		assert.Equal(t, result, *last.Result)
		assert.Equal(t, entity.StatusWon, last.State.Status)
		assert.Equal(t, 5, last.State.MoveCount)
	})

	t.Run("Rejected moves are returned but not published", func(t *testing.T) {
		publisher := &fakePublisher{}
		manager := newManager(publisher)
		ctx := context.Background()
		gameID, _, err := manager.NewGame(ctx)
		require.NoError(t, err)

		_, _, err = manager.MakeTurn(ctx, gameID, 4)
		require.NoError(t, err)

		result, _, err := manager.MakeTurn(ctx, gameID, 4)

		require.NoError(t, err)
		assert.False(t, result.Accepted)
		assert.Equal(t, entity.ReasonCellOccupied, result.Reason)
		assert.Len(t, publisher.Events(), 2)
	})

	t.Run("Invalid index is an error", func(t *testing.T) {
		manager := newManager(&fakePublisher{})
		ctx := context.Background()
		gameID, _, err := manager.NewGame(ctx)
		require.NoError(t, err)

		_, _, err = manager.MakeTurn(ctx, gameID, 9)

		require.ErrorIs(t, err, apperror.ErrInvalidIndex)
	})

	t.Run("Unknown game", func(t *testing.T) {
		manager := newManager(&fakePublisher{})

		_, _, err := manager.MakeTurn(context.Background(), "missing", 0)

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})

	t.Run("Publish failure does not affect the move", func(t *testing.T) {
		publisher := &fakePublisher{err: errors.New("redis is down")}
		manager := newManager(publisher)
		ctx := context.Background()
		gameID, _, err := manager.NewGame(ctx)
		require.NoError(t, err)

		result, _, err := manager.MakeTurn(ctx, gameID, 4)

		require.NoError(t, err)
		assert.True(t, result.Accepted)

		state, err := manager.GetGame(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, entity.MarkO, state.Board[4])
	})
}

func TestGameManager_MakeTurnState(t *testing.T) {
	manager := newManager(&fakePublisher{})
	ctx := context.Background()
	gameID, _, err := manager.NewGame(ctx)
	require.NoError(t, err)

	t.Run("Accepted move returns the state it produced", func(t *testing.T) {
		result, state, err := manager.MakeTurn(ctx, gameID, 4)
		require.NoError(t, err)

		require.True(t, result.Accepted)
		assert.Equal(t, entity.MarkO, state.Board[4])
		assert.Equal(t, entity.PlayerX, state.CurrentPlayer)
		assert.Equal(t, 1, state.MoveCount)
		assert.Equal(t, result.Outcome, state.Outcome)
	})

	t.Run("Another move does not change a returned state", func(t *testing.T) {
		_, before, err := manager.MakeTurn(ctx, gameID, 0)
		require.NoError(t, err)

		_, _, err = manager.MakeTurn(ctx, gameID, 8)
		require.NoError(t, err)

		assert.Equal(t, 2, before.MoveCount)
		assert.Equal(t, entity.EmptyCell, before.Board[8])
	})

	t.Run("Rejected move returns the unchanged state", func(t *testing.T) {
		result, state, err := manager.MakeTurn(ctx, gameID, 4)
		require.NoError(t, err)

		assert.False(t, result.Accepted)
		assert.Equal(t, 3, state.MoveCount)
		assert.Equal(t, entity.PlayerX, state.CurrentPlayer)
	})

	t.Run("Errors return an empty state", func(t *testing.T) {
		_, state, err := manager.MakeTurn(ctx, gameID, -1)

		require.ErrorIs(t, err, apperror.ErrInvalidIndex)
		assert.Equal(t, entity.State{}, state)
	})
}

func TestGameManager_MakeTurnLogsFinishedGame(t *testing.T) {
	// Given: a manager logging to a buffer
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	manager := NewGameManager(logger, &fakePublisher{})
	ctx := context.Background()
	gameID, _, err := manager.NewGame(ctx)
	require.NoError(t, err)

	// When: O wins along the top row and then tries another cell
	for _, cell := range []int{0, 3, 1, 4, 2, 5} {
		_, _, err = manager.MakeTurn(ctx, gameID, cell)
		require.NoError(t, err)
	}

	// Then: both the finishing move and the rejection are described
	assert.Contains(t, buf.String(), "O takes cell 2 and wins along [0 1 2]")
	assert.Contains(t, buf.String(), "cell 5 rejected: game_over")
}

func TestGameManager_ResetGame(t *testing.T) {
	publisher := &fakePublisher{}
	manager := newManager(publisher)
	ctx := context.Background()
	gameID, initial, err := manager.NewGame(ctx)
	require.NoError(t, err)

	for _, cell := range []int{0, 3, 1, 4, 2} {
		_, _, err = manager.MakeTurn(ctx, gameID, cell)
		require.NoError(t, err)
	}

	// When: the finished game is reset
	state, err := manager.ResetGame(ctx, gameID)
	require.NoError(t, err)

	// Then: it is back to the initial configuration
	assert.Equal(t, initial, state)

	events := publisher.Events()
	assert.Equal(t, entity.EventGameReset, events[len(events)-1].Type)

	_, err = manager.ResetGame(ctx, "missing")
	require.ErrorIs(t, err, apperror.ErrGameNotFound)
}

func TestGameManager_GetGame(t *testing.T) {
	manager := newManager(&fakePublisher{})
	ctx := context.Background()
	gameID, _, err := manager.NewGame(ctx)
	require.NoError(t, err)

	_, _, err = manager.MakeTurn(ctx, gameID, 8)
	require.NoError(t, err)

	state, err := manager.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, entity.MarkO, state.Board[8])
	assert.Equal(t, entity.PlayerX, state.CurrentPlayer)
	assert.Equal(t, 1, state.MoveCount)

	_, err = manager.GetGame(ctx, "missing")
	require.ErrorIs(t, err, apperror.ErrGameNotFound)
}

func TestGameManager_EndGame(t *testing.T) {
	manager := newManager(&fakePublisher{})
	ctx := context.Background()
	gameID, _, err := manager.NewGame(ctx)
	require.NoError(t, err)

	require.NoError(t, manager.EndGame(ctx, gameID))
	assert.Equal(t, 0, manager.Count())

	_, err = manager.GetGame(ctx, gameID)
	require.ErrorIs(t, err, apperror.ErrGameNotFound)

	err = manager.EndGame(ctx, gameID)
	require.ErrorIs(t, err, apperror.ErrGameNotFound)
}

func TestGameManager_ConcurrentTurns(t *testing.T) {
	// Given: one game hammered from many goroutines
	manager := newManager(&fakePublisher{})
	ctx := context.Background()
	gameID, _, err := manager.NewGame(ctx)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(cell int) {
			defer wg.Done()

			result, _, err := manager.MakeTurn(ctx, gameID, cell)
			if err != nil || !result.Accepted {
				return
			}

			mu.Lock()
			accepted++
			mu.Unlock()
		}(i % entity.BoardSize)
	}
	wg.Wait()

	// Then: the state stays consistent with the accepted moves
	state, err := manager.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, accepted, state.MoveCount)
	assert.Equal(t, state.Board.Occupied(), state.MoveCount)
}
