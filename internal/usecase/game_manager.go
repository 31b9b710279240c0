package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	"github.com/rocketscienceinc/tictactoe-engine/internal/tictactoe"
)

type eventPublisher interface {
	Publish(ctx context.Context, event *entity.GameEvent) error
}

// gameSession - an engine and the lock every engine call is made under.
type gameSession struct {
	mu     sync.Mutex
	engine *tictactoe.Engine
}

// GameManager - hosts independent games, one engine each, for concurrent callers.
type GameManager struct {
	logger    *slog.Logger
	publisher eventPublisher

	mu    sync.RWMutex
	games map[string]*gameSession
}

func NewGameManager(logger *slog.Logger, publisher eventPublisher) *GameManager {
	return &GameManager{
		logger:    logger.With("component", "game_manager"),
		publisher: publisher,
		games:     make(map[string]*gameSession),
	}
}

func (that *GameManager) NewGame(ctx context.Context) (string, entity.State, error) {
	gameID := uuid.NewString()
	session := &gameSession{engine: tictactoe.NewEngine()}

	that.mu.Lock()
	that.games[gameID] = session
	that.mu.Unlock()

	state := session.engine.CurrentState()
	that.publish(ctx, entity.NewGameEvent(entity.EventGameCreated, gameID, state))

	that.logger.Info("game created", "gameID", gameID)

	return gameID, state, nil
}

// MakeTurn - applies a cell selection to the game and returns the state right after it.
// Rejected moves come back as a result with a reason, not as an error.
func (that *GameManager) MakeTurn(ctx context.Context, gameID string, cell int) (entity.MoveResult, entity.State, error) {
	log := that.logger.With("method", "MakeTurn", "gameID", gameID, "cell", cell)

	session, err := that.getGame(gameID)
	if err != nil {
		return entity.MoveResult{}, entity.State{}, err
	}

	session.mu.Lock()
	result, err := session.engine.ApplyMove(cell)
	state := session.engine.CurrentState()
	session.mu.Unlock()

	if err != nil {
		log.Warn("invalid move", "error", err)
		return entity.MoveResult{}, entity.State{}, fmt.Errorf("failed make turn: %w", err)
	}

	if !result.Accepted {
		log.Debug("move rejected", "move", result.String())
		return result, state, nil
	}

	event := entity.NewGameEvent(entity.EventGameTurn, gameID, state)
	event.Result = &result
	that.publish(ctx, event)

	if result.Status.IsTerminal() {
		log.Info("game finished", "move", result.String())
	}

	return result, state, nil
}

func (that *GameManager) ResetGame(ctx context.Context, gameID string) (entity.State, error) {
	session, err := that.getGame(gameID)
	if err != nil {
		return entity.State{}, err
	}

	session.mu.Lock()
	session.engine.Reset()
	state := session.engine.CurrentState()
	session.mu.Unlock()

	that.publish(ctx, entity.NewGameEvent(entity.EventGameReset, gameID, state))

	return state, nil
}

func (that *GameManager) GetGame(_ context.Context, gameID string) (entity.State, error) {
	session, err := that.getGame(gameID)
	if err != nil {
		return entity.State{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	return session.engine.CurrentState(), nil
}

// EndGame - forgets the game; later calls with its id fail with ErrGameNotFound.
func (that *GameManager) EndGame(_ context.Context, gameID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.games[gameID]; !ok {
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
	}

	delete(that.games, gameID)
	that.logger.Info("game ended", "gameID", gameID)

	return nil
}

func (that *GameManager) Count() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.games)
}

func (that *GameManager) getGame(gameID string) (*gameSession, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	session, ok := that.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
	}

	return session, nil
}

// publish - best effort, a failed publish never affects the game.
func (that *GameManager) publish(ctx context.Context, event *entity.GameEvent) {
	if err := that.publisher.Publish(ctx, event); err != nil {
		that.logger.Error("failed to publish event", "type", event.Type, "gameID", event.GameID, "error", err)
	}
}
