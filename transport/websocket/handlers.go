package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
	eventbus "github.com/rocketscienceinc/tictactoe-engine/internal/transport/redis"
)

func decodePayload(msg *Message) (Payload, error) {
	var payload Payload
	if len(msg.Payload) == 0 {
		return payload, nil
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return payload, nil
}

// errorText - the message shown to the client for a use case error.
func errorText(err error) string {
	switch {
	case errors.Is(err, apperror.ErrGameNotFound):
		return "game not found"
	case errors.Is(err, apperror.ErrInvalidIndex):
		return "cell must be between 0 and 8"
	case errors.Is(err, eventbus.ErrSubscriptionsDisabled):
		return "game events are disabled"
	default:
		return "internal error"
	}
}

func (that *Server) handleNewGame(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleNewGame")

	gameID, state, err := that.games.NewGame(ctx)
	if err != nil {
		log.Error("failed to create game", "error", err)
		return that.sendErrorResponse(conn, msg.Action, "failed to create a new game")
	}

	conn.ownGame(gameID)

	return that.sendMessage(conn, msg.Action, Payload{GameID: gameID, Game: &state})
}

func (that *Server) handleGameTurn(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleGameTurn")

	payload, err := decodePayload(msg)
	if err != nil {
		log.Warn("bad payload", "error", err)
		return that.sendErrorResponse(conn, msg.Action, "malformed payload")
	}

	if payload.GameID == "" || payload.Cell == nil {
		return that.sendErrorResponse(conn, msg.Action, "game_id and cell are required")
	}

	result, state, err := that.games.MakeTurn(ctx, payload.GameID, *payload.Cell)
	if err != nil {
		log.Warn("failed to make turn", "gameID", payload.GameID, "error", err)
		return that.sendMessage(conn, msg.Action, Payload{GameID: payload.GameID, Error: errorText(err)})
	}

	response := Payload{GameID: payload.GameID, Result: &result, Game: &state}
	if reasonErr := result.Reason.Err(); reasonErr != nil {
		response.Error = reasonErr.Error()
	}

	return that.sendMessage(conn, msg.Action, response)
}

func (that *Server) handleResetGame(ctx context.Context, conn *connection, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil || payload.GameID == "" {
		return that.sendErrorResponse(conn, msg.Action, "game_id is required")
	}

	state, err := that.games.ResetGame(ctx, payload.GameID)
	if err != nil {
		return that.sendMessage(conn, msg.Action, Payload{GameID: payload.GameID, Error: errorText(err)})
	}

	return that.sendMessage(conn, msg.Action, Payload{GameID: payload.GameID, Game: &state})
}

func (that *Server) handleGameState(ctx context.Context, conn *connection, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil || payload.GameID == "" {
		return that.sendErrorResponse(conn, msg.Action, "game_id is required")
	}

	state, err := that.games.GetGame(ctx, payload.GameID)
	if err != nil {
		return that.sendMessage(conn, msg.Action, Payload{GameID: payload.GameID, Error: errorText(err)})
	}

	return that.sendMessage(conn, msg.Action, Payload{GameID: payload.GameID, Game: &state})
}

// handleWatchGame - forwards the events of a game to this connection as game:event messages.
func (that *Server) handleWatchGame(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleWatchGame")

	payload, err := decodePayload(msg)
	if err != nil || payload.GameID == "" {
		return that.sendErrorResponse(conn, msg.Action, "game_id is required")
	}

	if _, err = that.games.GetGame(ctx, payload.GameID); err != nil {
		return that.sendMessage(conn, msg.Action, Payload{GameID: payload.GameID, Error: errorText(err)})
	}

	sub, err := that.events.Subscribe(ctx, payload.GameID)
	if err != nil {
		log.Warn("failed to subscribe", "gameID", payload.GameID, "error", err)
		return that.sendMessage(conn, msg.Action, Payload{GameID: payload.GameID, Error: errorText(err)})
	}

	if !conn.addWatch(payload.GameID, sub) {
		_ = sub.Close()
		return that.sendMessage(conn, msg.Action, Payload{GameID: payload.GameID})
	}

	go func() {
		for event := range sub.Events() {
			if err := that.sendMessage(conn, actionEvent, Payload{GameID: event.GameID, Event: event}); err != nil {
				log.Warn("failed to forward event", "gameID", event.GameID, "error", err)
				return
			}
		}
	}()

	return that.sendMessage(conn, msg.Action, Payload{GameID: payload.GameID})
}
