package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

const (
	actionNewGame = "game:new"
	actionTurn    = "game:turn"
	actionReset   = "game:reset"
	actionState   = "game:state"
	actionWatch   = "game:watch"
	actionEvent   = "game:event"
	actionError   = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Payload struct {
	GameID string             `json:"game_id,omitempty"`
	Cell   *int               `json:"cell,omitempty"`
	Game   *entity.State      `json:"game,omitempty"`
	Result *entity.MoveResult `json:"result,omitempty"`
	Event  *entity.GameEvent  `json:"event,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func newMessage(action string, payload Payload) (*Message, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{Action: action, Payload: payloadJSON}, nil
}
