package entity

import "time"

type EventType string

const (
	EventGameCreated EventType = "game:created"
	EventGameTurn    EventType = "game:turn"
	EventGameReset   EventType = "game:reset"
)

// GameEvent is emitted to observers after a game changes.
type GameEvent struct {
	Type   EventType   `json:"type"`
	GameID string      `json:"game_id"`
	State  State       `json:"state"`
	Result *MoveResult `json:"result,omitempty"`
	At     time.Time   `json:"at"`
}

func NewGameEvent(eventType EventType, gameID string, state State) *GameEvent {
	return &GameEvent{
		Type:   eventType,
		GameID: gameID,
		State:  state,
		At:     time.Now().UTC(),
	}
}
