package entity

// Player is one of the two sides of a game.
type Player string

const (
	PlayerX Player = "X"
	PlayerO Player = "O"

	// FirstPlayer moves first after a game is created or reset.
	FirstPlayer = PlayerO
)

// Mark returns the cell value the player places on the board.
func (that Player) Mark() Cell {
	switch that {
	case PlayerX:
		return MarkX
	case PlayerO:
		return MarkO
	default:
		return EmptyCell
	}
}

func (that Player) Opponent() Player {
	if that == PlayerX {
		return PlayerO
	}
	return PlayerX
}
