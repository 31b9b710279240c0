package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-engine/internal/apperror"
)

// gameHandler - returns the current state of a game as JSON.
func (that *Server) gameHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "gameHandler")

	gameID := r.PathValue("id")

	state, err := that.games.GetGame(r.Context(), gameID)
	if errors.Is(err, apperror.ErrGameNotFound) {
		http.Error(w, "Game not found", http.StatusNotFound)
		return
	}

	if err != nil {
		log.Error("failed to get game", "gameID", gameID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(state); err != nil {
		log.Error("failed to encode game", "gameID", gameID, "error", err)
	}
}
