package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"civ-server/internal/shared/errors"
	"civ-server/internal/shared/response"
	"civ-server/internal/turn"
)

type TurnHandler struct {
	service *turn.Service
}

func NewTurnHandler(service *turn.Service) *TurnHandler {
	return &TurnHandler{service: service}
}

// EndTurn handles POST /api/games/{id}/turn/end. The body is an optional
// client-state payload; an empty body advances the turn with no reconcile.
func (h *TurnHandler) EndTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "end_turn")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game ID format", err))
		return
	}

	var state *turn.ClientState
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("failed to read request body", err))
		return
	}
	if len(body) > 0 {
		state = &turn.ClientState{}
		if err := json.Unmarshal(body, state); err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid client state payload", err))
			return
		}
	}

	result, err := h.service.EndTurn(ctx, gameID, state)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, result)
}
