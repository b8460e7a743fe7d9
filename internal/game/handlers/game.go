package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"civ-server/internal/game"
	"civ-server/internal/shared/errors"
	"civ-server/internal/shared/response"
)

type GameHandler struct {
	service *game.Service
}

func NewGameHandler(service *game.Service) *GameHandler {
	return &GameHandler{service: service}
}

func (h *GameHandler) GetGames(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_games")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	games, err := h.service.GetGames(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if games == nil {
		games = []game.Game{}
	}

	response.Success(w, http.StatusOK, games)
}

func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_game")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game ID format", err))
		return
	}

	g, err := h.service.GetGame(ctx, gameID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, g)
}

func (h *GameHandler) GetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_game_state")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game ID format", err))
		return
	}

	turn := 0
	if turnStr := r.URL.Query().Get("turn"); turnStr != "" {
		turn, err = strconv.Atoi(turnStr)
		if err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid turn number", err))
			return
		}
	}

	state, err := h.service.GetState(ctx, gameID, turn)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, state)
}
