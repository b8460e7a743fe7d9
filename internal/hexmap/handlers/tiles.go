package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"civ-server/internal/hexmap"
	"civ-server/internal/shared/errors"
	"civ-server/internal/shared/response"
)

type MapHandler struct {
	service *hexmap.Service
}

func NewMapHandler(service *hexmap.Service) *MapHandler {
	return &MapHandler{service: service}
}

func (h *MapHandler) GetTiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_map_tiles")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameID, err := strconv.Atoi(r.PathValue("gameId"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game ID format", err))
		return
	}

	tiles, err := h.service.GetTiles(ctx, gameID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if tiles == nil {
		tiles = []hexmap.Tile{}
	}

	response.Success(w, http.StatusOK, tiles)
}

func (h *MapHandler) GetAdjacent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_adjacent_tiles")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameID, err := strconv.Atoi(r.PathValue("gameId"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game ID format", err))
		return
	}

	q, err := strconv.Atoi(r.URL.Query().Get("q"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid q coordinate", err))
		return
	}

	rCoord, err := strconv.Atoi(r.URL.Query().Get("r"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid r coordinate", err))
		return
	}

	tiles, err := h.service.GetAdjacent(ctx, gameID, hexmap.Coord{Q: q, R: rCoord})
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if tiles == nil {
		tiles = []hexmap.Tile{}
	}

	response.Success(w, http.StatusOK, tiles)
}
