package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"civ-server/internal/building"
	"civ-server/internal/shared/errors"
	"civ-server/internal/shared/response"
)

type BuildingHandler struct {
	service *building.Service
}

func NewBuildingHandler(service *building.Service) *BuildingHandler {
	return &BuildingHandler{service: service}
}

func (h *BuildingHandler) GetBuildings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_buildings")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	buildings, err := h.service.GetBuildings(ctx, r.URL.Query().Get("category"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if buildings == nil {
		buildings = []building.Building{}
	}

	response.Success(w, http.StatusOK, buildings)
}

func (h *BuildingHandler) GetBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_building")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	buildingID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid building ID format", err))
		return
	}

	b, err := h.service.GetBuilding(ctx, buildingID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, b)
}

func (h *BuildingHandler) GetCityBuildings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_city_buildings")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	cityID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid city ID format", err))
		return
	}

	buildings, err := h.service.GetCityBuildings(ctx, cityID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if buildings == nil {
		buildings = []building.PlayerBuilding{}
	}

	response.Success(w, http.StatusOK, buildings)
}

type queueRequest struct {
	BuildingID int `json:"building_id"`
}

func (h *BuildingHandler) BuildQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "build_queue")

	cityID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid city ID format", err))
		return
	}

	switch r.Method {
	case http.MethodGet:
		queue, err := h.service.GetQueue(ctx, cityID)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		if queue == nil {
			queue = []building.QueueEntry{}
		}
		response.Success(w, http.StatusOK, queue)

	case http.MethodPost:
		var req queueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
			return
		}

		entry, err := h.service.AddToQueue(ctx, cityID, req.BuildingID, nil)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusCreated, entry)

	default:
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

func (h *BuildingHandler) RemoveQueueEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "remove_build_queue_entry")

	if r.Method != http.MethodDelete {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	cityID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid city ID format", err))
		return
	}

	entryID, err := strconv.Atoi(r.PathValue("queueId"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid queue entry ID format", err))
		return
	}

	if err := h.service.RemoveFromQueue(ctx, cityID, entryID); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]bool{"removed": true})
}

type startBuildRequest struct {
	BuildingID int `json:"building_id"`
}

func (h *BuildingHandler) StartConstruction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "start_construction")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	cityID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid city ID format", err))
		return
	}

	var req startBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	queued, err := h.service.StartConstruction(ctx, cityID, req.BuildingID, nil)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]bool{"queued": queued})
}

func (h *BuildingHandler) CancelConstruction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "cancel_construction")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	cityID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid city ID format", err))
		return
	}

	if err := h.service.CancelConstruction(ctx, cityID); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]bool{"canceled": true})
}
