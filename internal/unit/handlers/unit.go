package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"civ-server/internal/shared/errors"
	"civ-server/internal/shared/response"
	"civ-server/internal/unit"
)

type UnitHandler struct {
	service *unit.Service
}

func NewUnitHandler(service *unit.Service) *UnitHandler {
	return &UnitHandler{service: service}
}

func (h *UnitHandler) GetUnitTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_unit_types")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	types, err := h.service.GetUnitTypes(ctx, r.URL.Query().Get("category"), r.URL.Query().Get("era"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if types == nil {
		types = []unit.UnitType{}
	}

	response.Success(w, http.StatusOK, types)
}

func (h *UnitHandler) GetUnitType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_unit_type")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	unitTypeID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid unit type ID format", err))
		return
	}

	unitType, err := h.service.GetUnitType(ctx, unitTypeID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, unitType)
}

func (h *UnitHandler) GetCivUnits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_civ_units")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameCivID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game civ ID format", err))
		return
	}

	units, err := h.service.GetCivUnits(ctx, gameCivID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if units == nil {
		units = []unit.GameUnit{}
	}

	response.Success(w, http.StatusOK, units)
}

type queueRequest struct {
	UnitTypeID int `json:"unit_type_id"`
}

func (h *UnitHandler) ProductionQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "production_queue")

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
			queue = []unit.QueueEntry{}
		}
		response.Success(w, http.StatusOK, queue)

	case http.MethodPost:
		var req queueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
			return
		}

		entry, err := h.service.QueueProduction(ctx, cityID, req.UnitTypeID, nil)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusCreated, entry)

	default:
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

func (h *UnitHandler) RemoveQueueEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "remove_production_queue_entry")

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
