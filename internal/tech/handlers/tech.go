package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"civ-server/internal/shared/errors"
	"civ-server/internal/shared/response"
	"civ-server/internal/tech"
)

type TechHandler struct {
	service *tech.Service
}

func NewTechHandler(service *tech.Service) *TechHandler {
	return &TechHandler{service: service}
}

func (h *TechHandler) GetTechnologies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_technologies")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	era := r.URL.Query().Get("era")
	treeType := r.URL.Query().Get("tree_type")

	techs, err := h.service.GetTechnologies(ctx, era, treeType)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if techs == nil {
		techs = []tech.Technology{}
	}

	response.Success(w, http.StatusOK, techs)
}

func (h *TechHandler) GetTechnology(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_technology")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	techID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid technology ID format", err))
		return
	}

	technology, err := h.service.GetTechnology(ctx, techID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, technology)
}

func (h *TechHandler) GetResearchStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_research_status")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameCivID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game civ ID format", err))
		return
	}

	status, err := h.service.GetStatus(ctx, gameCivID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, status)
}

type queueRequest struct {
	TechnologyID int `json:"technology_id"`
}

func (h *TechHandler) ResearchQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "research_queue")

	gameCivID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game civ ID format", err))
		return
	}

	switch r.Method {
	case http.MethodGet:
		queue, err := h.service.GetQueue(ctx, gameCivID)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		if queue == nil {
			queue = []tech.QueueEntry{}
		}
		response.Success(w, http.StatusOK, queue)

	case http.MethodPost:
		var req queueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
			return
		}

		entry, err := h.service.AddToQueue(ctx, gameCivID, req.TechnologyID, nil)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.Success(w, http.StatusCreated, entry)

	default:
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

func (h *TechHandler) RemoveQueueEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "remove_research_queue_entry")

	if r.Method != http.MethodDelete {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameCivID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game civ ID format", err))
		return
	}

	entryID, err := strconv.Atoi(r.PathValue("queueId"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid queue entry ID format", err))
		return
	}

	if err := h.service.RemoveFromQueue(ctx, gameCivID, entryID); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]bool{"removed": true})
}

type startResearchRequest struct {
	TechnologyID int `json:"technology_id"`
}

func (h *TechHandler) StartResearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "start_research")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameCivID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game civ ID format", err))
		return
	}

	var req startResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	queued, err := h.service.StartResearch(ctx, gameCivID, req.TechnologyID, nil)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]bool{"queued": queued})
}

func (h *TechHandler) CancelResearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "cancel_research")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameCivID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game civ ID format", err))
		return
	}

	if err := h.service.CancelResearch(ctx, gameCivID); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]bool{"canceled": true})
}
