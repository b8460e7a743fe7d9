package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"civ-server/internal/diplomacy"
	"civ-server/internal/shared/errors"
	"civ-server/internal/shared/response"
)

type DiplomacyHandler struct {
	service *diplomacy.Service
}

func NewDiplomacyHandler(service *diplomacy.Service) *DiplomacyHandler {
	return &DiplomacyHandler{service: service}
}

type encounterRequest struct {
	GameID         int `json:"game_id"`
	PlayerID       int `json:"player_id"`
	CivilizationID int `json:"civilization_id"`
}

type messageRequest struct {
	GameID         int    `json:"game_id"`
	PlayerID       int    `json:"player_id"`
	CivilizationID int    `json:"civilization_id"`
	CurrentTurn    int    `json:"current_turn"`
	Message        string `json:"message"`
}

func (h *DiplomacyHandler) FirstEncounter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "first_encounter")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req encounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	session, greeting, err := h.service.FirstEncounter(ctx, req.GameID, req.PlayerID, req.CivilizationID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{
		"session_id":             session.ID,
		"initial_message":        greeting,
		"relationship_score":     session.RelationshipScore,
		"remaining_interactions": session.RemainingInteractions,
	})
}

func (h *DiplomacyHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "send_diplomacy_message")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	session, reply, err := h.service.SendMessage(ctx, req.GameID, req.PlayerID, req.CivilizationID, req.CurrentTurn, req.Message)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{
		"message":                reply,
		"relationship_score":     session.RelationshipScore,
		"remaining_interactions": session.RemainingInteractions,
		"can_interact_again_turn": func() interface{} {
			if session.ResumeTurn == nil {
				return nil
			}
			return *session.ResumeTurn
		}(),
	})
}

func (h *DiplomacyHandler) Resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "resume_diplomacy")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	session, err := h.service.Resume(ctx, req.GameID, req.PlayerID, req.CivilizationID, req.CurrentTurn)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{
		"session_id":             session.ID,
		"relationship_score":     session.RelationshipScore,
		"remaining_interactions": session.RemainingInteractions,
	})
}

func (h *DiplomacyHandler) GetRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_relationship")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameID, playerID, civID, err := pathIDs(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	relationship, err := h.service.Relationship(ctx, gameID, playerID, civID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, relationship)
}

func (h *DiplomacyHandler) GetAllRelationships(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_all_relationships")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameID, err := strconv.Atoi(r.URL.Query().Get("game_id"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid game_id parameter", err))
		return
	}
	playerID, err := strconv.Atoi(r.PathValue("playerId"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid player ID format", err))
		return
	}

	relationships, err := h.service.AllRelationships(ctx, gameID, playerID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, relationships)
}

func (h *DiplomacyHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_diplomacy_history")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	gameID, playerID, civID, err := pathIDs(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid limit parameter", err))
			return
		}
	}

	messages, score, err := h.service.History(ctx, gameID, playerID, civID, limit)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{
		"messages":           messages,
		"relationship_score": score,
	})
}

func pathIDs(r *http.Request) (gameID, playerID, civID int, err error) {
	gameID, err = strconv.Atoi(r.URL.Query().Get("game_id"))
	if err != nil {
		return 0, 0, 0, errors.WrapValidation("invalid game_id parameter", err)
	}
	playerID, err = strconv.Atoi(r.PathValue("playerId"))
	if err != nil {
		return 0, 0, 0, errors.WrapValidation("invalid player ID format", err)
	}
	civID, err = strconv.Atoi(r.PathValue("civId"))
	if err != nil {
		return 0, 0, 0, errors.WrapValidation("invalid civilization ID format", err)
	}
	return gameID, playerID, civID, nil
}
