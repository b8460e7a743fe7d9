package diplomacy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"civ-server/internal/civ"
	"civ-server/internal/shared/errors"
)

// CivCatalog resolves civilization ids to their catalog entries for names
// and personalities in responses and prompts.
type CivCatalog interface {
	GetCivilizations(ctx context.Context) ([]civ.Civilization, error)
}

// Responder generates the envoy's reply. Satisfied by the LLM client; a nil
// responder or a failed call falls back to canned lines.
type Responder interface {
	Complete(ctx context.Context, system, userPrompt string) (string, error)
}

const envoySystemPrompt = `You are the diplomatic envoy of a civilization in a turn-based strategy
game. Respond to the player in character, briefly, reflecting your
civilization's personality. One or two sentences.`

// fallbackReplies keeps diplomacy working without an LLM. Picked by
// conversation length so a session does not repeat itself immediately.
var fallbackReplies = []string{
	"Our civilization welcomes you. We hope for peaceful relations.",
	"An interesting proposal. We will consider it.",
	"Your civilization could become a threat. We proceed with caution.",
	"We are interested in trade with your people.",
	"Do not underestimate our strength.",
	"We ask that you respect our culture and traditions.",
}

type Service struct {
	store       Store
	catalog     CivCatalog
	responder   Responder
	budget      int
	resumeGrant int
	cooldown    int
	logger      *slog.Logger
}

func NewService(store Store, catalog CivCatalog, responder Responder, budget, resumeGrant, cooldown int, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		catalog:     catalog,
		responder:   responder,
		budget:      budget,
		resumeGrant: resumeGrant,
		cooldown:    cooldown,
		logger:      logger,
	}
}

func (s *Service) civName(ctx context.Context, civilizationID int) (string, string) {
	civs, err := s.catalog.GetCivilizations(ctx)
	if err != nil {
		s.logger.Warn("Failed to resolve civilization catalog", "component", "diplomacy_service", "error", err)
		return "Unknown Civilization", ""
	}
	for _, c := range civs {
		if c.ID == civilizationID {
			return c.Name, c.Personality
		}
	}
	return "Unknown Civilization", ""
}

// FirstEncounter opens the diplomatic channel with a civilization the player
// has just met. Meeting the same civilization twice is a Conflict.
func (s *Service) FirstEncounter(ctx context.Context, gameID, playerID, civilizationID int) (*Session, string, error) {
	logger := s.logger.With("component", "diplomacy_service", "operation", "first_encounter",
		"game_id", gameID, "player_id", playerID, "civilization_id", civilizationID)

	existing, err := s.store.Get(ctx, gameID, playerID, civilizationID)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", errors.Conflictf("civilization %d has already been encountered", civilizationID)
	}

	name, _ := s.civName(ctx, civilizationID)

	session := &Session{
		ID:                    uuid.NewString(),
		GameID:                gameID,
		PlayerID:              playerID,
		CivilizationID:        civilizationID,
		Messages:              []Message{},
		LastInteraction:       time.Now().UTC(),
		RelationshipScore:     initialScore,
		RemainingInteractions: s.budget,
		FirstEncounter:        true,
	}

	if err := s.store.Save(ctx, session); err != nil {
		return nil, "", err
	}

	greeting := fmt.Sprintf("You have discovered the %s civilization! Their envoy wishes to speak with you.", name)
	logger.Info("Diplomacy session opened")

	return session, greeting, nil
}

// SendMessage delivers a player's message, generates the envoy's reply, and
// rescores the relationship. An exhausted budget is a Conflict until the
// cooldown turn passes; the message that drains it sets the cooldown.
func (s *Service) SendMessage(ctx context.Context, gameID, playerID, civilizationID, currentTurn int, content string) (*Session, string, error) {
	logger := s.logger.With("component", "diplomacy_service", "operation", "send_message",
		"game_id", gameID, "player_id", playerID, "civilization_id", civilizationID)

	if content == "" {
		return nil, "", errors.Validation("message must not be empty")
	}

	session, err := s.store.Get(ctx, gameID, playerID, civilizationID)
	if err != nil {
		return nil, "", err
	}
	if session == nil {
		return nil, "", errors.NotFoundf("no diplomacy session with civilization %d", civilizationID)
	}

	if session.RemainingInteractions <= 0 {
		if session.ResumeTurn != nil {
			return nil, "", errors.Conflictf("diplomacy is on cooldown until turn %d", *session.ResumeTurn)
		}
		return nil, "", errors.Conflictf("no interactions remaining with civilization %d", civilizationID)
	}

	now := time.Now().UTC()
	session.Messages = append(session.Messages, Message{Role: RoleUser, Content: content, Timestamp: now})

	reply := s.reply(ctx, session, civilizationID)
	session.Messages = append(session.Messages, Message{Role: RoleAssistant, Content: reply, Timestamp: time.Now().UTC()})

	session.LastInteraction = now
	session.RemainingInteractions--
	session.RelationshipScore = scoreRelationship(session.Messages)

	if session.RemainingInteractions == 0 {
		resumeTurn := currentTurn + s.cooldown
		session.ResumeTurn = &resumeTurn
		logger.Info("Interaction budget drained", "resume_turn", resumeTurn)
	}

	if err := s.store.Save(ctx, session); err != nil {
		return nil, "", err
	}

	return session, reply, nil
}

func (s *Service) reply(ctx context.Context, session *Session, civilizationID int) string {
	name, personality := s.civName(ctx, civilizationID)

	if s.responder != nil {
		var transcript string
		for _, msg := range session.Messages {
			transcript += fmt.Sprintf("%s: %s\n", msg.Role, msg.Content)
		}
		prompt := fmt.Sprintf("You represent the %s civilization. Personality: %s.\nConversation so far:\n%s\nReply as the envoy.",
			name, personality, transcript)

		reply, err := s.responder.Complete(ctx, envoySystemPrompt, prompt)
		if err == nil && reply != "" {
			return reply
		}
		if err != nil {
			s.logger.Warn("Envoy reply generation failed, using canned line",
				"component", "diplomacy_service", "civilization_id", civilizationID, "error", err)
		}
	}

	return fallbackReplies[len(session.Messages)/2%len(fallbackReplies)]
}

// Resume recharges the interaction budget once the cooldown turn is reached.
func (s *Service) Resume(ctx context.Context, gameID, playerID, civilizationID, currentTurn int) (*Session, error) {
	session, err := s.store.Get(ctx, gameID, playerID, civilizationID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.NotFoundf("no diplomacy session with civilization %d", civilizationID)
	}

	if session.ResumeTurn == nil || currentTurn < *session.ResumeTurn {
		return nil, errors.Conflictf("diplomacy cannot resume yet with civilization %d", civilizationID)
	}

	session.RemainingInteractions = s.resumeGrant
	session.FirstEncounter = false
	session.ResumeTurn = nil
	session.LastInteraction = time.Now().UTC()

	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Relationship returns the current standing with one civilization.
func (s *Service) Relationship(ctx context.Context, gameID, playerID, civilizationID int) (*Relationship, error) {
	session, err := s.store.Get(ctx, gameID, playerID, civilizationID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.NotFoundf("no diplomacy session with civilization %d", civilizationID)
	}

	name, _ := s.civName(ctx, civilizationID)
	return &Relationship{
		CivilizationID:    civilizationID,
		CivilizationName:  name,
		RelationshipScore: session.RelationshipScore,
		LastInteraction:   session.LastInteraction,
		CanInteract:       session.CanInteract(),
		ResumeTurn:        session.ResumeTurn,
	}, nil
}

// AllRelationships returns the player's standing with every civilization
// they have met in the game.
func (s *Service) AllRelationships(ctx context.Context, gameID, playerID int) ([]Relationship, error) {
	sessions, err := s.store.List(ctx, gameID)
	if err != nil {
		return nil, err
	}

	relationships := make([]Relationship, 0, len(sessions))
	for _, session := range sessions {
		if session.PlayerID != playerID {
			continue
		}
		name, _ := s.civName(ctx, session.CivilizationID)
		relationships = append(relationships, Relationship{
			CivilizationID:    session.CivilizationID,
			CivilizationName:  name,
			RelationshipScore: session.RelationshipScore,
			LastInteraction:   session.LastInteraction,
			CanInteract:       session.CanInteract(),
			ResumeTurn:        session.ResumeTurn,
		})
	}
	return relationships, nil
}

// History returns the most recent messages with one civilization, newest
// last. limit is clamped to [1, 50]; zero means the default of 10.
func (s *Service) History(ctx context.Context, gameID, playerID, civilizationID, limit int) ([]Message, int, error) {
	session, err := s.store.Get(ctx, gameID, playerID, civilizationID)
	if err != nil {
		return nil, 0, err
	}
	if session == nil {
		return nil, 0, errors.NotFoundf("no diplomacy session with civilization %d", civilizationID)
	}

	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	messages := session.Messages
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, session.RelationshipScore, nil
}

// StateJSON summarizes a game's diplomacy for the turn snapshot.
func (s *Service) StateJSON(ctx context.Context, gameID int) (json.RawMessage, error) {
	sessions, err := s.store.List(ctx, gameID)
	if err != nil {
		return nil, err
	}

	type sessionSummary struct {
		PlayerID              int  `json:"player_id"`
		CivilizationID        int  `json:"civilization_id"`
		RelationshipScore     int  `json:"relationship_score"`
		RemainingInteractions int  `json:"remaining_interactions"`
		ResumeTurn            *int `json:"can_interact_again_turn"`
	}

	summaries := make([]sessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, sessionSummary{
			PlayerID:              session.PlayerID,
			CivilizationID:        session.CivilizationID,
			RelationshipScore:     session.RelationshipScore,
			RemainingInteractions: session.RemainingInteractions,
			ResumeTurn:            session.ResumeTurn,
		})
	}

	data, err := json.Marshal(map[string]interface{}{"sessions": summaries})
	if err != nil {
		return nil, errors.WrapInternal("failed to encode diplomacy state", err)
	}
	return data, nil
}
