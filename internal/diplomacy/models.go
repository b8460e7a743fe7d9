package diplomacy

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one player-civilization diplomatic channel within a game. The
// relationship score stays in [0, 100]; the interaction budget counts down
// per message and recharges after the cooldown turn passes.
type Session struct {
	ID                    string    `json:"session_id"`
	GameID                int       `json:"game_id"`
	PlayerID              int       `json:"player_id"`
	CivilizationID        int       `json:"civilization_id"`
	Messages              []Message `json:"messages"`
	LastInteraction       time.Time `json:"last_interaction"`
	RelationshipScore     int       `json:"relationship_score"`
	RemainingInteractions int       `json:"remaining_interactions"`
	FirstEncounter        bool      `json:"is_first_encounter"`
	ResumeTurn            *int      `json:"can_interact_again_turn"`
}

// CanInteract reports whether the session accepts a message right now.
func (s *Session) CanInteract() bool {
	return s.RemainingInteractions > 0
}

// Relationship is the read model for the relationship endpoints.
type Relationship struct {
	CivilizationID    int       `json:"civilization_id"`
	CivilizationName  string    `json:"civilization_name"`
	RelationshipScore int       `json:"relationship_score"`
	LastInteraction   time.Time `json:"last_interaction"`
	CanInteract       bool      `json:"can_interact"`
	ResumeTurn        *int      `json:"can_interact_again_turn"`
}
