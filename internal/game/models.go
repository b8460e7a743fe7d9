package game

import (
	"encoding/json"
	"time"
)

type Game struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	CurrentTurn int       `json:"current_turn"`
	CurrentYear int       `json:"current_year"`
	TurnLimit   int       `json:"turn_limit"`
	MapRadius   int       `json:"map_radius"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TurnSnapshot is an immutable, append-only capture of one game turn. At most
// one snapshot exists per (game, turn number); it is never patched after a
// later turn's snapshot exists.
type TurnSnapshot struct {
	ID              int             `json:"id"`
	GameID          int             `json:"game_id"`
	TurnNumber      int             `json:"turn_number"`
	Year            int             `json:"year"`
	Era             string          `json:"era"`
	ObservedMap     json.RawMessage `json:"observed_map"`
	ResearchState   json.RawMessage `json:"research_state"`
	ProductionState json.RawMessage `json:"production_state"`
	DiplomacyState  json.RawMessage `json:"diplomacy_state"`
	ResourceState   json.RawMessage `json:"resource_state"`
	StateData       json.RawMessage `json:"state_data"`
	PlayerResources json.RawMessage `json:"player_resources"`
	CreatedAt       time.Time       `json:"created_at"`
}

// GameState is the read model returned by the state endpoint: the game row
// plus the snapshot for the requested turn.
type GameState struct {
	Game     *Game         `json:"game"`
	Snapshot *TurnSnapshot `json:"snapshot"`
}
