// Package ai drives non-player civilizations. Each turn the engine gathers a
// snapshot of a civilization's cities, research, and resources, asks a
// pluggable decision provider what to build and research, and applies the
// answers through the same queue and in-progress primitives the player path
// uses.
package ai

import "context"

// BuildKind distinguishes the two things a city can start producing.
type BuildKind string

const (
	BuildKindBuilding BuildKind = "building"
	BuildKindUnit     BuildKind = "unit"
)

// CitySnapshot is one city's view presented to a decision provider. Eligible
// lists are already filtered by prerequisites and exclude completed or queued
// items; providers only pick, never re-validate.
type CitySnapshot struct {
	CityID            int    `json:"city_id"`
	Name              string `json:"name"`
	Production        int    `json:"production"`
	Busy              bool   `json:"busy"`
	EligibleBuildings []int  `json:"eligible_buildings"`
	EligibleUnits     []int  `json:"eligible_units"`
}

// Snapshot is the structured view of one civilization handed to a decision
// provider.
type Snapshot struct {
	GameCivID      int            `json:"game_civ_id"`
	Name           string         `json:"name"`
	Personality    string         `json:"personality"`
	Gold           int            `json:"gold"`
	Science        int            `json:"science"`
	Culture        int            `json:"culture"`
	ResearchActive bool           `json:"research_active"`
	EligibleTechs  []int          `json:"eligible_techs"`
	Cities         []CitySnapshot `json:"cities"`
}

// BuildChoice is what one city should start producing.
type BuildChoice struct {
	Kind BuildKind `json:"kind"`
	ID   int       `json:"id"`
}

// CityDecision pairs a city with its build choice. A nil Build means the
// city does nothing this turn.
type CityDecision struct {
	CityID int          `json:"city_id"`
	Build  *BuildChoice `json:"build"`
}

// DecisionSet is a provider's full answer for one civilization. A nil
// ResearchTechID means no new research is started.
type DecisionSet struct {
	Cities         []CityDecision `json:"cities"`
	ResearchTechID *int           `json:"research_tech_id"`
}

// Provider produces a decision set from a civilization snapshot. An empty
// decision set is a valid answer; an error makes the engine fall back to the
// deterministic provider.
type Provider interface {
	Decisions(ctx context.Context, snap *Snapshot, turn int) (*DecisionSet, error)
}
