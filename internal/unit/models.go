package unit

import "time"

// UnitType is a catalog entry shared by every game.
type UnitType struct {
	ID                 int       `json:"id"`
	Name               string    `json:"name"`
	Category           string    `json:"category"`
	Era                string    `json:"era"`
	BuildTurns         int       `json:"build_turns"`
	BaseHP             int       `json:"base_hp"`
	PrerequisiteTechID *int      `json:"prerequisite_tech_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// GameUnit is one unit instance on the map, owned by a civilization
// instance.
type GameUnit struct {
	ID          int       `json:"id"`
	GameCivID   int       `json:"game_civ_id"`
	UnitTypeID  int       `json:"unit_type_id"`
	Q           int       `json:"q"`
	R           int       `json:"r"`
	HP          int       `json:"hp"`
	CreatedTurn int       `json:"created_turn"`
	CreatedAt   time.Time `json:"created_at"`

	UnitName string `json:"unit_name"`
	Category string `json:"category"`
	BaseHP   int    `json:"base_hp"`
}

// QueueEntry is one slot of a city's unit production queue. Unlike build and
// research queues it carries a remaining-turns countdown, not accumulated
// points.
type QueueEntry struct {
	ID         int    `json:"id"`
	CityID     int    `json:"city_id"`
	UnitTypeID int    `json:"unit_type_id"`
	TurnsLeft  int    `json:"turns_left"`
	Position   int    `json:"position"`
	UnitName   string `json:"unit_name"`
}
