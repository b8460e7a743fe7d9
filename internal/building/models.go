package building

import "time"

type ConstructionState string

const (
	StateInProgress ConstructionState = "in_progress"
	StateCompleted  ConstructionState = "completed"
)

// Building is a catalog entry shared by every game.
type Building struct {
	ID                 int       `json:"id"`
	Name               string    `json:"name"`
	Category           string    `json:"category"`
	BuildTime          int       `json:"build_time"`
	PrerequisiteTechID *int      `json:"prerequisite_tech_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// PlayerBuilding is a building under construction or completed in one city.
// At most one row per city has Status = in_progress.
type PlayerBuilding struct {
	ID             int               `json:"id"`
	CityID         int               `json:"city_id"`
	BuildingID     int               `json:"building_id"`
	Status         ConstructionState `json:"status"`
	ProgressPoints int               `json:"progress_points"`
	StartedAt      *time.Time        `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at"`

	BuildingName string `json:"building_name"`
	Category     string `json:"category"`
	BuildTime    int    `json:"build_time"`
}

// QueueEntry is one slot of a city's build queue. Positions form a dense
// 1..N sequence.
type QueueEntry struct {
	ID           int    `json:"id"`
	CityID       int    `json:"city_id"`
	BuildingID   int    `json:"building_id"`
	Position     int    `json:"position"`
	BuildingName string `json:"building_name"`
}
