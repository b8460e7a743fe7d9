package tech

import "time"

// ResearchState is the lifecycle of one technology for one civilization
// instance.
type ResearchState string

const (
	StateAvailable  ResearchState = "available"
	StateInProgress ResearchState = "in_progress"
	StateCompleted  ResearchState = "completed"
)

// Technology is a catalog entry shared by every game.
type Technology struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Era          string    `json:"era"`
	TreeType     string    `json:"tree_type"`
	ResearchCost int       `json:"research_cost"`
	CreatedAt    time.Time `json:"created_at"`
}

// CivTechnology is one civilization's research record for one technology.
// At most one record per civilization has Status = in_progress.
type CivTechnology struct {
	ID             int           `json:"id"`
	GameCivID      int           `json:"game_civ_id"`
	TechnologyID   int           `json:"technology_id"`
	Status         ResearchState `json:"status"`
	ProgressPoints int           `json:"progress_points"`
	StartedAt      *time.Time    `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at"`

	TechName     string `json:"tech_name"`
	ResearchCost int    `json:"research_cost"`
}

// QueueEntry is one slot of a civilization's research queue. Positions form a
// dense 1..N sequence.
type QueueEntry struct {
	ID           int    `json:"id"`
	GameCivID    int    `json:"game_civ_id"`
	TechnologyID int    `json:"technology_id"`
	Position     int    `json:"position"`
	TechName     string `json:"tech_name"`
}

// ResearchStatus is the aggregate view returned by the research-status
// endpoint.
type ResearchStatus struct {
	Completed  []CivTechnology `json:"completed"`
	InProgress *CivTechnology  `json:"in_progress"`
	Queue      []QueueEntry    `json:"queue"`
	Available  []Technology    `json:"available"`
}
