package city

import (
	"time"

	"civ-server/internal/hexmap"
)

// City is owned by exactly one civilization instance. Coordinates are unique
// within a game: one city per tile.
type City struct {
	ID          int       `json:"id"`
	GameCivID   int       `json:"game_civ_id"`
	Name        string    `json:"name"`
	Q           int       `json:"q"`
	R           int       `json:"r"`
	Population  int       `json:"population"`
	Food        int       `json:"food"`
	Production  int       `json:"production"`
	FoundedTurn int       `json:"founded_turn"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Coord returns the city's position on the hex grid.
func (c *City) Coord() hexmap.Coord {
	return hexmap.Coord{Q: c.Q, R: c.R}
}
