// Package hexmap provides the hex grid coordinate system and map tile access.
// The grid uses axial coordinates (q, r); the third cube coordinate s is
// derived as -q-r.
package hexmap

import "time"

// Coord represents a position on the hex grid using axial coordinates.
type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (c Coord) S() int {
	return -c.Q - c.R
}

// NeighborDirections defines the six neighbor offsets in axial coordinates.
var NeighborDirections = [6]Coord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent coordinates.
func (c Coord) Neighbors() [6]Coord {
	var result [6]Coord
	for i, dir := range NeighborDirections {
		result[i] = Coord{Q: c.Q + dir.Q, R: c.R + dir.R}
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b Coord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())

	max := dq
	if dr > max {
		max = dr
	}
	if ds > max {
		max = ds
	}
	return max
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Tile is a single map tile belonging to one game.
type Tile struct {
	ID        int       `json:"id"`
	GameID    int       `json:"game_id"`
	Q         int       `json:"q"`
	R         int       `json:"r"`
	Terrain   string    `json:"terrain"`
	Resource  *string   `json:"resource"`
	CreatedAt time.Time `json:"created_at"`
}

// Coord returns the tile's position.
func (t *Tile) Coord() Coord {
	return Coord{Q: t.Q, R: t.R}
}
