package civ

import "time"

// Civilization is a reusable catalog entry: the playable civilization type,
// independent of any particular game.
type Civilization struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Leader      string    `json:"leader"`
	Personality string    `json:"personality"`
	CreatedAt   time.Time `json:"created_at"`
}

// GameCiv is one civilization's participation record within a specific game.
// Exactly one GameCiv per game has IsPlayer = true.
type GameCiv struct {
	ID             int       `json:"id"`
	GameID         int       `json:"game_id"`
	CivilizationID int       `json:"civilization_id"`
	IsPlayer       bool      `json:"is_player"`
	StartQ         int       `json:"start_q"`
	StartR         int       `json:"start_r"`
	Gold           int       `json:"gold"`
	Science        int       `json:"science"`
	Culture        int       `json:"culture"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Denormalized from the civilization catalog on read.
	Name        string `json:"name"`
	Leader      string `json:"leader"`
	Personality string `json:"personality"`
}
