package turn

import (
	"context"
	"log/slog"

	"civ-server/internal/building"
	"civ-server/internal/city"
	"civ-server/internal/hexmap"
	"civ-server/internal/shared/database"
)

// Yields is one city's per-turn output across all five resources.
type Yields struct {
	Food       int `json:"food"`
	Production int `json:"production"`
	Gold       int `json:"gold"`
	Science    int `json:"science"`
	Culture    int `json:"culture"`
}

// Every city produces these before buildings and tiles are counted.
var baseYields = Yields{
	Food:       15,
	Production: 8,
	Gold:       20,
	Science:    6,
	Culture:    4,
}

// buildingBonuses maps a completed building's name to its yield contribution.
var buildingBonuses = map[string]Yields{
	"Library":  {Science: 7},
	"Workshop": {Production: 3},
	"Market":   {Gold: 8},
	"Theatre":  {Culture: 5},
	"Museum":   {Culture: 5},
}

// resourceBonuses maps a tile's special resource to its yield contribution.
// Only the city's own tile and its six neighbors count.
var resourceBonuses = map[string]Yields{
	"Food":       {Food: 4},
	"Production": {Production: 5},
	"Gold":       {Gold: 5},
	"Science":    {Science: 3},
}

func (y Yields) add(other Yields) Yields {
	y.Food += other.Food
	y.Production += other.Production
	y.Gold += other.Gold
	y.Science += other.Science
	y.Culture += other.Culture
	return y
}

// ComputeYields totals a city's per-turn output from its base yields, its
// completed buildings, and the special resources on its surrounding tiles.
func ComputeYields(buildings []building.PlayerBuilding, tiles []hexmap.Tile) Yields {
	total := baseYields

	for _, b := range buildings {
		if bonus, ok := buildingBonuses[b.BuildingName]; ok {
			total = total.add(bonus)
		}
	}

	for _, t := range tiles {
		if t.Resource == nil {
			continue
		}
		if bonus, ok := resourceBonuses[*t.Resource]; ok {
			total = total.add(bonus)
		}
	}

	return total
}

// LedgerTileStore and LedgerBuildingStore are the read surfaces the ledger
// collects yield inputs from.
type LedgerTileStore interface {
	GetTilesAtCoords(ctx context.Context, gameID int, coords []hexmap.Coord, tx *database.Tx) ([]hexmap.Tile, error)
}

type LedgerBuildingStore interface {
	GetCompletedByCity(ctx context.Context, cityID int, tx *database.Tx) ([]building.PlayerBuilding, error)
}

type LedgerCityWriter interface {
	UpdateYields(ctx context.Context, cityID, food, production int, tx *database.Tx) error
}

type LedgerCivWriter interface {
	IncrementResources(ctx context.Context, gameCivID, gold, science, culture int, tx *database.Tx) error
}

// Ledger applies each city's per-turn yields: food and production are stored
// on the city, gold, science, and culture accumulate on the owning
// civilization.
type Ledger struct {
	tiles     LedgerTileStore
	buildings LedgerBuildingStore
	cities    LedgerCityWriter
	civs      LedgerCivWriter
	logger    *slog.Logger
}

func NewLedger(tiles LedgerTileStore, buildings LedgerBuildingStore, cities LedgerCityWriter, civs LedgerCivWriter, logger *slog.Logger) *Ledger {
	return &Ledger{
		tiles:     tiles,
		buildings: buildings,
		cities:    cities,
		civs:      civs,
		logger:    logger,
	}
}

// ProcessCity computes and applies one city's yields for the turn being
// resolved.
func (l *Ledger) ProcessCity(ctx context.Context, gameID int, c *city.City, tx *database.Tx) (Yields, error) {
	logger := l.logger.With("component", "resource_ledger", "operation", "process_city", "city_id", c.ID)

	completed, err := l.buildings.GetCompletedByCity(ctx, c.ID, tx)
	if err != nil {
		return Yields{}, err
	}

	center := c.Coord()
	neighbors := center.Neighbors()
	coords := append([]hexmap.Coord{center}, neighbors[:]...)
	tiles, err := l.tiles.GetTilesAtCoords(ctx, gameID, coords, tx)
	if err != nil {
		return Yields{}, err
	}

	yields := ComputeYields(completed, tiles)

	if err := l.cities.UpdateYields(ctx, c.ID, yields.Food, yields.Production, tx); err != nil {
		return Yields{}, err
	}
	if err := l.civs.IncrementResources(ctx, c.GameCivID, yields.Gold, yields.Science, yields.Culture, tx); err != nil {
		return Yields{}, err
	}

	logger.Debug("City yields applied",
		"food", yields.Food,
		"production", yields.Production,
		"gold", yields.Gold,
		"science", yields.Science,
		"culture", yields.Culture,
	)

	return yields, nil
}
