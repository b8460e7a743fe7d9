package turn

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"civ-server/internal/building"
	"civ-server/internal/city"
	"civ-server/internal/hexmap"
	"civ-server/internal/shared/database"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func TestComputeYieldsBaseOnly(t *testing.T) {
	got := ComputeYields(nil, nil)

	want := Yields{Food: 15, Production: 8, Gold: 20, Science: 6, Culture: 4}
	if got != want {
		t.Errorf("ComputeYields(nil, nil) = %+v, want %+v", got, want)
	}
}

func TestComputeYieldsBuildings(t *testing.T) {
	buildings := []building.PlayerBuilding{
		{BuildingName: "Library"},
		{BuildingName: "Workshop"},
		{BuildingName: "Market"},
		{BuildingName: "Theatre"},
		{BuildingName: "Granary"}, // no yield bonus
	}

	got := ComputeYields(buildings, nil)

	want := Yields{Food: 15, Production: 11, Gold: 28, Science: 13, Culture: 9}
	if got != want {
		t.Errorf("ComputeYields() = %+v, want %+v", got, want)
	}
}

func TestComputeYieldsTileResources(t *testing.T) {
	tiles := []hexmap.Tile{
		{Q: 0, R: 0, Terrain: "plains"},
		{Q: 1, R: 0, Terrain: "plains", Resource: strPtr("Food")},
		{Q: 0, R: 1, Terrain: "hills", Resource: strPtr("Production")},
		{Q: -1, R: 0, Terrain: "plains", Resource: strPtr("Gold")},
		{Q: 0, R: -1, Terrain: "mountain", Resource: strPtr("Science")},
		{Q: 1, R: -1, Terrain: "plains", Resource: strPtr("Obsidian")}, // unknown resource
	}

	got := ComputeYields(nil, tiles)

	want := Yields{Food: 19, Production: 13, Gold: 25, Science: 9, Culture: 4}
	if got != want {
		t.Errorf("ComputeYields() = %+v, want %+v", got, want)
	}
}

type fakeLedgerStores struct {
	buildings []building.PlayerBuilding
	tiles     []hexmap.Tile

	wantCoords    int
	cityYields    map[int][2]int
	civIncrements map[int]Yields
}

func (f *fakeLedgerStores) GetTilesAtCoords(_ context.Context, _ int, coords []hexmap.Coord, _ *database.Tx) ([]hexmap.Tile, error) {
	f.wantCoords = len(coords)
	return f.tiles, nil
}

func (f *fakeLedgerStores) GetCompletedByCity(_ context.Context, _ int, _ *database.Tx) ([]building.PlayerBuilding, error) {
	return f.buildings, nil
}

func (f *fakeLedgerStores) UpdateYields(_ context.Context, cityID, food, production int, _ *database.Tx) error {
	f.cityYields[cityID] = [2]int{food, production}
	return nil
}

func (f *fakeLedgerStores) IncrementResources(_ context.Context, gameCivID, gold, science, culture int, _ *database.Tx) error {
	current := f.civIncrements[gameCivID]
	current.Gold += gold
	current.Science += science
	current.Culture += culture
	f.civIncrements[gameCivID] = current
	return nil
}

func TestLedgerProcessCity(t *testing.T) {
	stores := &fakeLedgerStores{
		buildings: []building.PlayerBuilding{{BuildingName: "Library"}},
		tiles: []hexmap.Tile{
			{Q: 3, R: -1, Terrain: "plains", Resource: strPtr("Gold")},
		},
		cityYields:    make(map[int][2]int),
		civIncrements: make(map[int]Yields),
	}
	ledger := NewLedger(stores, stores, stores, stores, testLogger())

	c := &city.City{ID: 4, GameCivID: 2, Q: 3, R: -1}
	yields, err := ledger.ProcessCity(context.Background(), 1, c, nil)
	if err != nil {
		t.Fatalf("ProcessCity() error = %v", err)
	}

	want := Yields{Food: 15, Production: 8, Gold: 25, Science: 13, Culture: 4}
	if yields != want {
		t.Errorf("ProcessCity() yields = %+v, want %+v", yields, want)
	}

	// The tile query covers the city tile plus its six neighbors.
	if stores.wantCoords != 7 {
		t.Errorf("tile lookup covered %d coords, want 7", stores.wantCoords)
	}

	if got := stores.cityYields[4]; got != [2]int{15, 8} {
		t.Errorf("city yields stored as %v, want [15 8]", got)
	}

	inc := stores.civIncrements[2]
	if inc.Gold != 25 || inc.Science != 13 || inc.Culture != 4 {
		t.Errorf("civ increments = %+v, want gold 25 science 13 culture 4", inc)
	}
}

func TestLedgerAccumulatesAcrossCities(t *testing.T) {
	stores := &fakeLedgerStores{
		cityYields:    make(map[int][2]int),
		civIncrements: make(map[int]Yields),
	}
	ledger := NewLedger(stores, stores, stores, stores, testLogger())

	for _, id := range []int{1, 2} {
		c := &city.City{ID: id, GameCivID: 9}
		if _, err := ledger.ProcessCity(context.Background(), 1, c, nil); err != nil {
			t.Fatalf("ProcessCity() error = %v", err)
		}
	}

	inc := stores.civIncrements[9]
	if inc.Gold != 40 || inc.Science != 12 || inc.Culture != 8 {
		t.Errorf("two base cities accumulated %+v, want gold 40 science 12 culture 8", inc)
	}
}
