package turn

import (
	"context"
	"encoding/json"
	"testing"

	"civ-server/internal/building"
	"civ-server/internal/city"
	"civ-server/internal/civ"
	"civ-server/internal/game"
	"civ-server/internal/hexmap"
	"civ-server/internal/shared/database"
	"civ-server/internal/shared/errors"
	"civ-server/internal/tech"
	"civ-server/internal/unit"
)

// fakeWorld backs every orchestrator dependency with in-memory state and
// records the calls the pipeline makes.
type fakeWorld struct {
	game   *game.Game
	civs   []civ.GameCiv
	cities map[int][]city.City

	advancedTurn     int
	advancedYear     int
	researchCalls    []int
	constructCalls   []int
	produceCalls     []int
	produceTurns     []int
	engineCalls      []int
	populationWrites map[int]int
	unitWrites       map[int][3]int
	snapshot         *game.TurnSnapshot
}

func (f *fakeWorld) GetGameByID(_ context.Context, gameID int, _ *database.Tx) (*game.Game, error) {
	if f.game == nil || f.game.ID != gameID {
		return nil, nil
	}
	return f.game, nil
}

func (f *fakeWorld) AdvanceTurn(_ context.Context, _, nextTurn, year int, _ *database.Tx) error {
	f.advancedTurn = nextTurn
	f.advancedYear = year
	f.game.CurrentTurn = nextTurn
	f.game.CurrentYear = year
	return nil
}

func (f *fakeWorld) CreateSnapshot(_ context.Context, snapshot *game.TurnSnapshot, _ *database.Tx) (*game.TurnSnapshot, error) {
	if f.snapshot != nil && f.snapshot.TurnNumber == snapshot.TurnNumber {
		return nil, errors.Conflictf("snapshot for turn %d already exists", snapshot.TurnNumber)
	}
	f.snapshot = snapshot
	return snapshot, nil
}

func (f *fakeWorld) GetGameCivsByGame(_ context.Context, _ int, _ *database.Tx) ([]civ.GameCiv, error) {
	return f.civs, nil
}

func (f *fakeWorld) GetCitiesByCiv(_ context.Context, gameCivID int, _ *database.Tx) ([]city.City, error) {
	return f.cities[gameCivID], nil
}

func (f *fakeWorld) GetTilesByGame(_ context.Context, _ int) ([]hexmap.Tile, error) {
	return nil, nil
}

func (f *fakeWorld) GetTilesAtCoords(_ context.Context, _ int, _ []hexmap.Coord, _ *database.Tx) ([]hexmap.Tile, error) {
	return nil, nil
}

func (f *fakeWorld) GetCompletedByCity(_ context.Context, _ int, _ *database.Tx) ([]building.PlayerBuilding, error) {
	return nil, nil
}

func (f *fakeWorld) UpdateYields(_ context.Context, _, _, _ int, _ *database.Tx) error {
	return nil
}

func (f *fakeWorld) IncrementResources(_ context.Context, gameCivID, gold, science, culture int, _ *database.Tx) error {
	for i := range f.civs {
		if f.civs[i].ID == gameCivID {
			f.civs[i].Gold += gold
			f.civs[i].Science += science
			f.civs[i].Culture += culture
		}
	}
	return nil
}

func (f *fakeWorld) GetCitiesByGame(_ context.Context, _ int, _ *database.Tx) ([]city.City, error) {
	var all []city.City
	for _, cs := range f.cities {
		all = append(all, cs...)
	}
	return all, nil
}

func (f *fakeWorld) UpdatePopulation(_ context.Context, cityID, population int, _ *database.Tx) error {
	f.populationWrites[cityID] = population
	return nil
}

func (f *fakeWorld) GetUnitsByCiv(_ context.Context, gameCivID int, _ *database.Tx) ([]unit.GameUnit, error) {
	if gameCivID == 1 {
		return []unit.GameUnit{{ID: 50, GameCivID: 1, BaseHP: 100}}, nil
	}
	return nil, nil
}

func (f *fakeWorld) UpdateUnitState(_ context.Context, unitID, q, r, hp int, _ *database.Tx) error {
	f.unitWrites[unitID] = [3]int{q, r, hp}
	return nil
}

func (f *fakeWorld) AdvanceResearch(_ context.Context, gameCivID int, _ *database.Tx) error {
	f.researchCalls = append(f.researchCalls, gameCivID)
	return nil
}

func (f *fakeWorld) Overview(_ context.Context, _ int, _ *database.Tx) (*tech.ResearchStatus, error) {
	return &tech.ResearchStatus{}, nil
}

func (f *fakeWorld) AdvanceConstruction(_ context.Context, cityID int, _ *database.Tx) error {
	f.constructCalls = append(f.constructCalls, cityID)
	return nil
}

func (f *fakeWorld) ConstructionOverview(_ context.Context, _ int, _ *database.Tx) (*building.PlayerBuilding, []building.PlayerBuilding, []building.QueueEntry, error) {
	return nil, nil, nil, nil
}

func (f *fakeWorld) AdvanceProduction(_ context.Context, cityID, currentTurn int, _ *database.Tx) error {
	f.produceCalls = append(f.produceCalls, cityID)
	f.produceTurns = append(f.produceTurns, currentTurn)
	return nil
}

func (f *fakeWorld) QueueSnapshot(_ context.Context, _ int, _ *database.Tx) ([]unit.QueueEntry, error) {
	return nil, nil
}

func (f *fakeWorld) RunTurn(_ context.Context, gameCivID, _ int, _ *database.Tx) error {
	f.engineCalls = append(f.engineCalls, gameCivID)
	return nil
}

// constructionOverviewAdapter renames the fake's construction overview so
// one fake can satisfy both overview-bearing interfaces.
type constructionOverviewAdapter struct{ *fakeWorld }

func (a constructionOverviewAdapter) Overview(ctx context.Context, cityID int, tx *database.Tx) (*building.PlayerBuilding, []building.PlayerBuilding, []building.QueueEntry, error) {
	return a.ConstructionOverview(ctx, cityID, tx)
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		game: &game.Game{ID: 1, Name: "Test Game", CurrentTurn: 4, TurnLimit: 50},
		civs: []civ.GameCiv{
			{ID: 1, GameID: 1, IsPlayer: true, Name: "Romans", Gold: 100, Science: 50, Culture: 20},
			{ID: 2, GameID: 1, Name: "Egyptians"},
			{ID: 3, GameID: 1, Name: "Mongols"},
		},
		cities: map[int][]city.City{
			1: {{ID: 10, GameCivID: 1, Name: "Roma"}},
			2: {{ID: 20, GameCivID: 2, Name: "Thebes"}},
			3: {{ID: 30, GameCivID: 3, Name: "Karakorum"}},
		},
		populationWrites: make(map[int]int),
		unitWrites:       make(map[int][3]int),
	}
}

func newTestService(world *fakeWorld) *Service {
	logger := testLogger()
	ledger := NewLedger(world, world, world, world, logger)
	reconciler := NewReconciler(world, world, logger)
	return NewService(
		nil, nil, ledger, reconciler,
		world, world, world, world, world,
		world, constructionOverviewAdapter{world}, world, world, nil,
		logger,
	)
}

func TestProcessTurnFullPipeline(t *testing.T) {
	world := newFakeWorld()
	svc := newTestService(world)

	result, err := svc.processTurn(context.Background(), 1, nil, nil)
	if err != nil {
		t.Fatalf("processTurn() error = %v", err)
	}

	if !result.Success || result.NextTurn != 5 {
		t.Errorf("result = %+v, want success with next turn 5", result)
	}
	if result.Year != 1200 || result.Era != EraMedieval {
		t.Errorf("result year/era = %d/%s, want 1200/%s", result.Year, result.Era, EraMedieval)
	}

	if world.advancedTurn != 5 || world.advancedYear != 1200 {
		t.Errorf("game advanced to turn %d year %d, want 5/1200", world.advancedTurn, world.advancedYear)
	}

	// Research runs once per civilization, player first.
	wantResearch := []int{1, 2, 3}
	if len(world.researchCalls) != 3 {
		t.Fatalf("research advanced for %v, want %v", world.researchCalls, wantResearch)
	}
	for i, id := range wantResearch {
		if world.researchCalls[i] != id {
			t.Errorf("research order %v, want %v", world.researchCalls, wantResearch)
			break
		}
	}

	// The decision engine only runs for AI civilizations.
	if len(world.engineCalls) != 2 || world.engineCalls[0] != 2 || world.engineCalls[1] != 3 {
		t.Errorf("engine ran for %v, want [2 3]", world.engineCalls)
	}

	// Every city got a construction and a production pass with the new turn.
	if len(world.constructCalls) != 3 || len(world.produceCalls) != 3 {
		t.Errorf("trackers ran construct=%v produce=%v, want 3 cities each", world.constructCalls, world.produceCalls)
	}
	for _, turn := range world.produceTurns {
		if turn != 5 {
			t.Errorf("production advanced with turn %d, want 5", turn)
		}
	}

	if world.snapshot == nil {
		t.Fatal("no snapshot recorded")
	}
	if world.snapshot.TurnNumber != 5 || world.snapshot.Year != 1200 || world.snapshot.Era != EraMedieval {
		t.Errorf("snapshot = turn %d year %d era %s, want 5/1200/%s",
			world.snapshot.TurnNumber, world.snapshot.Year, world.snapshot.Era, EraMedieval)
	}

	// Player resources are captured after the ledger ran.
	var res playerResources
	if err := json.Unmarshal(world.snapshot.PlayerResources, &res); err != nil {
		t.Fatalf("unmarshal player resources: %v", err)
	}
	if res.Gold != 120 || res.Science != 56 || res.Culture != 24 {
		t.Errorf("player resources = %+v, want gold 120 science 56 culture 24", res)
	}
}

func TestProcessTurnGameNotFound(t *testing.T) {
	world := newFakeWorld()
	svc := newTestService(world)

	_, err := svc.processTurn(context.Background(), 99, nil, nil)
	if errors.GetType(err) != errors.ErrorTypeNotFound {
		t.Errorf("processTurn(unknown game) error = %v, want not found", err)
	}
}

func TestProcessTurnAtTurnLimit(t *testing.T) {
	world := newFakeWorld()
	world.game.CurrentTurn = 50
	svc := newTestService(world)

	_, err := svc.processTurn(context.Background(), 1, nil, nil)
	if errors.GetType(err) != errors.ErrorTypeConflict {
		t.Errorf("processTurn(at limit) error = %v, want conflict", err)
	}
}

func TestProcessTurnReconcilesClientState(t *testing.T) {
	world := newFakeWorld()
	svc := newTestService(world)

	state := &ClientState{
		Cities: []CityState{
			{ID: 10, Population: 4},
			{ID: 999, Population: 9}, // unknown, skipped
		},
		Units: []UnitState{
			{ID: 50, Q: 2, R: -1, HP: 250}, // clamped to base HP
			{ID: 777, Q: 0, R: 0, HP: 10},  // unknown, skipped
		},
	}

	if _, err := svc.processTurn(context.Background(), 1, state, nil); err != nil {
		t.Fatalf("processTurn() error = %v", err)
	}

	if got := world.populationWrites[10]; got != 4 {
		t.Errorf("city 10 population = %d, want 4", got)
	}
	if _, ok := world.populationWrites[999]; ok {
		t.Error("unknown city 999 was written")
	}

	if got := world.unitWrites[50]; got != [3]int{2, -1, 100} {
		t.Errorf("unit 50 state = %v, want [2 -1 100] with HP clamped", got)
	}
	if _, ok := world.unitWrites[777]; ok {
		t.Error("unknown unit 777 was written")
	}
}

func TestProcessTurnNoAIDecisionEngine(t *testing.T) {
	world := newFakeWorld()
	logger := testLogger()
	ledger := NewLedger(world, world, world, world, logger)
	reconciler := NewReconciler(world, world, logger)
	svc := NewService(
		nil, nil, ledger, reconciler,
		world, world, world, world, world,
		world, constructionOverviewAdapter{world}, world, nil, nil,
		logger,
	)

	result, err := svc.processTurn(context.Background(), 1, nil, nil)
	if err != nil {
		t.Fatalf("processTurn() without engine error = %v", err)
	}
	if result.NextTurn != 5 {
		t.Errorf("next turn = %d, want 5", result.NextTurn)
	}
}
