package turn

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

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

type GameStore interface {
	GetGameByID(ctx context.Context, gameID int, tx *database.Tx) (*game.Game, error)
	AdvanceTurn(ctx context.Context, gameID, nextTurn, year int, tx *database.Tx) error
}

type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snapshot *game.TurnSnapshot, tx *database.Tx) (*game.TurnSnapshot, error)
}

type CivStore interface {
	GetGameCivsByGame(ctx context.Context, gameID int, tx *database.Tx) ([]civ.GameCiv, error)
}

type CityLister interface {
	GetCitiesByCiv(ctx context.Context, gameCivID int, tx *database.Tx) ([]city.City, error)
}

type MapReader interface {
	GetTilesByGame(ctx context.Context, gameID int) ([]hexmap.Tile, error)
}

// The three per-turn trackers, in the order the orchestrator runs them.
type ResearchTracker interface {
	AdvanceResearch(ctx context.Context, gameCivID int, tx *database.Tx) error
	Overview(ctx context.Context, gameCivID int, tx *database.Tx) (*tech.ResearchStatus, error)
}

type ConstructionTracker interface {
	AdvanceConstruction(ctx context.Context, cityID int, tx *database.Tx) error
	Overview(ctx context.Context, cityID int, tx *database.Tx) (*building.PlayerBuilding, []building.PlayerBuilding, []building.QueueEntry, error)
}

type ProductionTracker interface {
	AdvanceProduction(ctx context.Context, cityID, currentTurn int, tx *database.Tx) error
	QueueSnapshot(ctx context.Context, cityID int, tx *database.Tx) ([]unit.QueueEntry, error)
}

type DecisionEngine interface {
	RunTurn(ctx context.Context, gameCivID, turn int, tx *database.Tx) error
}

// DiplomacyStateReader supplies the diplomacy portion of the turn snapshot.
// Optional: with no reader wired the snapshot records an empty object.
type DiplomacyStateReader interface {
	StateJSON(ctx context.Context, gameID int) (json.RawMessage, error)
}

// TurnResult is the end-turn response body.
type TurnResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	NextTurn int    `json:"nextTurn"`
	Year     int    `json:"year"`
	Era      string `json:"era"`
}

// Service is the turn orchestrator. EndTurn runs the whole turn pipeline in
// one transaction: reconcile, yields, trackers, AI, advance, snapshot.
type Service struct {
	db         *database.DB
	locker     *Locker
	ledger     *Ledger
	reconciler *Reconciler
	games      GameStore
	snapshots  SnapshotStore
	civs       CivStore
	cities     CityLister
	tiles      MapReader
	research   ResearchTracker
	construct  ConstructionTracker
	produce    ProductionTracker
	engine     DecisionEngine
	diplomacy  DiplomacyStateReader
	logger     *slog.Logger
}

func NewService(
	db *database.DB,
	locker *Locker,
	ledger *Ledger,
	reconciler *Reconciler,
	games GameStore,
	snapshots SnapshotStore,
	civs CivStore,
	cities CityLister,
	tiles MapReader,
	research ResearchTracker,
	construct ConstructionTracker,
	produce ProductionTracker,
	engine DecisionEngine,
	diplomacy DiplomacyStateReader,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:         db,
		locker:     locker,
		ledger:     ledger,
		reconciler: reconciler,
		games:      games,
		snapshots:  snapshots,
		civs:       civs,
		cities:     cities,
		tiles:      tiles,
		research:   research,
		construct:  construct,
		produce:    produce,
		engine:     engine,
		diplomacy:  diplomacy,
		logger:     logger,
	}
}

// EndTurn advances a game by exactly one turn. Processing order within the
// transaction: client reconcile, then the player civilization (yields,
// research, construction, production per city), then each AI civilization in
// ascending id order (yields, decisions, construction, production), then the
// game row and the turn snapshot. Any failure rolls the whole turn back.
func (s *Service) EndTurn(ctx context.Context, gameID int, state *ClientState) (*TurnResult, error) {
	logger := s.logger.With("component", "turn_service", "operation", "end_turn", "game_id", gameID)

	token, err := s.locker.Acquire(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer s.locker.Release(ctx, gameID, token)

	tx, err := s.db.BeginTxContext(ctx)
	if err != nil {
		return nil, errors.WrapInternal("failed to begin turn transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				logger.Error("Failed to roll back turn transaction", "error", rbErr)
			}
		}
	}()

	result, err := s.processTurn(ctx, gameID, state, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.WrapInternal("failed to commit turn transaction", err)
	}
	committed = true

	logger.Info("Turn processed", "turn", result.NextTurn, "year", result.Year, "era", result.Era)
	return result, nil
}

// processTurn runs the whole pipeline inside the caller's transaction.
func (s *Service) processTurn(ctx context.Context, gameID int, state *ClientState, tx *database.Tx) (*TurnResult, error) {
	logger := s.logger.With("component", "turn_service", "operation", "process_turn", "game_id", gameID)

	g, err := s.games.GetGameByID(ctx, gameID, tx)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errors.NotFoundf("game %d not found", gameID)
	}
	if g.TurnLimit > 0 && g.CurrentTurn >= g.TurnLimit {
		return nil, errors.Conflictf("game %d has reached its turn limit of %d", gameID, g.TurnLimit)
	}

	nextTurn := g.CurrentTurn + 1
	logger = logger.With("turn", nextTurn)
	logger.Info("Processing turn")

	gameCivs, err := s.civs.GetGameCivsByGame(ctx, gameID, tx)
	if err != nil {
		return nil, err
	}

	if err := s.reconciler.Apply(ctx, gameID, gameCivs, state, tx); err != nil {
		return nil, err
	}

	var player *civ.GameCiv
	for i := range gameCivs {
		if gameCivs[i].IsPlayer {
			player = &gameCivs[i]
			break
		}
	}
	if player == nil {
		return nil, errors.WrapInternal("invalid game state", fmt.Errorf("game %d has no player civilization", gameID))
	}

	if err := s.processCiv(ctx, g, player, nextTurn, tx); err != nil {
		return nil, err
	}

	for i := range gameCivs {
		if gameCivs[i].IsPlayer {
			continue
		}
		if err := s.processCiv(ctx, g, &gameCivs[i], nextTurn, tx); err != nil {
			return nil, err
		}
	}

	year := YearFor(nextTurn)
	era := EraFor(nextTurn)

	if err := s.games.AdvanceTurn(ctx, gameID, nextTurn, year, tx); err != nil {
		return nil, err
	}

	if err := s.recordSnapshot(ctx, gameID, player.ID, nextTurn, year, era, tx); err != nil {
		return nil, err
	}

	return &TurnResult{
		Success:  true,
		Message:  fmt.Sprintf("Turn %d processed", nextTurn),
		NextTurn: nextTurn,
		Year:     year,
		Era:      era,
	}, nil
}

// processCiv runs one civilization's slice of the turn. AI civilizations get
// a decision pass between yields and the progress trackers, so a decision
// made this turn starts progressing this turn.
func (s *Service) processCiv(ctx context.Context, g *game.Game, gc *civ.GameCiv, nextTurn int, tx *database.Tx) error {
	cities, err := s.cities.GetCitiesByCiv(ctx, gc.ID, tx)
	if err != nil {
		return err
	}

	for i := range cities {
		if _, err := s.ledger.ProcessCity(ctx, g.ID, &cities[i], tx); err != nil {
			return err
		}
	}

	if !gc.IsPlayer && s.engine != nil {
		if err := s.engine.RunTurn(ctx, gc.ID, nextTurn, tx); err != nil {
			return err
		}
	}

	if err := s.research.AdvanceResearch(ctx, gc.ID, tx); err != nil {
		return err
	}

	for i := range cities {
		if err := s.construct.AdvanceConstruction(ctx, cities[i].ID, tx); err != nil {
			return err
		}
		if err := s.produce.AdvanceProduction(ctx, cities[i].ID, nextTurn, tx); err != nil {
			return err
		}
	}

	return nil
}

// snapshot payload shapes; persisted as JSON columns on turn_snapshots.
type cityProductionState struct {
	CityID       int                      `json:"city_id"`
	Name         string                   `json:"name"`
	Construction *building.PlayerBuilding `json:"construction"`
	BuildQueue   []building.QueueEntry    `json:"build_queue"`
	UnitQueue    []unit.QueueEntry        `json:"unit_queue"`
}

type civResourceState struct {
	GameCivID int    `json:"game_civ_id"`
	Name      string `json:"name"`
	IsPlayer  bool   `json:"is_player"`
	Gold      int    `json:"gold"`
	Science   int    `json:"science"`
	Culture   int    `json:"culture"`
}

type playerResources struct {
	Gold    int `json:"gold"`
	Science int `json:"science"`
	Culture int `json:"culture"`
}

// recordSnapshot captures the post-processing state of the turn. Civilization
// rows are re-read inside the transaction so the recorded resources include
// this turn's yields.
func (s *Service) recordSnapshot(ctx context.Context, gameID, playerCivID, turnNumber, year int, era string, tx *database.Tx) error {
	tiles, err := s.tiles.GetTilesByGame(ctx, gameID)
	if err != nil {
		return err
	}
	observedMap, err := json.Marshal(tiles)
	if err != nil {
		return errors.WrapInternal("failed to encode map state", err)
	}

	overview, err := s.research.Overview(ctx, playerCivID, tx)
	if err != nil {
		return err
	}
	researchState, err := json.Marshal(overview)
	if err != nil {
		return errors.WrapInternal("failed to encode research state", err)
	}

	gameCivs, err := s.civs.GetGameCivsByGame(ctx, gameID, tx)
	if err != nil {
		return err
	}

	resources := make([]civResourceState, 0, len(gameCivs))
	playerRes := playerResources{}
	for _, gc := range gameCivs {
		resources = append(resources, civResourceState{
			GameCivID: gc.ID,
			Name:      gc.Name,
			IsPlayer:  gc.IsPlayer,
			Gold:      gc.Gold,
			Science:   gc.Science,
			Culture:   gc.Culture,
		})
		if gc.IsPlayer {
			playerRes = playerResources{Gold: gc.Gold, Science: gc.Science, Culture: gc.Culture}
		}
	}
	resourceState, err := json.Marshal(resources)
	if err != nil {
		return errors.WrapInternal("failed to encode resource state", err)
	}
	playerResourcesJSON, err := json.Marshal(playerRes)
	if err != nil {
		return errors.WrapInternal("failed to encode player resources", err)
	}

	playerCities, err := s.cities.GetCitiesByCiv(ctx, playerCivID, tx)
	if err != nil {
		return err
	}
	production := make([]cityProductionState, 0, len(playerCities))
	for _, c := range playerCities {
		current, _, buildQueue, err := s.construct.Overview(ctx, c.ID, tx)
		if err != nil {
			return err
		}
		unitQueue, err := s.produce.QueueSnapshot(ctx, c.ID, tx)
		if err != nil {
			return err
		}
		production = append(production, cityProductionState{
			CityID:       c.ID,
			Name:         c.Name,
			Construction: current,
			BuildQueue:   buildQueue,
			UnitQueue:    unitQueue,
		})
	}
	productionState, err := json.Marshal(production)
	if err != nil {
		return errors.WrapInternal("failed to encode production state", err)
	}

	diplomacyState := json.RawMessage(`{}`)
	if s.diplomacy != nil {
		diplomacyState, err = s.diplomacy.StateJSON(ctx, gameID)
		if err != nil {
			return err
		}
	}

	stateData, err := json.Marshal(map[string]interface{}{
		"turn": turnNumber,
		"year": year,
		"era":  era,
	})
	if err != nil {
		return errors.WrapInternal("failed to encode state data", err)
	}

	_, err = s.snapshots.CreateSnapshot(ctx, &game.TurnSnapshot{
		GameID:          gameID,
		TurnNumber:      turnNumber,
		Year:            year,
		Era:             era,
		ObservedMap:     observedMap,
		ResearchState:   researchState,
		ProductionState: productionState,
		DiplomacyState:  diplomacyState,
		ResourceState:   resourceState,
		StateData:       stateData,
		PlayerResources: playerResourcesJSON,
	}, tx)
	return err
}

// PlayerResources returns the player civilization's current stockpiles as
// JSON. It backs the state endpoint's fallback for snapshots written before
// the player_resources column existed.
func (s *Service) PlayerResources(ctx context.Context, gameID int) (json.RawMessage, error) {
	gameCivs, err := s.civs.GetGameCivsByGame(ctx, gameID, nil)
	if err != nil {
		return nil, err
	}

	for _, gc := range gameCivs {
		if gc.IsPlayer {
			return json.Marshal(playerResources{Gold: gc.Gold, Science: gc.Science, Culture: gc.Culture})
		}
	}

	return nil, errors.NotFoundf("game %d has no player civilization", gameID)
}
