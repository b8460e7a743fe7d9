package ai

import (
	"context"
	"fmt"
	"log/slog"

	"civ-server/internal/building"
	"civ-server/internal/city"
	"civ-server/internal/civ"
	"civ-server/internal/shared/database"
	"civ-server/internal/shared/errors"
	"civ-server/internal/tech"
	"civ-server/internal/unit"
)

// CivReader and CityLister are the read surfaces the engine snapshots from.
type CivReader interface {
	GetGameCivByID(ctx context.Context, gameCivID int, tx *database.Tx) (*civ.GameCiv, error)
}

type CityLister interface {
	GetCitiesByCiv(ctx context.Context, gameCivID int, tx *database.Tx) ([]city.City, error)
}

// ResearchService, ConstructionService, and ProductionService are the player
// primitives the engine applies decisions through. AI and player share the
// exact same state-machine rules; only the source of the decision differs.
type ResearchService interface {
	Overview(ctx context.Context, gameCivID int, tx *database.Tx) (*tech.ResearchStatus, error)
	StartResearch(ctx context.Context, gameCivID, techID int, tx *database.Tx) (bool, error)
}

type ConstructionService interface {
	Overview(ctx context.Context, cityID int, tx *database.Tx) (*building.PlayerBuilding, []building.PlayerBuilding, []building.QueueEntry, error)
	StartConstruction(ctx context.Context, cityID, buildingID int, tx *database.Tx) (bool, error)
	GetBuildings(ctx context.Context, category string) ([]building.Building, error)
}

type ProductionService interface {
	QueueSnapshot(ctx context.Context, cityID int, tx *database.Tx) ([]unit.QueueEntry, error)
	QueueProduction(ctx context.Context, cityID, unitTypeID int, tx *database.Tx) (*unit.QueueEntry, error)
	GetUnitTypes(ctx context.Context, category, era string) ([]unit.UnitType, error)
}

type Engine struct {
	provider  Provider
	fallback  Provider
	civs      CivReader
	cities    CityLister
	research  ResearchService
	construct ConstructionService
	produce   ProductionService
	logger    *slog.Logger
}

// NewEngine wires a decision engine. provider may be nil, in which case the
// fallback decides every turn.
func NewEngine(provider, fallback Provider, civs CivReader, cities CityLister, research ResearchService, construct ConstructionService, produce ProductionService, logger *slog.Logger) *Engine {
	logger.Debug("Initializing AI decision engine", "llm_provider", provider != nil)

	return &Engine{
		provider:  provider,
		fallback:  fallback,
		civs:      civs,
		cities:    cities,
		research:  research,
		construct: construct,
		produce:   produce,
		logger:    logger,
	}
}

// RunTurn processes one AI civilization for one turn: snapshot, decide,
// apply. Provider failures are absorbed by the fallback; only persistence
// errors propagate.
func (e *Engine) RunTurn(ctx context.Context, gameCivID, turn int, tx *database.Tx) error {
	snap, err := e.Snapshot(ctx, gameCivID, tx)
	if err != nil {
		return err
	}

	decisions := e.Decide(ctx, snap, turn)

	return e.Apply(ctx, gameCivID, decisions, tx)
}

// Snapshot gathers a civilization's decision-relevant state and pre-computes
// the eligible lists so providers only pick from valid options.
func (e *Engine) Snapshot(ctx context.Context, gameCivID int, tx *database.Tx) (*Snapshot, error) {
	logger := e.logger.With("component", "ai_engine", "operation", "snapshot", "game_civ_id", gameCivID)

	gameCiv, err := e.civs.GetGameCivByID(ctx, gameCivID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get game civ: %w", err)
	}
	if gameCiv == nil {
		return nil, errors.NotFoundf("game civ %d not found", gameCivID)
	}

	overview, err := e.research.Overview(ctx, gameCivID, tx)
	if err != nil {
		return nil, err
	}

	completedTechs := make(map[int]bool, len(overview.Completed))
	for _, record := range overview.Completed {
		completedTechs[record.TechnologyID] = true
	}

	eligibleTechs := make([]int, 0, len(overview.Available))
	for _, t := range overview.Available {
		eligibleTechs = append(eligibleTechs, t.ID)
	}

	buildings, err := e.construct.GetBuildings(ctx, "")
	if err != nil {
		return nil, err
	}
	unitTypes, err := e.produce.GetUnitTypes(ctx, "", "")
	if err != nil {
		return nil, err
	}

	eligibleUnits := make([]int, 0, len(unitTypes))
	for _, ut := range unitTypes {
		if ut.PrerequisiteTechID == nil || completedTechs[*ut.PrerequisiteTechID] {
			eligibleUnits = append(eligibleUnits, ut.ID)
		}
	}

	cities, err := e.cities.GetCitiesByCiv(ctx, gameCivID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get civ cities: %w", err)
	}

	snap := &Snapshot{
		GameCivID:      gameCivID,
		Name:           gameCiv.Name,
		Personality:    gameCiv.Personality,
		Gold:           gameCiv.Gold,
		Science:        gameCiv.Science,
		Culture:        gameCiv.Culture,
		ResearchActive: overview.InProgress != nil,
		EligibleTechs:  eligibleTechs,
	}

	for _, c := range cities {
		current, records, buildQueue, err := e.construct.Overview(ctx, c.ID, tx)
		if err != nil {
			return nil, err
		}
		prodQueue, err := e.produce.QueueSnapshot(ctx, c.ID, tx)
		if err != nil {
			return nil, err
		}

		taken := make(map[int]bool)
		for _, record := range records {
			taken[record.BuildingID] = true
		}
		for _, entry := range buildQueue {
			taken[entry.BuildingID] = true
		}

		eligibleBuildings := make([]int, 0, len(buildings))
		for _, b := range buildings {
			if taken[b.ID] {
				continue
			}
			if b.PrerequisiteTechID != nil && !completedTechs[*b.PrerequisiteTechID] {
				continue
			}
			eligibleBuildings = append(eligibleBuildings, b.ID)
		}

		snap.Cities = append(snap.Cities, CitySnapshot{
			CityID:            c.ID,
			Name:              c.Name,
			Production:        c.Production,
			Busy:              current != nil || len(prodQueue) > 0,
			EligibleBuildings: eligibleBuildings,
			EligibleUnits:     eligibleUnits,
		})
	}

	logger.Debug("Snapshot gathered", "cities", len(snap.Cities), "eligible_techs", len(eligibleTechs))
	return snap, nil
}

// Decide asks the configured provider and falls back to the deterministic
// one on any failure. A slow or broken LLM never blocks turn advancement.
func (e *Engine) Decide(ctx context.Context, snap *Snapshot, turn int) *DecisionSet {
	logger := e.logger.With("component", "ai_engine", "operation", "decide", "game_civ_id", snap.GameCivID, "turn", turn)

	if e.provider != nil {
		decisions, err := e.provider.Decisions(ctx, snap, turn)
		if err == nil {
			logger.Debug("Provider decisions accepted", "city_decisions", len(decisions.Cities))
			return decisions
		}
		logger.Warn("Decision provider failed, using fallback", "error", err)
	}

	decisions, err := e.fallback.Decisions(ctx, snap, turn)
	if err != nil {
		// The fallback never errors today; an empty set keeps the turn moving.
		logger.Error("Fallback provider failed", "error", err)
		return &DecisionSet{}
	}
	return decisions
}

// Apply routes the decision set through the player primitives. Conflicts are
// logged and skipped: a stale decision must not abort the turn.
func (e *Engine) Apply(ctx context.Context, gameCivID int, decisions *DecisionSet, tx *database.Tx) error {
	logger := e.logger.With("component", "ai_engine", "operation", "apply")

	for _, d := range decisions.Cities {
		if d.Build == nil {
			continue
		}

		var err error
		switch d.Build.Kind {
		case BuildKindBuilding:
			_, err = e.construct.StartConstruction(ctx, d.CityID, d.Build.ID, tx)
		case BuildKindUnit:
			_, err = e.produce.QueueProduction(ctx, d.CityID, d.Build.ID, tx)
		default:
			logger.Warn("Skipping decision with unknown build kind", "kind", d.Build.Kind, "city_id", d.CityID)
			continue
		}

		if err != nil {
			if errors.GetType(err) == errors.ErrorTypeConflict {
				logger.Debug("Skipping conflicting decision", "city_id", d.CityID, "error", err)
				continue
			}
			return err
		}
	}

	if decisions.ResearchTechID != nil {
		_, err := e.research.StartResearch(ctx, gameCivID, *decisions.ResearchTechID, tx)
		if err != nil {
			if errors.GetType(err) == errors.ErrorTypeConflict {
				logger.Debug("Skipping conflicting research decision", "technology_id", *decisions.ResearchTechID, "error", err)
				return nil
			}
			return err
		}
	}

	return nil
}
