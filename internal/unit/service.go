package unit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"civ-server/internal/city"
	"civ-server/internal/progress"
	"civ-server/internal/shared/database"
	"civ-server/internal/shared/errors"
)

// ProductionStore is the persistence surface the service needs. The concrete
// *Repository satisfies it; tests substitute an in-memory fake.
type ProductionStore interface {
	GetUnitTypes(ctx context.Context, category, era string) ([]UnitType, error)
	GetUnitTypeByID(ctx context.Context, unitTypeID int, tx *database.Tx) (*UnitType, error)
	CreateUnit(ctx context.Context, gameCivID, unitTypeID, q, r, hp, createdTurn int, tx *database.Tx) (*GameUnit, error)
	GetUnitsByCiv(ctx context.Context, gameCivID int, tx *database.Tx) ([]GameUnit, error)
	GetQueue(ctx context.Context, cityID int, tx *database.Tx) ([]QueueEntry, error)
	Enqueue(ctx context.Context, cityID, unitTypeID, turnsLeft, position int, tx *database.Tx) (*QueueEntry, error)
	SetTurnsLeft(ctx context.Context, entryID, turnsLeft int, tx *database.Tx) error
	RemoveQueueEntry(ctx context.Context, cityID, entryID int, tx *database.Tx) error
}

// CityReader supplies the producing city's yield, owner, and coordinates.
type CityReader interface {
	GetCityByID(ctx context.Context, cityID int, tx *database.Tx) (*city.City, error)
}

type Service struct {
	store  ProductionStore
	cities CityReader
	logger *slog.Logger
}

func NewService(store ProductionStore, cities CityReader, logger *slog.Logger) *Service {
	logger.Debug("Initializing unit service")

	return &Service{
		store:  store,
		cities: cities,
		logger: logger,
	}
}

// AdvanceProduction runs one turn of unit production for a city. Production
// uses a remaining-turns countdown, not the points model: each turn the head
// entry loses max(1, production/8) turns, and on reaching zero the unit is
// instantiated at the city's coordinates.
func (s *Service) AdvanceProduction(ctx context.Context, cityID, currentTurn int, tx *database.Tx) error {
	logger := s.logger.With("component", "unit_service", "operation", "advance_production", "city_id", cityID, "turn", currentTurn)

	queue, err := s.store.GetQueue(ctx, cityID, tx)
	if err != nil {
		return fmt.Errorf("failed to get production queue: %w", err)
	}
	if len(queue) == 0 {
		logger.Debug("Production queue empty, nothing to advance")
		return nil
	}

	c, err := s.cities.GetCityByID(ctx, cityID, tx)
	if err != nil {
		return fmt.Errorf("failed to get city: %w", err)
	}
	if c == nil {
		return errors.NotFoundf("city %d not found", cityID)
	}

	head := queue[0]
	countdown := progress.Countdown{TurnsLeft: head.TurnsLeft}
	reduction := progress.ReductionFor(c.Production)

	if !countdown.Reduce(reduction) {
		logger.Debug("Production advanced", "unit_type_id", head.UnitTypeID, "turns_left", countdown.TurnsLeft)
		return s.store.SetTurnsLeft(ctx, head.ID, countdown.TurnsLeft, tx)
	}

	unitType, err := s.store.GetUnitTypeByID(ctx, head.UnitTypeID, tx)
	if err != nil {
		return fmt.Errorf("failed to get unit type: %w", err)
	}
	if unitType == nil {
		return errors.NotFoundf("unit type %d not found", head.UnitTypeID)
	}

	created, err := s.store.CreateUnit(ctx, c.GameCivID, unitType.ID, c.Q, c.R, unitType.BaseHP, currentTurn, tx)
	if err != nil {
		return err
	}
	logger.Info("Unit produced", "unit_id", created.ID, "unit_type_id", unitType.ID)

	return s.store.RemoveQueueEntry(ctx, cityID, head.ID, tx)
}

// QueueProduction appends a unit to the city's production queue with the
// type's full build-turns countdown.
func (s *Service) QueueProduction(ctx context.Context, cityID, unitTypeID int, tx *database.Tx) (*QueueEntry, error) {
	logger := s.logger.With("component", "unit_service", "operation", "queue_production", "city_id", cityID, "unit_type_id", unitTypeID)

	unitType, err := s.store.GetUnitTypeByID(ctx, unitTypeID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get unit type: %w", err)
	}
	if unitType == nil {
		return nil, errors.NotFoundf("unit type %d not found", unitTypeID)
	}

	c, err := s.cities.GetCityByID(ctx, cityID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get city: %w", err)
	}
	if c == nil {
		return nil, errors.NotFoundf("city %d not found", cityID)
	}

	queue, err := s.store.GetQueue(ctx, cityID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get production queue: %w", err)
	}

	entry, err := s.store.Enqueue(ctx, cityID, unitTypeID, unitType.BuildTurns, len(queue)+1, tx)
	if err != nil {
		return nil, err
	}
	entry.UnitName = unitType.Name

	logger.Info("Unit production queued", "turns_left", entry.TurnsLeft)
	return entry, nil
}

func (s *Service) GetQueue(ctx context.Context, cityID int) ([]QueueEntry, error) {
	return s.QueueSnapshot(ctx, cityID, nil)
}

// QueueSnapshot is the tx-aware queue read used inside the turn transaction.
func (s *Service) QueueSnapshot(ctx context.Context, cityID int, tx *database.Tx) ([]QueueEntry, error) {
	queue, err := s.store.GetQueue(ctx, cityID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get production queue: %w", err)
	}
	return queue, nil
}

func (s *Service) RemoveFromQueue(ctx context.Context, cityID, entryID int) error {
	err := s.store.RemoveQueueEntry(ctx, cityID, entryID, nil)
	if err == sql.ErrNoRows {
		return errors.NotFoundf("queue entry %d not found for city %d", entryID, cityID)
	}
	return err
}

func (s *Service) GetUnitTypes(ctx context.Context, category, era string) ([]UnitType, error) {
	return s.store.GetUnitTypes(ctx, category, era)
}

func (s *Service) GetUnitType(ctx context.Context, unitTypeID int) (*UnitType, error) {
	unitType, err := s.store.GetUnitTypeByID(ctx, unitTypeID, nil)
	if err != nil {
		return nil, err
	}
	if unitType == nil {
		return nil, errors.NotFoundf("unit type %d not found", unitTypeID)
	}
	return unitType, nil
}

func (s *Service) GetCivUnits(ctx context.Context, gameCivID int) ([]GameUnit, error) {
	units, err := s.store.GetUnitsByCiv(ctx, gameCivID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get civ units: %w", err)
	}
	return units, nil
}
