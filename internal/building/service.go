package building

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

// ConstructionStore is the persistence surface the service needs. The
// concrete *Repository satisfies it; tests substitute an in-memory fake.
type ConstructionStore interface {
	GetBuildings(ctx context.Context, category string) ([]Building, error)
	GetBuildingByID(ctx context.Context, buildingID int, tx *database.Tx) (*Building, error)
	GetInProgress(ctx context.Context, cityID int, tx *database.Tx) (*PlayerBuilding, error)
	GetByCity(ctx context.Context, cityID int, tx *database.Tx) ([]PlayerBuilding, error)
	GetRecord(ctx context.Context, cityID, buildingID int, tx *database.Tx) (*PlayerBuilding, error)
	StartConstruction(ctx context.Context, cityID, buildingID int, resetProgress bool, tx *database.Tx) error
	SetProgress(ctx context.Context, recordID, points int, tx *database.Tx) error
	CompleteRecord(ctx context.Context, recordID, points int, tx *database.Tx) error
	CancelConstruction(ctx context.Context, recordID int, tx *database.Tx) error
	GetQueue(ctx context.Context, cityID int, tx *database.Tx) ([]QueueEntry, error)
	Enqueue(ctx context.Context, cityID, buildingID, position int, tx *database.Tx) (*QueueEntry, error)
	RemoveQueueEntry(ctx context.Context, cityID, entryID int, tx *database.Tx) error
}

// CityReader supplies the production yield consumed each turn.
type CityReader interface {
	GetCityByID(ctx context.Context, cityID int, tx *database.Tx) (*city.City, error)
}

type Service struct {
	store  ConstructionStore
	cities CityReader
	logger *slog.Logger
}

func NewService(store ConstructionStore, cities CityReader, logger *slog.Logger) *Service {
	logger.Debug("Initializing building service")

	return &Service{
		store:  store,
		cities: cities,
		logger: logger,
	}
}

// AdvanceConstruction runs one turn of construction for a city: same shape as
// research, consuming the city's production against the building's build
// time. With nothing in progress the queue head is pulled first and
// accumulates this turn's production.
func (s *Service) AdvanceConstruction(ctx context.Context, cityID int, tx *database.Tx) error {
	logger := s.logger.With("component", "building_service", "operation", "advance_construction", "city_id", cityID)

	current, err := s.store.GetInProgress(ctx, cityID, tx)
	if err != nil {
		return fmt.Errorf("failed to get in-progress construction: %w", err)
	}

	if current == nil {
		promoted, err := s.promoteQueueHead(ctx, cityID, tx)
		if err != nil {
			return err
		}
		if !promoted {
			logger.Debug("No construction active and queue empty, nothing to advance")
			return nil
		}
		current, err = s.store.GetInProgress(ctx, cityID, tx)
		if err != nil {
			return fmt.Errorf("failed to get promoted construction: %w", err)
		}
		if current == nil {
			return fmt.Errorf("promoted construction record missing for city %d", cityID)
		}
	}

	c, err := s.cities.GetCityByID(ctx, cityID, tx)
	if err != nil {
		return fmt.Errorf("failed to get city: %w", err)
	}
	if c == nil {
		return errors.NotFoundf("city %d not found", cityID)
	}

	points := progress.Points{Accumulated: current.ProgressPoints, Required: current.BuildTime}
	if points.Add(c.Production) {
		if err := s.store.CompleteRecord(ctx, current.ID, points.Accumulated, tx); err != nil {
			return err
		}
		logger.Info("Building completed", "building_id", current.BuildingID, "points", points.Accumulated)

		if _, err := s.promoteQueueHead(ctx, cityID, tx); err != nil {
			return err
		}
		return nil
	}

	logger.Debug("Construction advanced", "building_id", current.BuildingID, "progress", points.Accumulated, "build_time", points.Required)
	return s.store.SetProgress(ctx, current.ID, points.Accumulated, tx)
}

func (s *Service) promoteQueueHead(ctx context.Context, cityID int, tx *database.Tx) (bool, error) {
	queue, err := s.store.GetQueue(ctx, cityID, tx)
	if err != nil {
		return false, fmt.Errorf("failed to get build queue: %w", err)
	}
	if len(queue) == 0 {
		return false, nil
	}

	head := queue[0]
	if err := s.store.StartConstruction(ctx, cityID, head.BuildingID, true, tx); err != nil {
		return false, err
	}
	if err := s.store.RemoveQueueEntry(ctx, cityID, head.ID, tx); err != nil {
		return false, err
	}

	return true, nil
}

// StartConstruction begins building in a city. When construction is already
// under way the request routes to the queue instead of failing. Returns true
// when the building was queued rather than started.
func (s *Service) StartConstruction(ctx context.Context, cityID, buildingID int, tx *database.Tx) (bool, error) {
	logger := s.logger.With("component", "building_service", "operation", "start_construction", "city_id", cityID, "building_id", buildingID)

	b, err := s.store.GetBuildingByID(ctx, buildingID, tx)
	if err != nil {
		return false, fmt.Errorf("failed to get building: %w", err)
	}
	if b == nil {
		return false, errors.NotFoundf("building %d not found", buildingID)
	}

	record, err := s.store.GetRecord(ctx, cityID, buildingID, tx)
	if err != nil {
		return false, fmt.Errorf("failed to get construction record: %w", err)
	}
	if record != nil && record.Status == StateCompleted {
		return false, errors.Conflictf("building %d already exists in city %d", buildingID, cityID)
	}
	if record != nil && record.Status == StateInProgress {
		return false, errors.Conflictf("building %d is already under construction", buildingID)
	}

	current, err := s.store.GetInProgress(ctx, cityID, tx)
	if err != nil {
		return false, fmt.Errorf("failed to get in-progress construction: %w", err)
	}

	if current != nil {
		logger.Debug("Construction already in progress, routing to queue", "current_building_id", current.BuildingID)
		if _, err := s.AddToQueue(ctx, cityID, buildingID, tx); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := s.store.StartConstruction(ctx, cityID, buildingID, true, tx); err != nil {
		return false, err
	}

	logger.Info("Construction started")
	return false, nil
}

// CancelConstruction abandons the city's in-progress building.
func (s *Service) CancelConstruction(ctx context.Context, cityID int) error {
	logger := s.logger.With("component", "building_service", "operation", "cancel_construction", "city_id", cityID)

	current, err := s.store.GetInProgress(ctx, cityID, nil)
	if err != nil {
		return fmt.Errorf("failed to get in-progress construction: %w", err)
	}
	if current == nil {
		return errors.NotFoundf("no construction in progress for city %d", cityID)
	}

	if err := s.store.CancelConstruction(ctx, current.ID, nil); err != nil {
		return err
	}

	logger.Info("Construction canceled", "building_id", current.BuildingID)
	return nil
}

// AddToQueue appends a building to the city's build queue, rejecting
// completed or already-queued buildings.
func (s *Service) AddToQueue(ctx context.Context, cityID, buildingID int, tx *database.Tx) (*QueueEntry, error) {
	b, err := s.store.GetBuildingByID(ctx, buildingID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get building: %w", err)
	}
	if b == nil {
		return nil, errors.NotFoundf("building %d not found", buildingID)
	}

	record, err := s.store.GetRecord(ctx, cityID, buildingID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get construction record: %w", err)
	}
	if record != nil && record.Status == StateCompleted {
		return nil, errors.Conflictf("building %d already exists in city %d", buildingID, cityID)
	}

	queue, err := s.store.GetQueue(ctx, cityID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get build queue: %w", err)
	}
	for _, entry := range queue {
		if entry.BuildingID == buildingID {
			return nil, errors.Conflictf("building %d is already queued", buildingID)
		}
	}

	entry, err := s.store.Enqueue(ctx, cityID, buildingID, len(queue)+1, tx)
	if err != nil {
		return nil, err
	}
	entry.BuildingName = b.Name

	return entry, nil
}

func (s *Service) GetQueue(ctx context.Context, cityID int) ([]QueueEntry, error) {
	queue, err := s.store.GetQueue(ctx, cityID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get build queue: %w", err)
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

// Overview returns the city's construction picture in one call: the
// in-progress building, every construction record, and the build queue.
// Tx-aware so the AI engine sees uncommitted turn-transaction writes.
func (s *Service) Overview(ctx context.Context, cityID int, tx *database.Tx) (*PlayerBuilding, []PlayerBuilding, []QueueEntry, error) {
	current, err := s.store.GetInProgress(ctx, cityID, tx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get in-progress construction: %w", err)
	}

	records, err := s.store.GetByCity(ctx, cityID, tx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get city buildings: %w", err)
	}

	queue, err := s.store.GetQueue(ctx, cityID, tx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get build queue: %w", err)
	}

	return current, records, queue, nil
}

func (s *Service) GetCityBuildings(ctx context.Context, cityID int) ([]PlayerBuilding, error) {
	buildings, err := s.store.GetByCity(ctx, cityID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get city buildings: %w", err)
	}
	return buildings, nil
}

func (s *Service) GetBuildings(ctx context.Context, category string) ([]Building, error) {
	return s.store.GetBuildings(ctx, category)
}

func (s *Service) GetBuilding(ctx context.Context, buildingID int) (*Building, error) {
	b, err := s.store.GetBuildingByID(ctx, buildingID, nil)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.NotFoundf("building %d not found", buildingID)
	}
	return b, nil
}
