package building

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"civ-server/internal/shared/database"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing building repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *Repository) GetBuildings(ctx context.Context, category string) ([]Building, error) {
	logger := r.logger.With("component", "building_repository", "operation", "get_buildings", "category", category)
	logger.Debug("Getting building catalog")

	query := `
		SELECT id, name, category, build_time, prerequisite_tech_id, created_at
		FROM buildings
		WHERE ($1 = '' OR category = $1)
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, category)
	if err != nil {
		logger.Error("Failed to query buildings", "error", err)
		return nil, fmt.Errorf("failed to query buildings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var buildings []Building
	for rows.Next() {
		var b Building
		if err := rows.Scan(&b.ID, &b.Name, &b.Category, &b.BuildTime, &b.PrerequisiteTechID, &b.CreatedAt); err != nil {
			logger.Error("Failed to scan building row", "error", err)
			return nil, fmt.Errorf("failed to scan building: %w", err)
		}
		buildings = append(buildings, b)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating buildings: %w", err)
	}

	logger.Debug("Buildings retrieved", "count", len(buildings))
	return buildings, nil
}

func (r *Repository) GetBuildingByID(ctx context.Context, buildingID int, tx *database.Tx) (*Building, error) {
	exec := r.getExecutor(tx)

	query := `SELECT id, name, category, build_time, prerequisite_tech_id, created_at FROM buildings WHERE id = $1`

	var b Building
	err := exec.QueryRowContext(ctx, query, buildingID).Scan(&b.ID, &b.Name, &b.Category, &b.BuildTime, &b.PrerequisiteTechID, &b.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Database error getting building", "error", err, "building_id", buildingID)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &b, nil
}

const playerBuildingColumns = `
	pb.id, pb.city_id, pb.building_id, pb.status, pb.progress_points,
	pb.started_at, pb.completed_at, b.name, b.category, b.build_time
`

func scanPlayerBuilding(row interface{ Scan(...interface{}) error }, pb *PlayerBuilding) error {
	return row.Scan(
		&pb.ID,
		&pb.CityID,
		&pb.BuildingID,
		&pb.Status,
		&pb.ProgressPoints,
		&pb.StartedAt,
		&pb.CompletedAt,
		&pb.BuildingName,
		&pb.Category,
		&pb.BuildTime,
	)
}

// GetInProgress returns the city's current construction, or nil.
func (r *Repository) GetInProgress(ctx context.Context, cityID int, tx *database.Tx) (*PlayerBuilding, error) {
	exec := r.getExecutor(tx)

	query := `
		SELECT ` + playerBuildingColumns + `
		FROM player_buildings pb
		JOIN buildings b ON b.id = pb.building_id
		WHERE pb.city_id = $1 AND pb.status = 'in_progress'
	`

	var pb PlayerBuilding
	err := scanPlayerBuilding(exec.QueryRowContext(ctx, query, cityID), &pb)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Database error getting in-progress construction", "error", err, "city_id", cityID)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &pb, nil
}

func (r *Repository) GetByCity(ctx context.Context, cityID int, tx *database.Tx) ([]PlayerBuilding, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "building_repository", "operation", "get_by_city", "city_id", cityID)
	logger.Debug("Getting city buildings")

	query := `
		SELECT ` + playerBuildingColumns + `
		FROM player_buildings pb
		JOIN buildings b ON b.id = pb.building_id
		WHERE pb.city_id = $1
		ORDER BY pb.id
	`

	rows, err := exec.QueryContext(ctx, query, cityID)
	if err != nil {
		logger.Error("Failed to query city buildings", "error", err)
		return nil, fmt.Errorf("failed to query city buildings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var buildings []PlayerBuilding
	for rows.Next() {
		var pb PlayerBuilding
		if err := scanPlayerBuilding(rows, &pb); err != nil {
			logger.Error("Failed to scan player building row", "error", err)
			return nil, fmt.Errorf("failed to scan player building: %w", err)
		}
		buildings = append(buildings, pb)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating player buildings: %w", err)
	}

	return buildings, nil
}

// GetCompletedByCity returns the completed buildings the resource ledger
// scores bonuses from.
func (r *Repository) GetCompletedByCity(ctx context.Context, cityID int, tx *database.Tx) ([]PlayerBuilding, error) {
	exec := r.getExecutor(tx)

	query := `
		SELECT ` + playerBuildingColumns + `
		FROM player_buildings pb
		JOIN buildings b ON b.id = pb.building_id
		WHERE pb.city_id = $1 AND pb.status = 'completed'
		ORDER BY pb.id
	`

	rows, err := exec.QueryContext(ctx, query, cityID)
	if err != nil {
		r.logger.Error("Failed to query completed buildings", "error", err, "city_id", cityID)
		return nil, fmt.Errorf("failed to query completed buildings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("Failed to close rows", "error", err)
		}
	}()

	var buildings []PlayerBuilding
	for rows.Next() {
		var pb PlayerBuilding
		if err := scanPlayerBuilding(rows, &pb); err != nil {
			return nil, fmt.Errorf("failed to scan player building: %w", err)
		}
		buildings = append(buildings, pb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player buildings: %w", err)
	}

	return buildings, nil
}

func (r *Repository) GetRecord(ctx context.Context, cityID, buildingID int, tx *database.Tx) (*PlayerBuilding, error) {
	exec := r.getExecutor(tx)

	query := `
		SELECT ` + playerBuildingColumns + `
		FROM player_buildings pb
		JOIN buildings b ON b.id = pb.building_id
		WHERE pb.city_id = $1 AND pb.building_id = $2
	`

	var pb PlayerBuilding
	err := scanPlayerBuilding(exec.QueryRowContext(ctx, query, cityID, buildingID), &pb)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Database error getting construction record", "error", err, "city_id", cityID, "building_id", buildingID)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &pb, nil
}

// StartConstruction marks a building in_progress for the city. A canceled
// record keeps its accumulated points unless resetProgress is set.
func (r *Repository) StartConstruction(ctx context.Context, cityID, buildingID int, resetProgress bool, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "building_repository",
		"operation", "start_construction",
		"city_id", cityID,
		"building_id", buildingID,
		"reset_progress", resetProgress,
	)
	logger.Debug("Starting construction")

	query := `
		INSERT INTO player_buildings (city_id, building_id, status, progress_points, started_at)
		VALUES ($1, $2, 'in_progress', 0, NOW())
		ON CONFLICT (city_id, building_id) DO UPDATE
		SET status = 'in_progress',
		    progress_points = CASE WHEN $3 THEN 0 ELSE player_buildings.progress_points END,
		    started_at = NOW()
	`

	if _, err := exec.ExecContext(ctx, query, cityID, buildingID, resetProgress); err != nil {
		logger.Error("Failed to start construction", "error", err)
		return fmt.Errorf("failed to start construction: %w", err)
	}

	logger.Info("Construction started")
	return nil
}

func (r *Repository) SetProgress(ctx context.Context, recordID, points int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	query := `UPDATE player_buildings SET progress_points = $2 WHERE id = $1`

	if _, err := exec.ExecContext(ctx, query, recordID, points); err != nil {
		r.logger.Error("Failed to update construction progress", "error", err, "record_id", recordID)
		return fmt.Errorf("failed to update construction progress: %w", err)
	}

	return nil
}

func (r *Repository) CompleteRecord(ctx context.Context, recordID, points int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "building_repository", "operation", "complete_record", "record_id", recordID)

	query := `
		UPDATE player_buildings
		SET status = 'completed', progress_points = $2, completed_at = NOW()
		WHERE id = $1
	`

	if _, err := exec.ExecContext(ctx, query, recordID, points); err != nil {
		logger.Error("Failed to complete construction record", "error", err)
		return fmt.Errorf("failed to complete construction record: %w", err)
	}

	logger.Info("Construction completed")
	return nil
}

// CancelConstruction deletes the in-progress row. Buildings have no
// available state: an unstarted building simply has no record, so a later
// restart begins from zero.
func (r *Repository) CancelConstruction(ctx context.Context, recordID int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "building_repository", "operation", "cancel_construction", "record_id", recordID)
	logger.Debug("Canceling construction")

	query := `DELETE FROM player_buildings WHERE id = $1 AND status = 'in_progress'`

	if _, err := exec.ExecContext(ctx, query, recordID); err != nil {
		logger.Error("Failed to cancel construction", "error", err)
		return fmt.Errorf("failed to cancel construction: %w", err)
	}

	return nil
}

func (r *Repository) GetQueue(ctx context.Context, cityID int, tx *database.Tx) ([]QueueEntry, error) {
	exec := r.getExecutor(tx)

	query := `
		SELECT q.id, q.city_id, q.building_id, q.position, b.name
		FROM build_queue q
		JOIN buildings b ON b.id = q.building_id
		WHERE q.city_id = $1
		ORDER BY q.position
	`

	rows, err := exec.QueryContext(ctx, query, cityID)
	if err != nil {
		r.logger.Error("Failed to query build queue", "error", err, "city_id", cityID)
		return nil, fmt.Errorf("failed to query build queue: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("Failed to close rows", "error", err)
		}
	}()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.ID, &e.CityID, &e.BuildingID, &e.Position, &e.BuildingName); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build queue: %w", err)
	}

	return entries, nil
}

func (r *Repository) Enqueue(ctx context.Context, cityID, buildingID, position int, tx *database.Tx) (*QueueEntry, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "building_repository",
		"operation", "enqueue",
		"city_id", cityID,
		"building_id", buildingID,
		"position", position,
	)
	logger.Debug("Adding building to build queue")

	query := `
		INSERT INTO build_queue (city_id, building_id, position)
		VALUES ($1, $2, $3)
		RETURNING id, city_id, building_id, position
	`

	var e QueueEntry
	err := exec.QueryRowContext(ctx, query, cityID, buildingID, position).Scan(&e.ID, &e.CityID, &e.BuildingID, &e.Position)
	if err != nil {
		logger.Error("Failed to enqueue building", "error", err)
		return nil, fmt.Errorf("failed to enqueue building: %w", err)
	}

	logger.Info("Building queued")
	return &e, nil
}

// RemoveQueueEntry deletes one entry and re-densifies the remaining positions.
func (r *Repository) RemoveQueueEntry(ctx context.Context, cityID, entryID int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "building_repository", "operation", "remove_queue_entry", "city_id", cityID, "entry_id", entryID)
	logger.Debug("Removing build queue entry")

	var position int
	err := exec.QueryRowContext(ctx,
		`DELETE FROM build_queue WHERE id = $1 AND city_id = $2 RETURNING position`,
		entryID, cityID,
	).Scan(&position)
	if err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		logger.Error("Failed to remove queue entry", "error", err)
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}

	_, err = exec.ExecContext(ctx,
		`UPDATE build_queue SET position = position - 1 WHERE city_id = $1 AND position > $2`,
		cityID, position,
	)
	if err != nil {
		logger.Error("Failed to re-densify queue positions", "error", err)
		return fmt.Errorf("failed to re-densify queue positions: %w", err)
	}

	return nil
}
