package unit

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
	logger.Debug("Initializing unit repository")

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

func (r *Repository) GetUnitTypes(ctx context.Context, category, era string) ([]UnitType, error) {
	logger := r.logger.With("component", "unit_repository", "operation", "get_unit_types", "category", category, "era", era)
	logger.Debug("Getting unit type catalog")

	query := `
		SELECT id, name, category, era, build_turns, base_hp, prerequisite_tech_id, created_at
		FROM unit_types
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR era = $2)
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, category, era)
	if err != nil {
		logger.Error("Failed to query unit types", "error", err)
		return nil, fmt.Errorf("failed to query unit types: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var types []UnitType
	for rows.Next() {
		var ut UnitType
		if err := rows.Scan(&ut.ID, &ut.Name, &ut.Category, &ut.Era, &ut.BuildTurns, &ut.BaseHP, &ut.PrerequisiteTechID, &ut.CreatedAt); err != nil {
			logger.Error("Failed to scan unit type row", "error", err)
			return nil, fmt.Errorf("failed to scan unit type: %w", err)
		}
		types = append(types, ut)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating unit types: %w", err)
	}

	logger.Debug("Unit types retrieved", "count", len(types))
	return types, nil
}

func (r *Repository) GetUnitTypeByID(ctx context.Context, unitTypeID int, tx *database.Tx) (*UnitType, error) {
	exec := r.getExecutor(tx)

	query := `SELECT id, name, category, era, build_turns, base_hp, prerequisite_tech_id, created_at FROM unit_types WHERE id = $1`

	var ut UnitType
	err := exec.QueryRowContext(ctx, query, unitTypeID).Scan(&ut.ID, &ut.Name, &ut.Category, &ut.Era, &ut.BuildTurns, &ut.BaseHP, &ut.PrerequisiteTechID, &ut.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Database error getting unit type", "error", err, "unit_type_id", unitTypeID)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &ut, nil
}

const gameUnitColumns = `
	u.id, u.game_civ_id, u.unit_type_id, u.q, u.r, u.hp, u.created_turn, u.created_at,
	ut.name, ut.category, ut.base_hp
`

func scanGameUnit(row interface{ Scan(...interface{}) error }, u *GameUnit) error {
	return row.Scan(
		&u.ID,
		&u.GameCivID,
		&u.UnitTypeID,
		&u.Q,
		&u.R,
		&u.HP,
		&u.CreatedTurn,
		&u.CreatedAt,
		&u.UnitName,
		&u.Category,
		&u.BaseHP,
	)
}

// CreateUnit instantiates a unit on the map.
func (r *Repository) CreateUnit(ctx context.Context, gameCivID, unitTypeID, q, rCoord, hp, createdTurn int, tx *database.Tx) (*GameUnit, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "unit_repository",
		"operation", "create_unit",
		"game_civ_id", gameCivID,
		"unit_type_id", unitTypeID,
		"q", q,
		"r", rCoord,
	)
	logger.Debug("Creating unit")

	query := `
		WITH inserted AS (
			INSERT INTO game_units (game_civ_id, unit_type_id, q, r, hp, created_turn)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, game_civ_id, unit_type_id, q, r, hp, created_turn, created_at
		)
		SELECT u.id, u.game_civ_id, u.unit_type_id, u.q, u.r, u.hp, u.created_turn, u.created_at,
		       ut.name, ut.category, ut.base_hp
		FROM inserted u
		JOIN unit_types ut ON ut.id = u.unit_type_id
	`

	var unit GameUnit
	err := scanGameUnit(exec.QueryRowContext(ctx, query, gameCivID, unitTypeID, q, rCoord, hp, createdTurn), &unit)
	if err != nil {
		logger.Error("Failed to create unit", "error", err)
		return nil, fmt.Errorf("failed to create unit: %w", err)
	}

	logger.Info("Unit created", "unit_id", unit.ID)
	return &unit, nil
}

func (r *Repository) GetUnitByID(ctx context.Context, unitID int, tx *database.Tx) (*GameUnit, error) {
	exec := r.getExecutor(tx)

	query := `
		SELECT ` + gameUnitColumns + `
		FROM game_units u
		JOIN unit_types ut ON ut.id = u.unit_type_id
		WHERE u.id = $1
	`

	var unit GameUnit
	err := scanGameUnit(exec.QueryRowContext(ctx, query, unitID), &unit)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Database error getting unit", "error", err, "unit_id", unitID)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &unit, nil
}

func (r *Repository) GetUnitsByCiv(ctx context.Context, gameCivID int, tx *database.Tx) ([]GameUnit, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "unit_repository", "operation", "get_units_by_civ", "game_civ_id", gameCivID)
	logger.Debug("Getting units for civ")

	query := `
		SELECT ` + gameUnitColumns + `
		FROM game_units u
		JOIN unit_types ut ON ut.id = u.unit_type_id
		WHERE u.game_civ_id = $1
		ORDER BY u.id
	`

	rows, err := exec.QueryContext(ctx, query, gameCivID)
	if err != nil {
		logger.Error("Failed to query units", "error", err)
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var units []GameUnit
	for rows.Next() {
		var u GameUnit
		if err := scanGameUnit(rows, &u); err != nil {
			logger.Error("Failed to scan unit row", "error", err)
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating units: %w", err)
	}

	return units, nil
}

// UpdateUnitState writes a unit's position and hit points. Used by
// server-side reconciliation.
func (r *Repository) UpdateUnitState(ctx context.Context, unitID, q, rCoord, hp int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "unit_repository", "operation", "update_unit_state", "unit_id", unitID)
	logger.Debug("Updating unit state")

	query := `UPDATE game_units SET q = $2, r = $3, hp = $4 WHERE id = $1`

	if _, err := exec.ExecContext(ctx, query, unitID, q, rCoord, hp); err != nil {
		logger.Error("Failed to update unit state", "error", err)
		return fmt.Errorf("failed to update unit state: %w", err)
	}

	return nil
}

func (r *Repository) GetQueue(ctx context.Context, cityID int, tx *database.Tx) ([]QueueEntry, error) {
	exec := r.getExecutor(tx)

	query := `
		SELECT q.id, q.city_id, q.unit_type_id, q.turns_left, q.position, ut.name
		FROM production_queue q
		JOIN unit_types ut ON ut.id = q.unit_type_id
		WHERE q.city_id = $1
		ORDER BY q.position
	`

	rows, err := exec.QueryContext(ctx, query, cityID)
	if err != nil {
		r.logger.Error("Failed to query production queue", "error", err, "city_id", cityID)
		return nil, fmt.Errorf("failed to query production queue: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("Failed to close rows", "error", err)
		}
	}()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.ID, &e.CityID, &e.UnitTypeID, &e.TurnsLeft, &e.Position, &e.UnitName); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating production queue: %w", err)
	}

	return entries, nil
}

func (r *Repository) Enqueue(ctx context.Context, cityID, unitTypeID, turnsLeft, position int, tx *database.Tx) (*QueueEntry, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "unit_repository",
		"operation", "enqueue",
		"city_id", cityID,
		"unit_type_id", unitTypeID,
		"turns_left", turnsLeft,
		"position", position,
	)
	logger.Debug("Adding unit to production queue")

	query := `
		INSERT INTO production_queue (city_id, unit_type_id, turns_left, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, city_id, unit_type_id, turns_left, position
	`

	var e QueueEntry
	err := exec.QueryRowContext(ctx, query, cityID, unitTypeID, turnsLeft, position).Scan(&e.ID, &e.CityID, &e.UnitTypeID, &e.TurnsLeft, &e.Position)
	if err != nil {
		logger.Error("Failed to enqueue unit", "error", err)
		return nil, fmt.Errorf("failed to enqueue unit: %w", err)
	}

	logger.Info("Unit production queued")
	return &e, nil
}

func (r *Repository) SetTurnsLeft(ctx context.Context, entryID, turnsLeft int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	query := `UPDATE production_queue SET turns_left = $2 WHERE id = $1`

	if _, err := exec.ExecContext(ctx, query, entryID, turnsLeft); err != nil {
		r.logger.Error("Failed to update turns left", "error", err, "entry_id", entryID)
		return fmt.Errorf("failed to update turns left: %w", err)
	}

	return nil
}

// RemoveQueueEntry deletes one entry and re-densifies the remaining positions.
func (r *Repository) RemoveQueueEntry(ctx context.Context, cityID, entryID int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "unit_repository", "operation", "remove_queue_entry", "city_id", cityID, "entry_id", entryID)
	logger.Debug("Removing production queue entry")

	var position int
	err := exec.QueryRowContext(ctx,
		`DELETE FROM production_queue WHERE id = $1 AND city_id = $2 RETURNING position`,
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
		`UPDATE production_queue SET position = position - 1 WHERE city_id = $1 AND position > $2`,
		cityID, position,
	)
	if err != nil {
		logger.Error("Failed to re-densify queue positions", "error", err)
		return fmt.Errorf("failed to re-densify queue positions: %w", err)
	}

	return nil
}
