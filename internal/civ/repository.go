package civ

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
	logger.Debug("Initializing civ repository")

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

const gameCivColumns = `
	gc.id, gc.game_id, gc.civilization_id, gc.is_player, gc.start_q, gc.start_r,
	gc.gold, gc.science, gc.culture, gc.created_at, gc.updated_at,
	c.name, c.leader, c.personality
`

func scanGameCiv(row interface{ Scan(...interface{}) error }, gc *GameCiv) error {
	return row.Scan(
		&gc.ID,
		&gc.GameID,
		&gc.CivilizationID,
		&gc.IsPlayer,
		&gc.StartQ,
		&gc.StartR,
		&gc.Gold,
		&gc.Science,
		&gc.Culture,
		&gc.CreatedAt,
		&gc.UpdatedAt,
		&gc.Name,
		&gc.Leader,
		&gc.Personality,
	)
}

func (r *Repository) GetGameCivByID(ctx context.Context, gameCivID int, tx *database.Tx) (*GameCiv, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "civ_repository", "operation", "get_game_civ", "game_civ_id", gameCivID)
	logger.Debug("Getting game civ by ID")

	query := `
		SELECT ` + gameCivColumns + `
		FROM game_civs gc
		JOIN civilizations c ON c.id = gc.civilization_id
		WHERE gc.id = $1
	`

	var gc GameCiv
	err := scanGameCiv(exec.QueryRowContext(ctx, query, gameCivID), &gc)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.Debug("Game civ not found")
			return nil, nil
		}
		logger.Error("Database error getting game civ", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &gc, nil
}

// GetGameCivsByGame returns every civilization instance of a game in ascending
// id order. The stable order matters: AI civilizations are processed in it.
func (r *Repository) GetGameCivsByGame(ctx context.Context, gameID int, tx *database.Tx) ([]GameCiv, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "civ_repository", "operation", "get_game_civs_by_game", "game_id", gameID)
	logger.Debug("Getting game civs")

	query := `
		SELECT ` + gameCivColumns + `
		FROM game_civs gc
		JOIN civilizations c ON c.id = gc.civilization_id
		WHERE gc.game_id = $1
		ORDER BY gc.id
	`

	rows, err := exec.QueryContext(ctx, query, gameID)
	if err != nil {
		logger.Error("Failed to query game civs", "error", err)
		return nil, fmt.Errorf("failed to query game civs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var civs []GameCiv
	for rows.Next() {
		var gc GameCiv
		if err := scanGameCiv(rows, &gc); err != nil {
			logger.Error("Failed to scan game civ row", "error", err)
			return nil, fmt.Errorf("failed to scan game civ: %w", err)
		}
		civs = append(civs, gc)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating game civs: %w", err)
	}

	logger.Debug("Game civs retrieved", "count", len(civs))
	return civs, nil
}

// IncrementResources adds the given amounts to a civilization's accumulated
// totals. Amounts are additive; passing zero leaves a total unchanged.
func (r *Repository) IncrementResources(ctx context.Context, gameCivID, gold, science, culture int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "civ_repository",
		"operation", "increment_resources",
		"game_civ_id", gameCivID,
		"gold", gold,
		"science", science,
		"culture", culture,
	)
	logger.Debug("Incrementing civ resources")

	query := `
		UPDATE game_civs
		SET gold = gold + $2, science = science + $3, culture = culture + $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := exec.ExecContext(ctx, query, gameCivID, gold, science, culture)
	if err != nil {
		logger.Error("Failed to increment resources", "error", err)
		return fmt.Errorf("failed to increment resources: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		logger.Warn("Game civ not found for resource increment")
		return fmt.Errorf("game civ not found")
	}

	return nil
}

// SetResources overwrites a civilization's accumulated totals. Used only by
// server-side reconciliation, never by the ledger.
func (r *Repository) SetResources(ctx context.Context, gameCivID, gold, science, culture int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "civ_repository", "operation", "set_resources", "game_civ_id", gameCivID)
	logger.Debug("Setting civ resources")

	query := `
		UPDATE game_civs
		SET gold = $2, science = $3, culture = $4, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := exec.ExecContext(ctx, query, gameCivID, gold, science, culture); err != nil {
		logger.Error("Failed to set resources", "error", err)
		return fmt.Errorf("failed to set resources: %w", err)
	}

	return nil
}

func (r *Repository) GetCivilizations(ctx context.Context) ([]Civilization, error) {
	logger := r.logger.With("component", "civ_repository", "operation", "get_civilizations")
	logger.Debug("Getting civilization catalog")

	query := `
		SELECT id, name, leader, personality, created_at
		FROM civilizations
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to query civilizations", "error", err)
		return nil, fmt.Errorf("failed to query civilizations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var civs []Civilization
	for rows.Next() {
		var c Civilization
		if err := rows.Scan(&c.ID, &c.Name, &c.Leader, &c.Personality, &c.CreatedAt); err != nil {
			logger.Error("Failed to scan civilization row", "error", err)
			return nil, fmt.Errorf("failed to scan civilization: %w", err)
		}
		civs = append(civs, c)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating civilizations: %w", err)
	}

	return civs, nil
}
