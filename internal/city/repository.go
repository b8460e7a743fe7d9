package city

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
	logger.Debug("Initializing city repository")

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

const cityColumns = `id, game_civ_id, name, q, r, population, food, production, founded_turn, created_at, updated_at`

func scanCity(row interface{ Scan(...interface{}) error }, c *City) error {
	return row.Scan(
		&c.ID,
		&c.GameCivID,
		&c.Name,
		&c.Q,
		&c.R,
		&c.Population,
		&c.Food,
		&c.Production,
		&c.FoundedTurn,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func (r *Repository) GetCityByID(ctx context.Context, cityID int, tx *database.Tx) (*City, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "city_repository", "operation", "get_city", "city_id", cityID)
	logger.Debug("Getting city by ID")

	query := `SELECT ` + cityColumns + ` FROM cities WHERE id = $1`

	var c City
	err := scanCity(exec.QueryRowContext(ctx, query, cityID), &c)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.Debug("City not found")
			return nil, nil
		}
		logger.Error("Database error getting city", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &c, nil
}

func (r *Repository) GetCitiesByCiv(ctx context.Context, gameCivID int, tx *database.Tx) ([]City, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "city_repository", "operation", "get_cities_by_civ", "game_civ_id", gameCivID)
	logger.Debug("Getting cities for civ")

	query := `SELECT ` + cityColumns + ` FROM cities WHERE game_civ_id = $1 ORDER BY id`

	rows, err := exec.QueryContext(ctx, query, gameCivID)
	if err != nil {
		logger.Error("Failed to query cities", "error", err)
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var cities []City
	for rows.Next() {
		var c City
		if err := scanCity(rows, &c); err != nil {
			logger.Error("Failed to scan city row", "error", err)
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, c)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating cities: %w", err)
	}

	logger.Debug("Cities retrieved", "count", len(cities))
	return cities, nil
}

// GetCitiesByGame returns all cities of a game regardless of owner.
func (r *Repository) GetCitiesByGame(ctx context.Context, gameID int, tx *database.Tx) ([]City, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "city_repository", "operation", "get_cities_by_game", "game_id", gameID)
	logger.Debug("Getting cities for game")

	query := `
		SELECT c.id, c.game_civ_id, c.name, c.q, c.r, c.population, c.food, c.production, c.founded_turn, c.created_at, c.updated_at
		FROM cities c
		JOIN game_civs gc ON gc.id = c.game_civ_id
		WHERE gc.game_id = $1
		ORDER BY c.id
	`

	rows, err := exec.QueryContext(ctx, query, gameID)
	if err != nil {
		logger.Error("Failed to query cities", "error", err)
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var cities []City
	for rows.Next() {
		var c City
		if err := scanCity(rows, &c); err != nil {
			logger.Error("Failed to scan city row", "error", err)
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, c)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating cities: %w", err)
	}

	return cities, nil
}

// UpdateYields writes the city's per-turn food and production fields.
func (r *Repository) UpdateYields(ctx context.Context, cityID, food, production int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "city_repository",
		"operation", "update_yields",
		"city_id", cityID,
		"food", food,
		"production", production,
	)
	logger.Debug("Updating city yields")

	query := `UPDATE cities SET food = $2, production = $3, updated_at = NOW() WHERE id = $1`

	result, err := exec.ExecContext(ctx, query, cityID, food, production)
	if err != nil {
		logger.Error("Failed to update city yields", "error", err)
		return fmt.Errorf("failed to update city yields: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		logger.Warn("City not found for yield update")
		return fmt.Errorf("city not found")
	}

	return nil
}

func (r *Repository) UpdatePopulation(ctx context.Context, cityID, population int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "city_repository", "operation", "update_population", "city_id", cityID, "population", population)
	logger.Debug("Updating city population")

	query := `UPDATE cities SET population = $2, updated_at = NOW() WHERE id = $1`

	if _, err := exec.ExecContext(ctx, query, cityID, population); err != nil {
		logger.Error("Failed to update city population", "error", err)
		return fmt.Errorf("failed to update city population: %w", err)
	}

	return nil
}
