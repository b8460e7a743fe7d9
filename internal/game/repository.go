package game

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
	logger.Debug("Initializing game repository")

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

const gameColumns = `id, name, current_turn, current_year, turn_limit, map_radius, created_at, updated_at`

func scanGame(row interface{ Scan(...interface{}) error }, g *Game) error {
	return row.Scan(
		&g.ID,
		&g.Name,
		&g.CurrentTurn,
		&g.CurrentYear,
		&g.TurnLimit,
		&g.MapRadius,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
}

func (r *Repository) GetGameByID(ctx context.Context, gameID int, tx *database.Tx) (*Game, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "game_repository", "operation", "get_game", "game_id", gameID)
	logger.Debug("Getting game by ID")

	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	var game Game
	err := scanGame(exec.QueryRowContext(ctx, query, gameID), &game)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.Debug("Game not found")
			return nil, nil
		}
		logger.Error("Database error getting game", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	logger.Debug("Game retrieved", "name", game.Name, "current_turn", game.CurrentTurn)
	return &game, nil
}

func (r *Repository) GetAllGames(ctx context.Context) ([]Game, error) {
	logger := r.logger.With("component", "game_repository", "operation", "get_all_games")
	logger.Debug("Getting all games")

	query := `SELECT ` + gameColumns + ` FROM games ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to query games", "error", err)
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var games []Game
	for rows.Next() {
		var game Game
		if err := scanGame(rows, &game); err != nil {
			logger.Error("Failed to scan game row", "error", err)
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	logger.Debug("Games retrieved", "count", len(games))
	return games, nil
}

// AdvanceTurn moves the game's turn counter to nextTurn and sets the new
// year. The WHERE clause on the previous turn keeps the advance strictly
// monotonic even if two transactions slip past the per-game lock.
func (r *Repository) AdvanceTurn(ctx context.Context, gameID, nextTurn, year int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "game_repository",
		"operation", "advance_turn",
		"game_id", gameID,
		"next_turn", nextTurn,
		"year", year,
	)
	logger.Debug("Advancing game turn")

	query := `
		UPDATE games
		SET current_turn = $2, current_year = $3, updated_at = NOW()
		WHERE id = $1 AND current_turn = $2 - 1
	`

	result, err := exec.ExecContext(ctx, query, gameID, nextTurn, year)
	if err != nil {
		logger.Error("Failed to advance turn", "error", err)
		return fmt.Errorf("failed to advance turn: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		logger.Warn("Turn counter moved underneath this advance")
		return fmt.Errorf("game %d is not at turn %d", gameID, nextTurn-1)
	}

	logger.Info("Game turn advanced", "turn", nextTurn)
	return nil
}
