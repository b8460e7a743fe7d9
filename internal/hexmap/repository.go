package hexmap

import (
	"context"
	"fmt"
	"log/slog"

	"civ-server/internal/shared/database"

	"github.com/lib/pq"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing hexmap repository")

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

func (r *Repository) GetTilesByGame(ctx context.Context, gameID int) ([]Tile, error) {
	logger := r.logger.With("component", "hexmap_repository", "operation", "get_tiles_by_game", "game_id", gameID)
	logger.Debug("Getting map tiles")

	query := `
		SELECT id, game_id, q, r, terrain, resource, created_at
		FROM map_tiles
		WHERE game_id = $1
		ORDER BY r, q
	`

	rows, err := r.db.QueryContext(ctx, query, gameID)
	if err != nil {
		logger.Error("Failed to query map tiles", "error", err)
		return nil, fmt.Errorf("failed to query map tiles: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var tiles []Tile
	for rows.Next() {
		var tile Tile
		err := rows.Scan(
			&tile.ID,
			&tile.GameID,
			&tile.Q,
			&tile.R,
			&tile.Terrain,
			&tile.Resource,
			&tile.CreatedAt,
		)
		if err != nil {
			logger.Error("Failed to scan tile row", "error", err)
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		tiles = append(tiles, tile)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating tiles: %w", err)
	}

	logger.Debug("Map tiles retrieved", "count", len(tiles))
	return tiles, nil
}

// GetTilesAtCoords returns the tiles of a game found at the given coordinates.
// Coordinates without a tile (off the map edge) are simply absent from the result.
func (r *Repository) GetTilesAtCoords(ctx context.Context, gameID int, coords []Coord, tx *database.Tx) ([]Tile, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "hexmap_repository", "operation", "get_tiles_at_coords", "game_id", gameID, "coord_count", len(coords))
	logger.Debug("Getting tiles at coordinates")

	if len(coords) == 0 {
		return nil, nil
	}

	qs := make([]int64, len(coords))
	rs := make([]int64, len(coords))
	for i, c := range coords {
		qs[i] = int64(c.Q)
		rs[i] = int64(c.R)
	}

	query := `
		SELECT t.id, t.game_id, t.q, t.r, t.terrain, t.resource, t.created_at
		FROM map_tiles t
		JOIN unnest($2::bigint[], $3::bigint[]) AS want(q, r)
			ON t.q = want.q AND t.r = want.r
		WHERE t.game_id = $1
	`

	rows, err := exec.QueryContext(ctx, query, gameID, pq.Array(qs), pq.Array(rs))
	if err != nil {
		logger.Error("Failed to query tiles at coordinates", "error", err)
		return nil, fmt.Errorf("failed to query tiles at coordinates: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var tiles []Tile
	for rows.Next() {
		var tile Tile
		err := rows.Scan(
			&tile.ID,
			&tile.GameID,
			&tile.Q,
			&tile.R,
			&tile.Terrain,
			&tile.Resource,
			&tile.CreatedAt,
		)
		if err != nil {
			logger.Error("Failed to scan tile row", "error", err)
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		tiles = append(tiles, tile)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating tiles: %w", err)
	}

	return tiles, nil
}
