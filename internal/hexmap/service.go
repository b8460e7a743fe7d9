package hexmap

import (
	"context"
	"fmt"
	"log/slog"
)

type Service struct {
	repo   *Repository
	logger *slog.Logger
}

func NewService(repo *Repository, logger *slog.Logger) *Service {
	logger.Debug("Initializing hexmap service")

	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// GetTiles returns every tile of a game's map.
func (s *Service) GetTiles(ctx context.Context, gameID int) ([]Tile, error) {
	tiles, err := s.repo.GetTilesByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiles: %w", err)
	}
	return tiles, nil
}

// GetAdjacent returns the tiles surrounding the given coordinate, plus the
// coordinate's own tile when it exists.
func (s *Service) GetAdjacent(ctx context.Context, gameID int, center Coord) ([]Tile, error) {
	coords := make([]Coord, 0, 7)
	coords = append(coords, center)
	for _, n := range center.Neighbors() {
		coords = append(coords, n)
	}

	tiles, err := s.repo.GetTilesAtCoords(ctx, gameID, coords, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get adjacent tiles: %w", err)
	}
	return tiles, nil
}
