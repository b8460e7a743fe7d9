package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"civ-server/internal/shared/errors"
)

// PlayerResourceReader supplies the fallback player-resource summary for
// snapshots recorded before the denormalized column existed.
type PlayerResourceReader interface {
	PlayerResources(ctx context.Context, gameID int) (json.RawMessage, error)
}

type Service struct {
	repo      *Repository
	snapshots *SnapshotRepository
	resources PlayerResourceReader
	logger    *slog.Logger
}

func NewService(repo *Repository, snapshots *SnapshotRepository, resources PlayerResourceReader, logger *slog.Logger) *Service {
	logger.Debug("Initializing game service")

	return &Service{
		repo:      repo,
		snapshots: snapshots,
		resources: resources,
		logger:    logger,
	}
}

func (s *Service) GetGames(ctx context.Context) ([]Game, error) {
	games, err := s.repo.GetAllGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get games: %w", err)
	}
	return games, nil
}

func (s *Service) GetGame(ctx context.Context, gameID int) (*Game, error) {
	game, err := s.repo.GetGameByID(ctx, gameID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, errors.NotFoundf("game %d not found", gameID)
	}
	return game, nil
}

// GetState returns the game and the snapshot for the requested turn. When
// turn <= 0 the latest snapshot is used. Snapshots written before the
// player_resources column carry it as null; the read path fills it from live
// data instead of patching the stored row.
func (s *Service) GetState(ctx context.Context, gameID, turn int) (*GameState, error) {
	logger := s.logger.With("component", "game_service", "operation", "get_state", "game_id", gameID, "turn", turn)

	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	var snapshot *TurnSnapshot
	if turn > 0 {
		snapshot, err = s.snapshots.GetSnapshot(ctx, gameID, turn)
	} else {
		snapshot, err = s.snapshots.GetLatestSnapshot(ctx, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if snapshot != nil && len(snapshot.PlayerResources) == 0 {
		logger.Debug("Snapshot predates player resources, computing fallback")

		resources, err := s.resources.PlayerResources(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute player resources: %w", err)
		}
		snapshot.PlayerResources = resources
	}

	return &GameState{Game: game, Snapshot: snapshot}, nil
}
