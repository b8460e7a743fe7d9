package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"civ-server/internal/shared/database"
	apperrors "civ-server/internal/shared/errors"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code raised when inserting a second
// snapshot for the same (game, turn).
const uniqueViolation = "23505"

type SnapshotRepository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewSnapshotRepository(db *database.DB, logger *slog.Logger) *SnapshotRepository {
	logger.Debug("Initializing snapshot repository")

	return &SnapshotRepository{
		db:     db,
		logger: logger,
	}
}

func (r *SnapshotRepository) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

const snapshotColumns = `id, game_id, turn_number, year, era, observed_map, research_state, production_state, diplomacy_state, resource_state, state_data, player_resources, created_at`

func scanSnapshot(row interface{ Scan(...interface{}) error }, s *TurnSnapshot) error {
	return row.Scan(
		&s.ID,
		&s.GameID,
		&s.TurnNumber,
		&s.Year,
		&s.Era,
		&s.ObservedMap,
		&s.ResearchState,
		&s.ProductionState,
		&s.DiplomacyState,
		&s.ResourceState,
		&s.StateData,
		&s.PlayerResources,
		&s.CreatedAt,
	)
}

// CreateSnapshot appends the snapshot for one turn. A duplicate
// (game, turn number) pair is a Conflict: snapshots are write-once.
func (r *SnapshotRepository) CreateSnapshot(ctx context.Context, snapshot *TurnSnapshot, tx *database.Tx) (*TurnSnapshot, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "snapshot_repository",
		"operation", "create_snapshot",
		"game_id", snapshot.GameID,
		"turn_number", snapshot.TurnNumber,
	)
	logger.Debug("Creating turn snapshot")

	query := `
		INSERT INTO turn_snapshots (game_id, turn_number, year, era, observed_map, research_state, production_state, diplomacy_state, resource_state, state_data, player_resources)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + snapshotColumns + `
	`

	var created TurnSnapshot
	err := scanSnapshot(exec.QueryRowContext(ctx, query,
		snapshot.GameID,
		snapshot.TurnNumber,
		snapshot.Year,
		snapshot.Era,
		snapshot.ObservedMap,
		snapshot.ResearchState,
		snapshot.ProductionState,
		snapshot.DiplomacyState,
		snapshot.ResourceState,
		snapshot.StateData,
		snapshot.PlayerResources,
	), &created)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			logger.Warn("Snapshot already exists for turn")
			return nil, apperrors.Conflictf("snapshot for game %d turn %d already exists", snapshot.GameID, snapshot.TurnNumber)
		}
		logger.Error("Failed to create snapshot", "error", err)
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	logger.Info("Turn snapshot created", "snapshot_id", created.ID)
	return &created, nil
}

// GetSnapshot returns the snapshot for one turn of a game, or nil when none
// was recorded. Old rows are returned as stored; missing optional fields get
// defaults at the service layer, never a write.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, gameID, turnNumber int) (*TurnSnapshot, error) {
	logger := r.logger.With("component", "snapshot_repository", "operation", "get_snapshot", "game_id", gameID, "turn_number", turnNumber)
	logger.Debug("Getting turn snapshot")

	query := `SELECT ` + snapshotColumns + ` FROM turn_snapshots WHERE game_id = $1 AND turn_number = $2`

	var snapshot TurnSnapshot
	err := scanSnapshot(r.db.QueryRowContext(ctx, query, gameID, turnNumber), &snapshot)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.Debug("Snapshot not found")
			return nil, nil
		}
		logger.Error("Database error getting snapshot", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &snapshot, nil
}

// GetLatestSnapshot returns the newest snapshot of a game, or nil.
func (r *SnapshotRepository) GetLatestSnapshot(ctx context.Context, gameID int) (*TurnSnapshot, error) {
	logger := r.logger.With("component", "snapshot_repository", "operation", "get_latest_snapshot", "game_id", gameID)
	logger.Debug("Getting latest turn snapshot")

	query := `
		SELECT ` + snapshotColumns + `
		FROM turn_snapshots
		WHERE game_id = $1
		ORDER BY turn_number DESC
		LIMIT 1
	`

	var snapshot TurnSnapshot
	err := scanSnapshot(r.db.QueryRowContext(ctx, query, gameID), &snapshot)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("Database error getting latest snapshot", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &snapshot, nil
}
