package tech

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
	logger.Debug("Initializing tech repository")

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

func (r *Repository) GetTechnologies(ctx context.Context, era, treeType string) ([]Technology, error) {
	logger := r.logger.With("component", "tech_repository", "operation", "get_technologies", "era", era, "tree_type", treeType)
	logger.Debug("Getting technology catalog")

	query := `
		SELECT id, name, era, tree_type, research_cost, created_at
		FROM technologies
		WHERE ($1 = '' OR era = $1)
		  AND ($2 = '' OR tree_type = $2)
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, era, treeType)
	if err != nil {
		logger.Error("Failed to query technologies", "error", err)
		return nil, fmt.Errorf("failed to query technologies: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var techs []Technology
	for rows.Next() {
		var t Technology
		if err := rows.Scan(&t.ID, &t.Name, &t.Era, &t.TreeType, &t.ResearchCost, &t.CreatedAt); err != nil {
			logger.Error("Failed to scan technology row", "error", err)
			return nil, fmt.Errorf("failed to scan technology: %w", err)
		}
		techs = append(techs, t)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating technologies: %w", err)
	}

	logger.Debug("Technologies retrieved", "count", len(techs))
	return techs, nil
}

func (r *Repository) GetTechnologyByID(ctx context.Context, techID int, tx *database.Tx) (*Technology, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "tech_repository", "operation", "get_technology", "tech_id", techID)
	logger.Debug("Getting technology by ID")

	query := `SELECT id, name, era, tree_type, research_cost, created_at FROM technologies WHERE id = $1`

	var t Technology
	err := exec.QueryRowContext(ctx, query, techID).Scan(&t.ID, &t.Name, &t.Era, &t.TreeType, &t.ResearchCost, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.Debug("Technology not found")
			return nil, nil
		}
		logger.Error("Database error getting technology", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &t, nil
}

const civTechColumns = `
	ct.id, ct.game_civ_id, ct.technology_id, ct.status, ct.progress_points,
	ct.started_at, ct.completed_at, t.name, t.research_cost
`

func scanCivTech(row interface{ Scan(...interface{}) error }, ct *CivTechnology) error {
	return row.Scan(
		&ct.ID,
		&ct.GameCivID,
		&ct.TechnologyID,
		&ct.Status,
		&ct.ProgressPoints,
		&ct.StartedAt,
		&ct.CompletedAt,
		&ct.TechName,
		&ct.ResearchCost,
	)
}

// GetInProgress returns the civilization's current research, or nil when
// nothing is being researched.
func (r *Repository) GetInProgress(ctx context.Context, gameCivID int, tx *database.Tx) (*CivTechnology, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "tech_repository", "operation", "get_in_progress", "game_civ_id", gameCivID)
	logger.Debug("Getting in-progress research")

	query := `
		SELECT ` + civTechColumns + `
		FROM game_civ_technologies ct
		JOIN technologies t ON t.id = ct.technology_id
		WHERE ct.game_civ_id = $1 AND ct.status = 'in_progress'
	`

	var ct CivTechnology
	err := scanCivTech(exec.QueryRowContext(ctx, query, gameCivID), &ct)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("Database error getting in-progress research", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &ct, nil
}

func (r *Repository) GetRecord(ctx context.Context, gameCivID, techID int, tx *database.Tx) (*CivTechnology, error) {
	exec := r.getExecutor(tx)

	query := `
		SELECT ` + civTechColumns + `
		FROM game_civ_technologies ct
		JOIN technologies t ON t.id = ct.technology_id
		WHERE ct.game_civ_id = $1 AND ct.technology_id = $2
	`

	var ct CivTechnology
	err := scanCivTech(exec.QueryRowContext(ctx, query, gameCivID, techID), &ct)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Database error getting research record", "error", err, "game_civ_id", gameCivID, "tech_id", techID)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &ct, nil
}

func (r *Repository) GetRecordsByStatus(ctx context.Context, gameCivID int, status ResearchState, tx *database.Tx) ([]CivTechnology, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "tech_repository", "operation", "get_records_by_status", "game_civ_id", gameCivID, "status", status)
	logger.Debug("Getting research records")

	query := `
		SELECT ` + civTechColumns + `
		FROM game_civ_technologies ct
		JOIN technologies t ON t.id = ct.technology_id
		WHERE ct.game_civ_id = $1 AND ct.status = $2
		ORDER BY ct.id
	`

	rows, err := exec.QueryContext(ctx, query, gameCivID, status)
	if err != nil {
		logger.Error("Failed to query research records", "error", err)
		return nil, fmt.Errorf("failed to query research records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var records []CivTechnology
	for rows.Next() {
		var ct CivTechnology
		if err := scanCivTech(rows, &ct); err != nil {
			logger.Error("Failed to scan research record", "error", err)
			return nil, fmt.Errorf("failed to scan research record: %w", err)
		}
		records = append(records, ct)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating research records: %w", err)
	}

	return records, nil
}

// StartResearch marks a technology in_progress for the civilization. A
// record canceled earlier keeps its accumulated points; when resetProgress is
// set the points are zeroed, which is the completion-promotion path.
func (r *Repository) StartResearch(ctx context.Context, gameCivID, techID int, resetProgress bool, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "tech_repository",
		"operation", "start_research",
		"game_civ_id", gameCivID,
		"tech_id", techID,
		"reset_progress", resetProgress,
	)
	logger.Debug("Starting research")

	query := `
		INSERT INTO game_civ_technologies (game_civ_id, technology_id, status, progress_points, started_at)
		VALUES ($1, $2, 'in_progress', 0, NOW())
		ON CONFLICT (game_civ_id, technology_id) DO UPDATE
		SET status = 'in_progress',
		    progress_points = CASE WHEN $3 THEN 0 ELSE game_civ_technologies.progress_points END,
		    started_at = NOW()
	`

	if _, err := exec.ExecContext(ctx, query, gameCivID, techID, resetProgress); err != nil {
		logger.Error("Failed to start research", "error", err)
		return fmt.Errorf("failed to start research: %w", err)
	}

	logger.Info("Research started")
	return nil
}

func (r *Repository) SetProgress(ctx context.Context, recordID, points int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	query := `UPDATE game_civ_technologies SET progress_points = $2 WHERE id = $1`

	if _, err := exec.ExecContext(ctx, query, recordID, points); err != nil {
		r.logger.Error("Failed to update research progress", "error", err, "record_id", recordID)
		return fmt.Errorf("failed to update research progress: %w", err)
	}

	return nil
}

func (r *Repository) CompleteRecord(ctx context.Context, recordID, points int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "tech_repository", "operation", "complete_record", "record_id", recordID)
	logger.Debug("Completing research record")

	query := `
		UPDATE game_civ_technologies
		SET status = 'completed', progress_points = $2, completed_at = NOW()
		WHERE id = $1
	`

	if _, err := exec.ExecContext(ctx, query, recordID, points); err != nil {
		logger.Error("Failed to complete research record", "error", err)
		return fmt.Errorf("failed to complete research record: %w", err)
	}

	logger.Info("Research completed")
	return nil
}

// CancelResearch returns the record to available, keeping its points.
func (r *Repository) CancelResearch(ctx context.Context, recordID int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "tech_repository", "operation", "cancel_research", "record_id", recordID)
	logger.Debug("Canceling research")

	query := `UPDATE game_civ_technologies SET status = 'available', started_at = NULL WHERE id = $1`

	if _, err := exec.ExecContext(ctx, query, recordID); err != nil {
		logger.Error("Failed to cancel research", "error", err)
		return fmt.Errorf("failed to cancel research: %w", err)
	}

	return nil
}

func (r *Repository) GetQueue(ctx context.Context, gameCivID int, tx *database.Tx) ([]QueueEntry, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "tech_repository", "operation", "get_queue", "game_civ_id", gameCivID)
	logger.Debug("Getting research queue")

	query := `
		SELECT q.id, q.game_civ_id, q.technology_id, q.position, t.name
		FROM research_queue q
		JOIN technologies t ON t.id = q.technology_id
		WHERE q.game_civ_id = $1
		ORDER BY q.position
	`

	rows, err := exec.QueryContext(ctx, query, gameCivID)
	if err != nil {
		logger.Error("Failed to query research queue", "error", err)
		return nil, fmt.Errorf("failed to query research queue: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.ID, &e.GameCivID, &e.TechnologyID, &e.Position, &e.TechName); err != nil {
			logger.Error("Failed to scan queue entry", "error", err)
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating research queue: %w", err)
	}

	return entries, nil
}

func (r *Repository) Enqueue(ctx context.Context, gameCivID, techID, position int, tx *database.Tx) (*QueueEntry, error) {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "tech_repository",
		"operation", "enqueue",
		"game_civ_id", gameCivID,
		"tech_id", techID,
		"position", position,
	)
	logger.Debug("Adding technology to research queue")

	query := `
		INSERT INTO research_queue (game_civ_id, technology_id, position)
		VALUES ($1, $2, $3)
		RETURNING id, game_civ_id, technology_id, position
	`

	var e QueueEntry
	err := exec.QueryRowContext(ctx, query, gameCivID, techID, position).Scan(&e.ID, &e.GameCivID, &e.TechnologyID, &e.Position)
	if err != nil {
		logger.Error("Failed to enqueue technology", "error", err)
		return nil, fmt.Errorf("failed to enqueue technology: %w", err)
	}

	logger.Info("Technology queued")
	return &e, nil
}

// RemoveQueueEntry deletes one queue entry and re-densifies the remaining
// positions so they stay a gapless 1..N sequence.
func (r *Repository) RemoveQueueEntry(ctx context.Context, gameCivID, entryID int, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With("component", "tech_repository", "operation", "remove_queue_entry", "game_civ_id", gameCivID, "entry_id", entryID)
	logger.Debug("Removing research queue entry")

	var position int
	err := exec.QueryRowContext(ctx,
		`DELETE FROM research_queue WHERE id = $1 AND game_civ_id = $2 RETURNING position`,
		entryID, gameCivID,
	).Scan(&position)
	if err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		logger.Error("Failed to remove queue entry", "error", err)
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}

	_, err = exec.ExecContext(ctx,
		`UPDATE research_queue SET position = position - 1 WHERE game_civ_id = $1 AND position > $2`,
		gameCivID, position,
	)
	if err != nil {
		logger.Error("Failed to re-densify queue positions", "error", err)
		return fmt.Errorf("failed to re-densify queue positions: %w", err)
	}

	logger.Debug("Queue entry removed", "position", position)
	return nil
}
