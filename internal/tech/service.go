package tech

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"civ-server/internal/civ"
	"civ-server/internal/progress"
	"civ-server/internal/shared/database"
	"civ-server/internal/shared/errors"
)

// ResearchStore is the persistence surface the service needs. The concrete
// *Repository satisfies it; tests substitute an in-memory fake.
type ResearchStore interface {
	GetTechnologies(ctx context.Context, era, treeType string) ([]Technology, error)
	GetTechnologyByID(ctx context.Context, techID int, tx *database.Tx) (*Technology, error)
	GetInProgress(ctx context.Context, gameCivID int, tx *database.Tx) (*CivTechnology, error)
	GetRecord(ctx context.Context, gameCivID, techID int, tx *database.Tx) (*CivTechnology, error)
	GetRecordsByStatus(ctx context.Context, gameCivID int, status ResearchState, tx *database.Tx) ([]CivTechnology, error)
	StartResearch(ctx context.Context, gameCivID, techID int, resetProgress bool, tx *database.Tx) error
	SetProgress(ctx context.Context, recordID, points int, tx *database.Tx) error
	CompleteRecord(ctx context.Context, recordID, points int, tx *database.Tx) error
	CancelResearch(ctx context.Context, recordID int, tx *database.Tx) error
	GetQueue(ctx context.Context, gameCivID int, tx *database.Tx) ([]QueueEntry, error)
	Enqueue(ctx context.Context, gameCivID, techID, position int, tx *database.Tx) (*QueueEntry, error)
	RemoveQueueEntry(ctx context.Context, gameCivID, entryID int, tx *database.Tx) error
}

// CivReader supplies the science yield consumed each turn.
type CivReader interface {
	GetGameCivByID(ctx context.Context, gameCivID int, tx *database.Tx) (*civ.GameCiv, error)
}

type Service struct {
	store      ResearchStore
	civs       CivReader
	queueLimit int
	logger     *slog.Logger
}

func NewService(store ResearchStore, civs CivReader, queueLimit int, logger *slog.Logger) *Service {
	logger.Debug("Initializing tech service", "queue_limit", queueLimit)

	return &Service{
		store:      store,
		civs:       civs,
		queueLimit: queueLimit,
		logger:     logger,
	}
}

// AdvanceResearch runs one turn of research for a civilization. With nothing
// in progress it pulls the queue head first, so a freshly promoted technology
// accumulates this turn's science too. Completion promotes the next queue
// head with progress reset to zero.
func (s *Service) AdvanceResearch(ctx context.Context, gameCivID int, tx *database.Tx) error {
	logger := s.logger.With("component", "tech_service", "operation", "advance_research", "game_civ_id", gameCivID)

	current, err := s.store.GetInProgress(ctx, gameCivID, tx)
	if err != nil {
		return fmt.Errorf("failed to get in-progress research: %w", err)
	}

	if current == nil {
		promoted, err := s.promoteQueueHead(ctx, gameCivID, false, tx)
		if err != nil {
			return err
		}
		if !promoted {
			logger.Debug("No research active and queue empty, nothing to advance")
			return nil
		}
		current, err = s.store.GetInProgress(ctx, gameCivID, tx)
		if err != nil {
			return fmt.Errorf("failed to get promoted research: %w", err)
		}
		if current == nil {
			return fmt.Errorf("promoted research record missing for civ %d", gameCivID)
		}
	}

	gameCiv, err := s.civs.GetGameCivByID(ctx, gameCivID, tx)
	if err != nil {
		return fmt.Errorf("failed to get game civ: %w", err)
	}
	if gameCiv == nil {
		return errors.NotFoundf("game civ %d not found", gameCivID)
	}

	points := progress.Points{Accumulated: current.ProgressPoints, Required: current.ResearchCost}
	if points.Add(gameCiv.Science) {
		if err := s.store.CompleteRecord(ctx, current.ID, points.Accumulated, tx); err != nil {
			return err
		}
		logger.Info("Technology researched", "tech_id", current.TechnologyID, "points", points.Accumulated)

		if _, err := s.promoteQueueHead(ctx, gameCivID, true, tx); err != nil {
			return err
		}
		return nil
	}

	logger.Debug("Research advanced", "tech_id", current.TechnologyID, "progress", points.Accumulated, "cost", points.Required)
	return s.store.SetProgress(ctx, current.ID, points.Accumulated, tx)
}

// promoteQueueHead moves the first queued technology into in_progress and
// removes it from the queue. Reports whether anything was promoted.
func (s *Service) promoteQueueHead(ctx context.Context, gameCivID int, resetProgress bool, tx *database.Tx) (bool, error) {
	queue, err := s.store.GetQueue(ctx, gameCivID, tx)
	if err != nil {
		return false, fmt.Errorf("failed to get research queue: %w", err)
	}
	if len(queue) == 0 {
		return false, nil
	}

	head := queue[0]
	if err := s.store.StartResearch(ctx, gameCivID, head.TechnologyID, resetProgress, tx); err != nil {
		return false, err
	}
	if err := s.store.RemoveQueueEntry(ctx, gameCivID, head.ID, tx); err != nil {
		return false, err
	}

	return true, nil
}

// StartResearch begins researching a technology. When one is already in
// progress the request routes to the queue instead of failing. Returns true
// when the technology was queued rather than started.
func (s *Service) StartResearch(ctx context.Context, gameCivID, techID int, tx *database.Tx) (bool, error) {
	logger := s.logger.With("component", "tech_service", "operation", "start_research", "game_civ_id", gameCivID, "tech_id", techID)

	technology, err := s.store.GetTechnologyByID(ctx, techID, tx)
	if err != nil {
		return false, fmt.Errorf("failed to get technology: %w", err)
	}
	if technology == nil {
		return false, errors.NotFoundf("technology %d not found", techID)
	}

	record, err := s.store.GetRecord(ctx, gameCivID, techID, tx)
	if err != nil {
		return false, fmt.Errorf("failed to get research record: %w", err)
	}
	if record != nil && record.Status == StateCompleted {
		return false, errors.Conflictf("technology %d is already researched", techID)
	}
	if record != nil && record.Status == StateInProgress {
		return false, errors.Conflictf("technology %d is already in progress", techID)
	}

	current, err := s.store.GetInProgress(ctx, gameCivID, tx)
	if err != nil {
		return false, fmt.Errorf("failed to get in-progress research: %w", err)
	}

	if current != nil {
		logger.Debug("Research already in progress, routing to queue", "current_tech_id", current.TechnologyID)
		if _, err := s.AddToQueue(ctx, gameCivID, techID, tx); err != nil {
			return false, err
		}
		return true, nil
	}

	// A record canceled earlier resumes with its accumulated points.
	if err := s.store.StartResearch(ctx, gameCivID, techID, false, tx); err != nil {
		return false, err
	}

	logger.Info("Research started")
	return false, nil
}

// CancelResearch returns the in-progress technology to available. Its
// accumulated points survive so a later start resumes where it left off.
func (s *Service) CancelResearch(ctx context.Context, gameCivID int) error {
	logger := s.logger.With("component", "tech_service", "operation", "cancel_research", "game_civ_id", gameCivID)

	current, err := s.store.GetInProgress(ctx, gameCivID, nil)
	if err != nil {
		return fmt.Errorf("failed to get in-progress research: %w", err)
	}
	if current == nil {
		return errors.NotFoundf("no research in progress for civ %d", gameCivID)
	}

	if err := s.store.CancelResearch(ctx, current.ID, nil); err != nil {
		return err
	}

	logger.Info("Research canceled", "tech_id", current.TechnologyID, "kept_points", current.ProgressPoints)
	return nil
}

// AddToQueue appends a technology to the research queue, enforcing the queue
// cap and rejecting completed or already-queued technologies.
func (s *Service) AddToQueue(ctx context.Context, gameCivID, techID int, tx *database.Tx) (*QueueEntry, error) {
	technology, err := s.store.GetTechnologyByID(ctx, techID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get technology: %w", err)
	}
	if technology == nil {
		return nil, errors.NotFoundf("technology %d not found", techID)
	}

	record, err := s.store.GetRecord(ctx, gameCivID, techID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get research record: %w", err)
	}
	if record != nil && record.Status == StateCompleted {
		return nil, errors.Conflictf("technology %d is already researched", techID)
	}

	queue, err := s.store.GetQueue(ctx, gameCivID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get research queue: %w", err)
	}
	if len(queue) >= s.queueLimit {
		return nil, errors.Conflictf("research queue is full (limit %d)", s.queueLimit)
	}
	for _, entry := range queue {
		if entry.TechnologyID == techID {
			return nil, errors.Conflictf("technology %d is already queued", techID)
		}
	}

	entry, err := s.store.Enqueue(ctx, gameCivID, techID, len(queue)+1, tx)
	if err != nil {
		return nil, err
	}
	entry.TechName = technology.Name

	return entry, nil
}

func (s *Service) GetQueue(ctx context.Context, gameCivID int) ([]QueueEntry, error) {
	queue, err := s.store.GetQueue(ctx, gameCivID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get research queue: %w", err)
	}
	return queue, nil
}

func (s *Service) RemoveFromQueue(ctx context.Context, gameCivID, entryID int) error {
	err := s.store.RemoveQueueEntry(ctx, gameCivID, entryID, nil)
	if err == sql.ErrNoRows {
		return errors.NotFoundf("queue entry %d not found for civ %d", entryID, gameCivID)
	}
	return err
}

// GetStatus aggregates the research view: completed records, the in-progress
// record, the queue, and the technologies still open to research.
func (s *Service) GetStatus(ctx context.Context, gameCivID int) (*ResearchStatus, error) {
	return s.Overview(ctx, gameCivID, nil)
}

// Overview is the tx-aware form of GetStatus, used inside the turn
// transaction where uncommitted writes must be visible.
func (s *Service) Overview(ctx context.Context, gameCivID int, tx *database.Tx) (*ResearchStatus, error) {
	completed, err := s.store.GetRecordsByStatus(ctx, gameCivID, StateCompleted, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed research: %w", err)
	}

	inProgress, err := s.store.GetInProgress(ctx, gameCivID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get in-progress research: %w", err)
	}

	queue, err := s.store.GetQueue(ctx, gameCivID, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get research queue: %w", err)
	}

	all, err := s.store.GetTechnologies(ctx, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get technologies: %w", err)
	}

	taken := make(map[int]bool)
	for _, record := range completed {
		taken[record.TechnologyID] = true
	}
	if inProgress != nil {
		taken[inProgress.TechnologyID] = true
	}
	for _, entry := range queue {
		taken[entry.TechnologyID] = true
	}

	available := make([]Technology, 0, len(all))
	for _, t := range all {
		if !taken[t.ID] {
			available = append(available, t)
		}
	}

	return &ResearchStatus{
		Completed:  completed,
		InProgress: inProgress,
		Queue:      queue,
		Available:  available,
	}, nil
}

func (s *Service) GetTechnologies(ctx context.Context, era, treeType string) ([]Technology, error) {
	return s.store.GetTechnologies(ctx, era, treeType)
}

func (s *Service) GetTechnology(ctx context.Context, techID int) (*Technology, error) {
	technology, err := s.store.GetTechnologyByID(ctx, techID, nil)
	if err != nil {
		return nil, err
	}
	if technology == nil {
		return nil, errors.NotFoundf("technology %d not found", techID)
	}
	return technology, nil
}
