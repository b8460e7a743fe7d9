package tech

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"civ-server/internal/civ"
	"civ-server/internal/shared/database"
	"civ-server/internal/shared/errors"
)

type fakeStore struct {
	techs   map[int]Technology
	records map[int]*CivTechnology
	queue   []QueueEntry
	nextID  int
}

func newFakeStore(techs ...Technology) *fakeStore {
	s := &fakeStore{
		techs:   make(map[int]Technology),
		records: make(map[int]*CivTechnology),
		nextID:  1,
	}
	for _, t := range techs {
		s.techs[t.ID] = t
	}
	return s
}

func (s *fakeStore) GetTechnologies(_ context.Context, era, treeType string) ([]Technology, error) {
	var out []Technology
	for _, t := range s.techs {
		if (era == "" || t.Era == era) && (treeType == "" || t.TreeType == treeType) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) GetTechnologyByID(_ context.Context, techID int, _ *database.Tx) (*Technology, error) {
	if t, ok := s.techs[techID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *fakeStore) GetInProgress(_ context.Context, gameCivID int, _ *database.Tx) (*CivTechnology, error) {
	for _, r := range s.records {
		if r.GameCivID == gameCivID && r.Status == StateInProgress {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetRecord(_ context.Context, gameCivID, techID int, _ *database.Tx) (*CivTechnology, error) {
	for _, r := range s.records {
		if r.GameCivID == gameCivID && r.TechnologyID == techID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetRecordsByStatus(_ context.Context, gameCivID int, status ResearchState, _ *database.Tx) ([]CivTechnology, error) {
	var out []CivTechnology
	for _, r := range s.records {
		if r.GameCivID == gameCivID && r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) StartResearch(_ context.Context, gameCivID, techID int, resetProgress bool, _ *database.Tx) error {
	now := time.Now()
	for _, r := range s.records {
		if r.GameCivID == gameCivID && r.TechnologyID == techID {
			r.Status = StateInProgress
			r.StartedAt = &now
			if resetProgress {
				r.ProgressPoints = 0
			}
			return nil
		}
	}
	t := s.techs[techID]
	s.records[s.nextID] = &CivTechnology{
		ID:             s.nextID,
		GameCivID:      gameCivID,
		TechnologyID:   techID,
		Status:         StateInProgress,
		StartedAt:      &now,
		TechName:       t.Name,
		ResearchCost:   t.ResearchCost,
	}
	s.nextID++
	return nil
}

func (s *fakeStore) SetProgress(_ context.Context, recordID, points int, _ *database.Tx) error {
	s.records[recordID].ProgressPoints = points
	return nil
}

func (s *fakeStore) CompleteRecord(_ context.Context, recordID, points int, _ *database.Tx) error {
	now := time.Now()
	r := s.records[recordID]
	r.Status = StateCompleted
	r.ProgressPoints = points
	r.CompletedAt = &now
	return nil
}

func (s *fakeStore) CancelResearch(_ context.Context, recordID int, _ *database.Tx) error {
	s.records[recordID].Status = StateAvailable
	s.records[recordID].StartedAt = nil
	return nil
}

func (s *fakeStore) GetQueue(_ context.Context, gameCivID int, _ *database.Tx) ([]QueueEntry, error) {
	var out []QueueEntry
	for _, e := range s.queue {
		if e.GameCivID == gameCivID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) Enqueue(_ context.Context, gameCivID, techID, position int, _ *database.Tx) (*QueueEntry, error) {
	e := QueueEntry{ID: s.nextID, GameCivID: gameCivID, TechnologyID: techID, Position: position}
	s.nextID++
	s.queue = append(s.queue, e)
	return &e, nil
}

func (s *fakeStore) RemoveQueueEntry(_ context.Context, gameCivID, entryID int, _ *database.Tx) error {
	removedPos := -1
	for i, e := range s.queue {
		if e.ID == entryID && e.GameCivID == gameCivID {
			removedPos = e.Position
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	if removedPos == -1 {
		return sql.ErrNoRows
	}
	for i := range s.queue {
		if s.queue[i].GameCivID == gameCivID && s.queue[i].Position > removedPos {
			s.queue[i].Position--
		}
	}
	return nil
}

type fakeCivs struct {
	science int
}

func (f *fakeCivs) GetGameCivByID(_ context.Context, gameCivID int, _ *database.Tx) (*civ.GameCiv, error) {
	return &civ.GameCiv{ID: gameCivID, Science: f.science}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdvanceResearchAccumulatesAndCompletes(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		Technology{ID: 1, Name: "Writing", ResearchCost: 25},
		Technology{ID: 2, Name: "Currency", ResearchCost: 40},
	)
	svc := NewService(store, &fakeCivs{science: 10}, 3, testLogger())

	if _, err := svc.StartResearch(ctx, 7, 1, nil); err != nil {
		t.Fatalf("StartResearch: %v", err)
	}
	if _, err := svc.AddToQueue(ctx, 7, 2, nil); err != nil {
		t.Fatalf("AddToQueue: %v", err)
	}

	// 10, 20, 30 >= 25: completes on the third turn
	for turn := 1; turn <= 2; turn++ {
		if err := svc.AdvanceResearch(ctx, 7, nil); err != nil {
			t.Fatalf("AdvanceResearch turn %d: %v", turn, err)
		}
	}
	current, _ := store.GetInProgress(ctx, 7, nil)
	if current == nil || current.ProgressPoints != 20 {
		t.Fatalf("after 2 turns in-progress = %+v, want progress 20", current)
	}

	if err := svc.AdvanceResearch(ctx, 7, nil); err != nil {
		t.Fatalf("AdvanceResearch turn 3: %v", err)
	}

	record, _ := store.GetRecord(ctx, 7, 1, nil)
	if record.Status != StateCompleted {
		t.Errorf("tech 1 status = %s, want completed", record.Status)
	}

	// Queue head promoted with progress reset to zero
	current, _ = store.GetInProgress(ctx, 7, nil)
	if current == nil || current.TechnologyID != 2 {
		t.Fatalf("in-progress after completion = %+v, want tech 2", current)
	}
	if current.ProgressPoints != 0 {
		t.Errorf("promoted progress = %d, want 0", current.ProgressPoints)
	}

	queue, _ := store.GetQueue(ctx, 7, nil)
	if len(queue) != 0 {
		t.Errorf("queue length after promotion = %d, want 0", len(queue))
	}
}

func TestAdvanceResearchIdleWithEmptyQueue(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(Technology{ID: 1, Name: "Writing", ResearchCost: 25})
	svc := NewService(store, &fakeCivs{science: 10}, 3, testLogger())

	if err := svc.AdvanceResearch(ctx, 7, nil); err != nil {
		t.Fatalf("AdvanceResearch with nothing active: %v", err)
	}
}

func TestAdvanceResearchPullsQueueHeadWhenIdle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(Technology{ID: 1, Name: "Writing", ResearchCost: 25})
	svc := NewService(store, &fakeCivs{science: 10}, 3, testLogger())

	if _, err := svc.AddToQueue(ctx, 7, 1, nil); err != nil {
		t.Fatalf("AddToQueue: %v", err)
	}

	if err := svc.AdvanceResearch(ctx, 7, nil); err != nil {
		t.Fatalf("AdvanceResearch: %v", err)
	}

	// Pulled from the queue and accumulated this turn's science
	current, _ := store.GetInProgress(ctx, 7, nil)
	if current == nil || current.TechnologyID != 1 {
		t.Fatalf("in-progress = %+v, want tech 1", current)
	}
	if current.ProgressPoints != 10 {
		t.Errorf("progress = %d, want 10", current.ProgressPoints)
	}
}

func TestStartResearchRoutesToQueueWhenBusy(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		Technology{ID: 1, Name: "Writing", ResearchCost: 25},
		Technology{ID: 2, Name: "Currency", ResearchCost: 40},
	)
	svc := NewService(store, &fakeCivs{science: 10}, 3, testLogger())

	queued, err := svc.StartResearch(ctx, 7, 1, nil)
	if err != nil || queued {
		t.Fatalf("first StartResearch: queued=%v err=%v", queued, err)
	}

	queued, err = svc.StartResearch(ctx, 7, 2, nil)
	if err != nil {
		t.Fatalf("second StartResearch: %v", err)
	}
	if !queued {
		t.Error("second StartResearch should route to the queue")
	}

	queue, _ := store.GetQueue(ctx, 7, nil)
	if len(queue) != 1 || queue[0].TechnologyID != 2 {
		t.Errorf("queue = %+v, want single entry for tech 2", queue)
	}
}

func TestStartResearchConflictOnCompleted(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(Technology{ID: 1, Name: "Writing", ResearchCost: 25})
	svc := NewService(store, &fakeCivs{science: 30}, 3, testLogger())

	if _, err := svc.StartResearch(ctx, 7, 1, nil); err != nil {
		t.Fatalf("StartResearch: %v", err)
	}
	if err := svc.AdvanceResearch(ctx, 7, nil); err != nil {
		t.Fatalf("AdvanceResearch: %v", err)
	}

	_, err := svc.StartResearch(ctx, 7, 1, nil)
	if errors.GetType(err) != errors.ErrorTypeConflict {
		t.Errorf("restarting completed tech: error type = %v, want conflict", errors.GetType(err))
	}
}

func TestQueueCapEnforced(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		Technology{ID: 1, ResearchCost: 10},
		Technology{ID: 2, ResearchCost: 10},
		Technology{ID: 3, ResearchCost: 10},
		Technology{ID: 4, ResearchCost: 10},
	)
	svc := NewService(store, &fakeCivs{science: 1}, 3, testLogger())

	for _, techID := range []int{1, 2, 3} {
		if _, err := svc.AddToQueue(ctx, 7, techID, nil); err != nil {
			t.Fatalf("AddToQueue(%d): %v", techID, err)
		}
	}

	_, err := svc.AddToQueue(ctx, 7, 4, nil)
	if errors.GetType(err) != errors.ErrorTypeConflict {
		t.Errorf("queue overflow: error type = %v, want conflict", errors.GetType(err))
	}
}

func TestCancelKeepsPointsAndResumes(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(Technology{ID: 1, Name: "Writing", ResearchCost: 100})
	svc := NewService(store, &fakeCivs{science: 10}, 3, testLogger())

	if _, err := svc.StartResearch(ctx, 7, 1, nil); err != nil {
		t.Fatalf("StartResearch: %v", err)
	}
	if err := svc.AdvanceResearch(ctx, 7, nil); err != nil {
		t.Fatalf("AdvanceResearch: %v", err)
	}

	if err := svc.CancelResearch(ctx, 7); err != nil {
		t.Fatalf("CancelResearch: %v", err)
	}

	record, _ := store.GetRecord(ctx, 7, 1, nil)
	if record.Status != StateAvailable {
		t.Errorf("canceled status = %s, want available", record.Status)
	}
	if record.ProgressPoints != 10 {
		t.Errorf("canceled progress = %d, want 10 kept", record.ProgressPoints)
	}

	if _, err := svc.StartResearch(ctx, 7, 1, nil); err != nil {
		t.Fatalf("resume StartResearch: %v", err)
	}
	record, _ = store.GetRecord(ctx, 7, 1, nil)
	if record.ProgressPoints != 10 {
		t.Errorf("resumed progress = %d, want 10", record.ProgressPoints)
	}
}

func TestQueueRemovalRedensifies(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		Technology{ID: 1, ResearchCost: 10},
		Technology{ID: 2, ResearchCost: 10},
		Technology{ID: 3, ResearchCost: 10},
		Technology{ID: 4, ResearchCost: 10},
	)
	svc := NewService(store, &fakeCivs{science: 1}, 10, testLogger())

	var entries []*QueueEntry
	for _, techID := range []int{1, 2, 3, 4} {
		e, err := svc.AddToQueue(ctx, 7, techID, nil)
		if err != nil {
			t.Fatalf("AddToQueue(%d): %v", techID, err)
		}
		entries = append(entries, e)
	}

	// Remove position 2 of 4: positions 3,4 become 2,3
	if err := svc.RemoveFromQueue(ctx, 7, entries[1].ID); err != nil {
		t.Fatalf("RemoveFromQueue: %v", err)
	}

	queue, _ := store.GetQueue(ctx, 7, nil)
	if len(queue) != 3 {
		t.Fatalf("queue length = %d, want 3", len(queue))
	}
	for i, e := range queue {
		if e.Position != i+1 {
			t.Errorf("queue[%d].Position = %d, want %d", i, e.Position, i+1)
		}
	}
}
