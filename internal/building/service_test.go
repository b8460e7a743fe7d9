package building

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"civ-server/internal/city"
	"civ-server/internal/shared/database"
	"civ-server/internal/shared/errors"
)

type fakeStore struct {
	buildings map[int]Building
	records   map[int]*PlayerBuilding
	queue     []QueueEntry
	nextID    int
}

func newFakeStore(buildings ...Building) *fakeStore {
	s := &fakeStore{
		buildings: make(map[int]Building),
		records:   make(map[int]*PlayerBuilding),
		nextID:    1,
	}
	for _, b := range buildings {
		s.buildings[b.ID] = b
	}
	return s
}

func (s *fakeStore) GetBuildings(_ context.Context, category string) ([]Building, error) {
	var out []Building
	for _, b := range s.buildings {
		if category == "" || b.Category == category {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) GetBuildingByID(_ context.Context, buildingID int, _ *database.Tx) (*Building, error) {
	if b, ok := s.buildings[buildingID]; ok {
		return &b, nil
	}
	return nil, nil
}

func (s *fakeStore) GetInProgress(_ context.Context, cityID int, _ *database.Tx) (*PlayerBuilding, error) {
	for _, r := range s.records {
		if r.CityID == cityID && r.Status == StateInProgress {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetByCity(_ context.Context, cityID int, _ *database.Tx) ([]PlayerBuilding, error) {
	var out []PlayerBuilding
	for _, r := range s.records {
		if r.CityID == cityID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) GetRecord(_ context.Context, cityID, buildingID int, _ *database.Tx) (*PlayerBuilding, error) {
	for _, r := range s.records {
		if r.CityID == cityID && r.BuildingID == buildingID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) StartConstruction(_ context.Context, cityID, buildingID int, resetProgress bool, _ *database.Tx) error {
	now := time.Now()
	for _, r := range s.records {
		if r.CityID == cityID && r.BuildingID == buildingID {
			r.Status = StateInProgress
			r.StartedAt = &now
			if resetProgress {
				r.ProgressPoints = 0
			}
			return nil
		}
	}
	b := s.buildings[buildingID]
	s.records[s.nextID] = &PlayerBuilding{
		ID:           s.nextID,
		CityID:       cityID,
		BuildingID:   buildingID,
		Status:       StateInProgress,
		StartedAt:    &now,
		BuildingName: b.Name,
		Category:     b.Category,
		BuildTime:    b.BuildTime,
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

func (s *fakeStore) CancelConstruction(_ context.Context, recordID int, _ *database.Tx) error {
	delete(s.records, recordID)
	return nil
}

func (s *fakeStore) GetQueue(_ context.Context, cityID int, _ *database.Tx) ([]QueueEntry, error) {
	var out []QueueEntry
	for _, e := range s.queue {
		if e.CityID == cityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) Enqueue(_ context.Context, cityID, buildingID, position int, _ *database.Tx) (*QueueEntry, error) {
	e := QueueEntry{ID: s.nextID, CityID: cityID, BuildingID: buildingID, Position: position}
	s.nextID++
	s.queue = append(s.queue, e)
	return &e, nil
}

func (s *fakeStore) RemoveQueueEntry(_ context.Context, cityID, entryID int, _ *database.Tx) error {
	removedPos := -1
	for i, e := range s.queue {
		if e.ID == entryID && e.CityID == cityID {
			removedPos = e.Position
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	if removedPos == -1 {
		return sql.ErrNoRows
	}
	for i := range s.queue {
		if s.queue[i].CityID == cityID && s.queue[i].Position > removedPos {
			s.queue[i].Position--
		}
	}
	return nil
}

type fakeCities struct {
	production int
}

func (f *fakeCities) GetCityByID(_ context.Context, cityID int, _ *database.Tx) (*city.City, error) {
	return &city.City{ID: cityID, Production: f.production}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdvanceConstructionCompletesInThreeTurns(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(Building{ID: 1, Name: "Workshop", Category: "Production", BuildTime: 24})
	svc := NewService(store, &fakeCities{production: 8}, testLogger())

	if _, err := svc.StartConstruction(ctx, 3, 1, nil); err != nil {
		t.Fatalf("StartConstruction: %v", err)
	}

	// production=8 against buildTime=24: completes on the third turn
	for turn := 1; turn <= 3; turn++ {
		if err := svc.AdvanceConstruction(ctx, 3, nil); err != nil {
			t.Fatalf("AdvanceConstruction turn %d: %v", turn, err)
		}
	}

	record, _ := store.GetRecord(ctx, 3, 1, nil)
	if record.Status != StateCompleted {
		t.Errorf("status after 3 turns = %s, want completed", record.Status)
	}
	if record.ProgressPoints != 24 {
		t.Errorf("progress = %d, want 24", record.ProgressPoints)
	}
}

func TestAdvanceConstructionPromotesQueueOnCompletion(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		Building{ID: 1, Name: "Workshop", BuildTime: 8},
		Building{ID: 2, Name: "Library", BuildTime: 20},
	)
	svc := NewService(store, &fakeCities{production: 8}, testLogger())

	if _, err := svc.StartConstruction(ctx, 3, 1, nil); err != nil {
		t.Fatalf("StartConstruction: %v", err)
	}
	if _, err := svc.AddToQueue(ctx, 3, 2, nil); err != nil {
		t.Fatalf("AddToQueue: %v", err)
	}

	if err := svc.AdvanceConstruction(ctx, 3, nil); err != nil {
		t.Fatalf("AdvanceConstruction: %v", err)
	}

	current, _ := store.GetInProgress(ctx, 3, nil)
	if current == nil || current.BuildingID != 2 {
		t.Fatalf("in-progress after completion = %+v, want building 2", current)
	}
	if current.ProgressPoints != 0 {
		t.Errorf("promoted progress = %d, want 0", current.ProgressPoints)
	}

	queue, _ := store.GetQueue(ctx, 3, nil)
	if len(queue) != 0 {
		t.Errorf("queue length = %d, want 0", len(queue))
	}
}

func TestStartConstructionRoutesToQueueWhenBusy(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		Building{ID: 1, Name: "Workshop", BuildTime: 24},
		Building{ID: 2, Name: "Library", BuildTime: 20},
	)
	svc := NewService(store, &fakeCities{production: 8}, testLogger())

	queued, err := svc.StartConstruction(ctx, 3, 1, nil)
	if err != nil || queued {
		t.Fatalf("first StartConstruction: queued=%v err=%v", queued, err)
	}

	queued, err = svc.StartConstruction(ctx, 3, 2, nil)
	if err != nil {
		t.Fatalf("second StartConstruction: %v", err)
	}
	if !queued {
		t.Error("second StartConstruction should route to the queue")
	}
}

func TestStartConstructionConflictOnCompleted(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(Building{ID: 1, Name: "Workshop", BuildTime: 8})
	svc := NewService(store, &fakeCities{production: 8}, testLogger())

	if _, err := svc.StartConstruction(ctx, 3, 1, nil); err != nil {
		t.Fatalf("StartConstruction: %v", err)
	}
	if err := svc.AdvanceConstruction(ctx, 3, nil); err != nil {
		t.Fatalf("AdvanceConstruction: %v", err)
	}

	_, err := svc.StartConstruction(ctx, 3, 1, nil)
	if errors.GetType(err) != errors.ErrorTypeConflict {
		t.Errorf("rebuilding completed building: error type = %v, want conflict", errors.GetType(err))
	}
}

func TestSingleInProgressInvariant(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		Building{ID: 1, BuildTime: 100},
		Building{ID: 2, BuildTime: 100},
		Building{ID: 3, BuildTime: 100},
	)
	svc := NewService(store, &fakeCities{production: 8}, testLogger())

	for _, id := range []int{1, 2, 3} {
		if _, err := svc.StartConstruction(ctx, 3, id, nil); err != nil {
			t.Fatalf("StartConstruction(%d): %v", id, err)
		}
	}
	if err := svc.AdvanceConstruction(ctx, 3, nil); err != nil {
		t.Fatalf("AdvanceConstruction: %v", err)
	}

	inProgress := 0
	for _, r := range store.records {
		if r.CityID == 3 && r.Status == StateInProgress {
			inProgress++
		}
	}
	if inProgress != 1 {
		t.Errorf("in-progress rows = %d, want 1", inProgress)
	}
}
