package unit

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"civ-server/internal/city"
	"civ-server/internal/shared/database"
)

type fakeStore struct {
	types  map[int]UnitType
	units  []GameUnit
	queue  []QueueEntry
	nextID int
}

func newFakeStore(types ...UnitType) *fakeStore {
	s := &fakeStore{
		types:  make(map[int]UnitType),
		nextID: 1,
	}
	for _, ut := range types {
		s.types[ut.ID] = ut
	}
	return s
}

func (s *fakeStore) GetUnitTypes(_ context.Context, category, era string) ([]UnitType, error) {
	var out []UnitType
	for _, ut := range s.types {
		if (category == "" || ut.Category == category) && (era == "" || ut.Era == era) {
			out = append(out, ut)
		}
	}
	return out, nil
}

func (s *fakeStore) GetUnitTypeByID(_ context.Context, unitTypeID int, _ *database.Tx) (*UnitType, error) {
	if ut, ok := s.types[unitTypeID]; ok {
		return &ut, nil
	}
	return nil, nil
}

func (s *fakeStore) CreateUnit(_ context.Context, gameCivID, unitTypeID, q, r, hp, createdTurn int, _ *database.Tx) (*GameUnit, error) {
	u := GameUnit{
		ID:          s.nextID,
		GameCivID:   gameCivID,
		UnitTypeID:  unitTypeID,
		Q:           q,
		R:           r,
		HP:          hp,
		CreatedTurn: createdTurn,
	}
	s.nextID++
	s.units = append(s.units, u)
	return &u, nil
}

func (s *fakeStore) GetUnitsByCiv(_ context.Context, gameCivID int, _ *database.Tx) ([]GameUnit, error) {
	var out []GameUnit
	for _, u := range s.units {
		if u.GameCivID == gameCivID {
			out = append(out, u)
		}
	}
	return out, nil
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

func (s *fakeStore) Enqueue(_ context.Context, cityID, unitTypeID, turnsLeft, position int, _ *database.Tx) (*QueueEntry, error) {
	e := QueueEntry{ID: s.nextID, CityID: cityID, UnitTypeID: unitTypeID, TurnsLeft: turnsLeft, Position: position}
	s.nextID++
	s.queue = append(s.queue, e)
	return &e, nil
}

func (s *fakeStore) SetTurnsLeft(_ context.Context, entryID, turnsLeft int, _ *database.Tx) error {
	for i := range s.queue {
		if s.queue[i].ID == entryID {
			s.queue[i].TurnsLeft = turnsLeft
		}
	}
	return nil
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
	city city.City
}

func (f *fakeCities) GetCityByID(_ context.Context, cityID int, _ *database.Tx) (*city.City, error) {
	c := f.city
	c.ID = cityID
	return &c, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdvanceProductionCountdown(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(UnitType{ID: 1, Name: "Warrior", BuildTurns: 10, BaseHP: 100})
	cities := &fakeCities{city: city.City{GameCivID: 5, Q: 2, R: -1, Production: 16}}
	svc := NewService(store, cities, testLogger())

	if _, err := svc.QueueProduction(ctx, 3, 1, nil); err != nil {
		t.Fatalf("QueueProduction: %v", err)
	}

	// production=16 -> reduction 2: 10 turns-left completes after 5 turns
	for turn := 1; turn <= 4; turn++ {
		if err := svc.AdvanceProduction(ctx, 3, turn, nil); err != nil {
			t.Fatalf("AdvanceProduction turn %d: %v", turn, err)
		}
		if len(store.units) != 0 {
			t.Fatalf("unit instantiated after %d turns, want 5", turn)
		}
	}

	if err := svc.AdvanceProduction(ctx, 3, 5, nil); err != nil {
		t.Fatalf("AdvanceProduction turn 5: %v", err)
	}

	if len(store.units) != 1 {
		t.Fatalf("units created = %d, want 1", len(store.units))
	}

	u := store.units[0]
	if u.GameCivID != 5 {
		t.Errorf("unit owner = %d, want 5", u.GameCivID)
	}
	if u.Q != 2 || u.R != -1 {
		t.Errorf("unit at (%d,%d), want city coordinates (2,-1)", u.Q, u.R)
	}
	if u.HP != 100 {
		t.Errorf("unit hp = %d, want base hp 100", u.HP)
	}
	if u.CreatedTurn != 5 {
		t.Errorf("created turn = %d, want 5", u.CreatedTurn)
	}

	queue, _ := store.GetQueue(ctx, 3, nil)
	if len(queue) != 0 {
		t.Errorf("queue length = %d, want 0", len(queue))
	}
}

func TestAdvanceProductionMinimumReduction(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(UnitType{ID: 1, Name: "Warrior", BuildTurns: 3, BaseHP: 100})
	cities := &fakeCities{city: city.City{GameCivID: 5, Production: 0}}
	svc := NewService(store, cities, testLogger())

	if _, err := svc.QueueProduction(ctx, 3, 1, nil); err != nil {
		t.Fatalf("QueueProduction: %v", err)
	}

	// Zero production still makes one turn of progress per turn
	for turn := 1; turn <= 3; turn++ {
		if err := svc.AdvanceProduction(ctx, 3, turn, nil); err != nil {
			t.Fatalf("AdvanceProduction turn %d: %v", turn, err)
		}
	}

	if len(store.units) != 1 {
		t.Errorf("units created = %d, want 1 after 3 turns", len(store.units))
	}
}

func TestAdvanceProductionEmptyQueue(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, &fakeCities{}, testLogger())

	if err := svc.AdvanceProduction(ctx, 3, 1, nil); err != nil {
		t.Fatalf("AdvanceProduction with empty queue: %v", err)
	}
}

func TestProductionQueueRedensifies(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		UnitType{ID: 1, BuildTurns: 5},
		UnitType{ID: 2, BuildTurns: 5},
		UnitType{ID: 3, BuildTurns: 5},
	)
	cities := &fakeCities{city: city.City{GameCivID: 5, Production: 8}}
	svc := NewService(store, cities, testLogger())

	var entries []*QueueEntry
	for _, id := range []int{1, 2, 3} {
		e, err := svc.QueueProduction(ctx, 3, id, nil)
		if err != nil {
			t.Fatalf("QueueProduction(%d): %v", id, err)
		}
		entries = append(entries, e)
	}

	if err := svc.RemoveFromQueue(ctx, 3, entries[1].ID); err != nil {
		t.Fatalf("RemoveFromQueue: %v", err)
	}

	queue, _ := store.GetQueue(ctx, 3, nil)
	for i, e := range queue {
		if e.Position != i+1 {
			t.Errorf("queue[%d].Position = %d, want %d", i, e.Position, i+1)
		}
	}
}
