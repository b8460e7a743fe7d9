package turn

import (
	"context"
	"log/slog"

	"civ-server/internal/city"
	"civ-server/internal/civ"
	"civ-server/internal/shared/database"
	"civ-server/internal/unit"
)

// ClientState is the optional end-turn payload: the client's view of mutable
// per-entity state. Civilization resources are never accepted from the
// client; the ledger is the only writer.
type ClientState struct {
	Cities []CityState `json:"cities"`
	Units  []UnitState `json:"units"`
}

type CityState struct {
	ID         int `json:"id"`
	Population int `json:"population"`
}

type UnitState struct {
	ID int `json:"id"`
	Q  int `json:"q"`
	R  int `json:"r"`
	HP int `json:"hp"`
}

type ReconcileCityStore interface {
	GetCitiesByGame(ctx context.Context, gameID int, tx *database.Tx) ([]city.City, error)
	UpdatePopulation(ctx context.Context, cityID, population int, tx *database.Tx) error
}

type ReconcileUnitStore interface {
	GetUnitsByCiv(ctx context.Context, gameCivID int, tx *database.Tx) ([]unit.GameUnit, error)
	UpdateUnitState(ctx context.Context, unitID, q, r, hp int, tx *database.Tx) error
}

// Reconciler merges a validated subset of client-reported state before the
// turn resolves. Entries referencing entities outside the game are skipped,
// never failed: a stale client must not block turn advancement.
type Reconciler struct {
	cities ReconcileCityStore
	units  ReconcileUnitStore
	logger *slog.Logger
}

func NewReconciler(cities ReconcileCityStore, units ReconcileUnitStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		cities: cities,
		units:  units,
		logger: logger,
	}
}

func (r *Reconciler) Apply(ctx context.Context, gameID int, gameCivs []civ.GameCiv, state *ClientState, tx *database.Tx) error {
	if state == nil || (len(state.Cities) == 0 && len(state.Units) == 0) {
		return nil
	}

	logger := r.logger.With("component", "reconciler", "operation", "apply", "game_id", gameID)

	if len(state.Cities) > 0 {
		known := make(map[int]bool)
		cities, err := r.cities.GetCitiesByGame(ctx, gameID, tx)
		if err != nil {
			return err
		}
		for _, c := range cities {
			known[c.ID] = true
		}

		for _, cs := range state.Cities {
			if !known[cs.ID] {
				logger.Warn("Skipping reported state for unknown city", "city_id", cs.ID)
				continue
			}
			population := cs.Population
			if population < 1 {
				population = 1
			}
			if err := r.cities.UpdatePopulation(ctx, cs.ID, population, tx); err != nil {
				return err
			}
		}
	}

	if len(state.Units) > 0 {
		known := make(map[int]unit.GameUnit)
		for _, gc := range gameCivs {
			units, err := r.units.GetUnitsByCiv(ctx, gc.ID, tx)
			if err != nil {
				return err
			}
			for _, u := range units {
				known[u.ID] = u
			}
		}

		for _, us := range state.Units {
			existing, ok := known[us.ID]
			if !ok {
				logger.Warn("Skipping reported state for unknown unit", "unit_id", us.ID)
				continue
			}

			hp := us.HP
			if hp < 0 {
				hp = 0
			}
			if hp > existing.BaseHP {
				hp = existing.BaseHP
			}

			if err := r.units.UpdateUnitState(ctx, us.ID, us.Q, us.R, hp, tx); err != nil {
				return err
			}
		}
	}

	return nil
}
