package ai

import (
	"context"
	"math/rand"
)

// RandomProvider is the reference decision policy: uniform choices over the
// eligible lists. A fixed seed makes it deterministic, which both tests and
// the LLM fallback path rely on.
type RandomProvider struct {
	rng *rand.Rand
}

func NewRandomProvider(seed int64) *RandomProvider {
	return &RandomProvider{
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (p *RandomProvider) Decisions(_ context.Context, snap *Snapshot, _ int) (*DecisionSet, error) {
	decisions := &DecisionSet{}

	for _, c := range snap.Cities {
		if c.Busy {
			continue
		}

		choice := p.pickBuild(c)
		if choice == nil {
			continue
		}
		decisions.Cities = append(decisions.Cities, CityDecision{
			CityID: c.CityID,
			Build:  choice,
		})
	}

	if !snap.ResearchActive && len(snap.EligibleTechs) > 0 {
		techID := snap.EligibleTechs[p.rng.Intn(len(snap.EligibleTechs))]
		decisions.ResearchTechID = &techID
	}

	return decisions, nil
}

// pickBuild flips between a building and a unit when both are on offer, and
// takes whichever list is non-empty otherwise.
func (p *RandomProvider) pickBuild(c CitySnapshot) *BuildChoice {
	hasBuildings := len(c.EligibleBuildings) > 0
	hasUnits := len(c.EligibleUnits) > 0

	switch {
	case !hasBuildings && !hasUnits:
		return nil
	case hasBuildings && (!hasUnits || p.rng.Intn(2) == 0):
		return &BuildChoice{
			Kind: BuildKindBuilding,
			ID:   c.EligibleBuildings[p.rng.Intn(len(c.EligibleBuildings))],
		}
	default:
		return &BuildChoice{
			Kind: BuildKindUnit,
			ID:   c.EligibleUnits[p.rng.Intn(len(c.EligibleUnits))],
		}
	}
}
