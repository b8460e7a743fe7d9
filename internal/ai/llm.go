package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"civ-server/internal/llm"
)

const decisionSystemPrompt = `You are the strategic advisor for a civilization in a turn-based strategy game.
You receive a JSON snapshot of the civilization: its resources, its cities, and
the buildings, units, and technologies it may start. Reply with ONLY a JSON
object of this shape, no prose:
{"cities":[{"city_id":1,"build":{"kind":"building","id":3}}],"research_tech_id":2}
Rules: pick ids only from the eligible lists; skip busy cities; set
"research_tech_id" to null when research is already active.`

// LLMProvider asks the configured language model for decisions. Anything
// off-script — transport errors, malformed JSON, ids outside the eligible
// lists — is an error so the engine falls back to the random provider.
type LLMProvider struct {
	client *llm.Client
}

func NewLLMProvider(client *llm.Client) *LLMProvider {
	return &LLMProvider{client: client}
}

func (p *LLMProvider) Decisions(ctx context.Context, snap *Snapshot, turn int) (*DecisionSet, error) {
	if !p.client.Enabled() {
		return nil, fmt.Errorf("LLM provider not configured")
	}

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	prompt := fmt.Sprintf("Turn %d. Civilization snapshot:\n%s", turn, snapJSON)

	text, err := p.client.Complete(ctx, decisionSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM decision call failed: %w", err)
	}

	decisions, err := parseDecisions(text)
	if err != nil {
		return nil, err
	}

	if err := validateDecisions(decisions, snap); err != nil {
		return nil, err
	}

	return decisions, nil
}

// parseDecisions tolerates markdown fences around the JSON but nothing else.
func parseDecisions(text string) (*DecisionSet, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var decisions DecisionSet
	if err := json.Unmarshal([]byte(text), &decisions); err != nil {
		return nil, fmt.Errorf("unparseable decision response: %w", err)
	}
	return &decisions, nil
}

// validateDecisions rejects any answer that strays outside the snapshot's
// eligible lists. The whole set is discarded on the first bad entry; the
// fallback provider produces a complete replacement.
func validateDecisions(decisions *DecisionSet, snap *Snapshot) error {
	cities := make(map[int]CitySnapshot, len(snap.Cities))
	for _, c := range snap.Cities {
		cities[c.CityID] = c
	}

	for _, d := range decisions.Cities {
		c, ok := cities[d.CityID]
		if !ok {
			return fmt.Errorf("decision for unknown city %d", d.CityID)
		}
		if c.Busy {
			return fmt.Errorf("decision for busy city %d", d.CityID)
		}
		if d.Build == nil {
			continue
		}

		switch d.Build.Kind {
		case BuildKindBuilding:
			if !containsID(c.EligibleBuildings, d.Build.ID) {
				return fmt.Errorf("building %d not eligible for city %d", d.Build.ID, d.CityID)
			}
		case BuildKindUnit:
			if !containsID(c.EligibleUnits, d.Build.ID) {
				return fmt.Errorf("unit %d not eligible for city %d", d.Build.ID, d.CityID)
			}
		default:
			return fmt.Errorf("unknown build kind %q", d.Build.Kind)
		}
	}

	if decisions.ResearchTechID != nil {
		if snap.ResearchActive {
			return fmt.Errorf("research decision while research is active")
		}
		if !containsID(snap.EligibleTechs, *decisions.ResearchTechID) {
			return fmt.Errorf("technology %d not eligible", *decisions.ResearchTechID)
		}
	}

	return nil
}

func containsID(ids []int, id int) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
