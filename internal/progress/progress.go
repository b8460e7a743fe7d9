// Package progress holds the two progress-tracking strategies used by the
// turn engine. Research and construction accumulate points against a cost;
// unit production counts remaining turns down. The two models are kept as
// separate named types on purpose: their semantics differ and unifying them
// would change observable behavior.
package progress

// unitProductionDivisor converts a city's production yield into per-turn
// countdown reduction.
const unitProductionDivisor = 8

// Points is the accumulation model: progress grows by the relevant yield each
// turn and the item completes once the required cost is reached.
type Points struct {
	Accumulated int
	Required    int
}

// Add applies one turn's worth of yield and reports whether the item is now
// complete.
func (p *Points) Add(amount int) bool {
	p.Accumulated += amount
	return p.Accumulated >= p.Required
}

// Done reports whether the accumulated points meet the requirement.
func (p Points) Done() bool {
	return p.Accumulated >= p.Required
}

// Countdown is the remaining-turns model used by unit production.
type Countdown struct {
	TurnsLeft int
}

// Reduce subtracts one turn's reduction and reports whether the countdown has
// finished.
func (c *Countdown) Reduce(amount int) bool {
	c.TurnsLeft -= amount
	return c.TurnsLeft <= 0
}

// ReductionFor converts a city's production yield into the number of turns
// removed from a unit countdown each turn. Every city always makes at least
// one turn of progress.
func ReductionFor(production int) int {
	reduction := production / unitProductionDivisor
	if reduction < 1 {
		return 1
	}
	return reduction
}
