package turn

// Era names in chronological order. A game starts in the Medieval era and
// moves forward on fixed turn boundaries.
const (
	EraMedieval   = "Medieval"
	EraIndustrial = "Industrial"
	EraModern     = "Modern"
)

// The calendar starts at year 1000 and slows down as the game progresses:
// 50 years per turn through turn 11, 25 through turn 21, 10 after that.
const (
	baseYear = 1000

	earlyYearsPerTurn = 50
	midYearsPerTurn   = 25
	lateYearsPerTurn  = 10

	earlyLastTurn = 11
	midLastTurn   = 21
)

// YearFor returns the calendar year a game displays on the given turn.
func YearFor(turn int) int {
	if turn < 1 {
		turn = 1
	}

	switch {
	case turn <= earlyLastTurn:
		return baseYear + (turn-1)*earlyYearsPerTurn
	case turn <= midLastTurn:
		return YearFor(earlyLastTurn) + (turn-earlyLastTurn)*midYearsPerTurn
	default:
		return YearFor(midLastTurn) + (turn-midLastTurn)*lateYearsPerTurn
	}
}

// EraFor returns the era for the given turn: Medieval for turns 1-10,
// Industrial for 11-20, Modern from 21 on.
func EraFor(turn int) string {
	switch {
	case turn <= 10:
		return EraMedieval
	case turn <= 20:
		return EraIndustrial
	default:
		return EraModern
	}
}
