package progress

import "testing"

func TestPointsAdd(t *testing.T) {
	// production=8 against buildTime=24 completes in exactly 3 turns
	p := Points{Accumulated: 0, Required: 24}

	if p.Add(8) {
		t.Error("completed after 1 turn, want 3")
	}
	if p.Add(8) {
		t.Error("completed after 2 turns, want 3")
	}
	if !p.Add(8) {
		t.Error("not complete after 3 turns of 8 against 24")
	}
	if p.Accumulated != 24 {
		t.Errorf("accumulated = %d, want 24", p.Accumulated)
	}
}

func TestPointsOvershoot(t *testing.T) {
	// science=10 against researchCost=25: 10, 20, 30 -> completes turn 3
	p := Points{Required: 25}

	turns := 0
	for !p.Done() {
		p.Add(10)
		turns++
	}

	if turns != 3 {
		t.Errorf("completed in %d turns, want 3", turns)
	}
	if p.Accumulated != 30 {
		t.Errorf("accumulated = %d, want 30", p.Accumulated)
	}
}

func TestCountdownReduce(t *testing.T) {
	// buildTime=10 turns, production=16 -> reduction 2 -> 5 turns
	c := Countdown{TurnsLeft: 10}
	reduction := ReductionFor(16)

	if reduction != 2 {
		t.Fatalf("ReductionFor(16) = %d, want 2", reduction)
	}

	turns := 0
	done := false
	for !done {
		done = c.Reduce(reduction)
		turns++
	}

	if turns != 5 {
		t.Errorf("completed in %d turns, want 5", turns)
	}
}

func TestReductionFor(t *testing.T) {
	tests := []struct {
		production int
		want       int
	}{
		{0, 1},
		{7, 1},
		{8, 1},
		{15, 1},
		{16, 2},
		{80, 10},
	}

	for _, tt := range tests {
		if got := ReductionFor(tt.production); got != tt.want {
			t.Errorf("ReductionFor(%d) = %d, want %d", tt.production, got, tt.want)
		}
	}
}
