package turn

import "testing"

func TestYearFor(t *testing.T) {
	tests := []struct {
		turn int
		want int
	}{
		{1, 1000},
		{2, 1050},
		{10, 1450},
		{11, 1500},
		{12, 1525},
		{20, 1725},
		{21, 1750},
		{22, 1760},
		{30, 1840},
	}

	for _, tt := range tests {
		if got := YearFor(tt.turn); got != tt.want {
			t.Errorf("YearFor(%d) = %d, want %d", tt.turn, got, tt.want)
		}
	}
}

func TestEraFor(t *testing.T) {
	tests := []struct {
		turn int
		want string
	}{
		{1, EraMedieval},
		{10, EraMedieval},
		{11, EraIndustrial},
		{20, EraIndustrial},
		{21, EraModern},
		{50, EraModern},
	}

	for _, tt := range tests {
		if got := EraFor(tt.turn); got != tt.want {
			t.Errorf("EraFor(%d) = %q, want %q", tt.turn, got, tt.want)
		}
	}
}
