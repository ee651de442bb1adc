package strength

import "testing"

func TestEstimateOneRepMax(t *testing.T) {
	tests := []struct {
		weight float64
		reps   int
		want   float64
	}{
		{100, 1, 100},
		{102.35, 1, 102.35},
		{100, 5, 116.7},
		{100, 10, 133.3},
		{80, 8, 101.3},
		{0, 5, 0},
	}
	for _, tt := range tests {
		if got := EstimateOneRepMax(tt.weight, tt.reps); got != tt.want {
			t.Errorf("EstimateOneRepMax(%v, %d) = %v, want %v", tt.weight, tt.reps, got, tt.want)
		}
	}
}

func TestEstimateOneRepMaxIncreasesWithReps(t *testing.T) {
	prev := EstimateOneRepMax(60, 1)
	for reps := 2; reps <= 30; reps++ {
		got := EstimateOneRepMax(60, reps)
		if got <= prev {
			t.Fatalf("EstimateOneRepMax(60, %d) = %v, not greater than %v", reps, got, prev)
		}
		prev = got
	}
}

func TestSetScore(t *testing.T) {
	if got := SetScore(100, 5); got != 500 {
		t.Errorf("SetScore(100, 5) = %v, want 500", got)
	}
	if got := SetScore(0, 12); got != 0 {
		t.Errorf("SetScore(0, 12) = %v, want 0", got)
	}
}

func TestImprovementPct(t *testing.T) {
	if got, ok := ImprovementPct(100, 116.7); !ok || got != 16.7 {
		t.Errorf("ImprovementPct(100, 116.7) = %v, %v; want 16.7, true", got, ok)
	}
	if got, ok := ImprovementPct(500, 450); !ok || got != -10 {
		t.Errorf("ImprovementPct(500, 450) = %v, %v; want -10, true", got, ok)
	}
	if _, ok := ImprovementPct(0, 10); ok {
		t.Error("ImprovementPct with zero previous should not be ok")
	}
}
