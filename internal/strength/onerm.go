// Package strength holds the pure strength-training formulas shared by the
// record engine and the history recorder.
package strength

import "math"

// EstimateOneRepMax returns the estimated one-rep max for a set using the
// Epley formula, rounded to one decimal. A single rep is already a max and is
// returned unchanged. Callers pass reps >= 1 and weight >= 0.
func EstimateOneRepMax(weight float64, reps int) float64 {
	if reps == 1 {
		return weight
	}
	return Round1(weight * (1 + float64(reps)/30))
}

// SetScore is the load moved by a single set.
func SetScore(weight float64, reps int) float64 {
	return weight * float64(reps)
}

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ImprovementPct returns the signed percentage change from prev to cur,
// rounded to one decimal. ok is false when prev is zero.
func ImprovementPct(prev, cur float64) (pct float64, ok bool) {
	if prev == 0 {
		return 0, false
	}
	return Round1((cur - prev) / prev * 100), true
}
