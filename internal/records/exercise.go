// Package records detects personal records and stores per-session exercise
// history for logged workouts.
package records

import (
	"errors"

	"github.com/carpenike/repcoach/internal/strength"
)

// ErrNoSets is returned when an exercise carries no sets. Callers must never
// pass one; it indicates malformed workout input.
var ErrNoSets = errors.New("records: exercise has no sets")

// Set is one logged set.
type Set struct {
	SetNumber int
	Reps      int
	Weight    float64
	RPE       *float64
	Notes     string
}

// Exercise is one exercise of a persisted workout session.
type Exercise struct {
	Name           string
	NormalizedName string
	Sets           []Set
}

// bestSetIndex returns the index of the set with the highest score, the
// first one winning ties.
func bestSetIndex(sets []Set) int {
	best := 0
	for i := 1; i < len(sets); i++ {
		if strength.SetScore(sets[i].Weight, sets[i].Reps) > strength.SetScore(sets[best].Weight, sets[best].Reps) {
			best = i
		}
	}
	return best
}

// maxRepsIndex returns the index of the set with the most reps, preferring
// the heavier set among equal reps.
func maxRepsIndex(sets []Set) int {
	best := 0
	for i := 1; i < len(sets); i++ {
		s, b := sets[i], sets[best]
		if s.Reps > b.Reps || (s.Reps == b.Reps && s.Weight > b.Weight) {
			best = i
		}
	}
	return best
}

// oneRepMaxIndex returns the index of the set with the highest estimated
// one-rep max, the first one winning ties.
func oneRepMaxIndex(sets []Set) int {
	best := 0
	bestE1RM := strength.EstimateOneRepMax(sets[0].Weight, sets[0].Reps)
	for i := 1; i < len(sets); i++ {
		if e := strength.EstimateOneRepMax(sets[i].Weight, sets[i].Reps); e > bestE1RM {
			best, bestE1RM = i, e
		}
	}
	return best
}

func totalVolume(sets []Set) (volume float64, reps int) {
	for _, s := range sets {
		volume += strength.SetScore(s.Weight, s.Reps)
		reps += s.Reps
	}
	return volume, reps
}
