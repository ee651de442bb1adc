package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/strength"
)

// HistoryStore persists exercise history snapshots.
type HistoryStore interface {
	InsertExerciseHistory(ctx context.Context, h *models.ExerciseHistory) error
}

// Recorder writes one history snapshot per exercise per session.
type Recorder struct {
	store HistoryStore
	now   func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(store HistoryStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Snapshot computes the history row for ex without storing it.
func Snapshot(userID, sessionID int64, ex Exercise) (*models.ExerciseHistory, error) {
	if len(ex.Sets) == 0 {
		return nil, ErrNoSets
	}

	best := ex.Sets[bestSetIndex(ex.Sets)]
	volume, _ := totalVolume(ex.Sets)

	h := &models.ExerciseHistory{
		UserID:      userID,
		SessionID:   sessionID,
		ExerciseKey: ex.NormalizedName,
		BestReps:    best.Reps,
		BestWeight:  best.Weight,
		BestE1RM:    strength.EstimateOneRepMax(best.Weight, best.Reps),
		TotalVolume: volume,
		TotalSets:   len(ex.Sets),
	}

	var sum float64
	var n int
	for _, s := range ex.Sets {
		if s.RPE != nil {
			sum += *s.RPE
			n++
		}
	}
	if n > 0 {
		h.AvgRPE = sql.NullFloat64{Float64: strength.Round1(sum / float64(n)), Valid: true}
	}
	return h, nil
}

// Record computes and stores the snapshot for one exercise of a session.
func (r *Recorder) Record(ctx context.Context, userID, sessionID int64, ex Exercise) (*models.ExerciseHistory, error) {
	h, err := Snapshot(userID, sessionID, ex)
	if err != nil {
		return nil, err
	}
	h.RecordedAt = r.now().UTC()
	if err := r.store.InsertExerciseHistory(ctx, h); err != nil {
		return nil, fmt.Errorf("records: insert history for %s: %w", ex.NormalizedName, err)
	}
	return h, nil
}
