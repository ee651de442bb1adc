package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ExerciseHistory is a per-session performance snapshot of one exercise.
type ExerciseHistory struct {
	ID          int64
	UserID      int64
	SessionID   int64
	ExerciseKey string
	BestReps    int
	BestWeight  float64
	BestE1RM    float64
	TotalVolume float64
	TotalSets   int
	AvgRPE      sql.NullFloat64
	RecordedAt  time.Time
}

// InsertExerciseHistory stores one snapshot and sets h.ID.
func InsertExerciseHistory(ctx context.Context, db DBTX, h *ExerciseHistory) error {
	if h.RecordedAt.IsZero() {
		h.RecordedAt = time.Now().UTC()
	}
	err := db.QueryRowContext(ctx, `
		INSERT INTO exercise_history (user_id, session_id, exercise_key, best_reps, best_weight, best_e1rm,
		                              total_volume, total_sets, avg_rpe, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		h.UserID, h.SessionID, h.ExerciseKey, h.BestReps, h.BestWeight, h.BestE1RM,
		h.TotalVolume, h.TotalSets, h.AvgRPE, toMillis(h.RecordedAt),
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("models: insert history for user %d session %d %s: %w", h.UserID, h.SessionID, h.ExerciseKey, err)
	}
	return nil
}

// ListExerciseHistory returns the most recent snapshots for an exercise,
// newest first.
func ListExerciseHistory(ctx context.Context, db DBTX, userID int64, exerciseKey string, limit int) ([]*ExerciseHistory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, session_id, exercise_key, best_reps, best_weight, best_e1rm,
		       total_volume, total_sets, avg_rpe, recorded_at
		FROM exercise_history
		WHERE user_id = ? AND exercise_key = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, userID, exerciseKey, limit)
	if err != nil {
		return nil, fmt.Errorf("models: list history for user %d %s: %w", userID, exerciseKey, err)
	}
	defer rows.Close()

	var out []*ExerciseHistory
	for rows.Next() {
		h := &ExerciseHistory{}
		var recorded int64
		if err := rows.Scan(&h.ID, &h.UserID, &h.SessionID, &h.ExerciseKey, &h.BestReps, &h.BestWeight,
			&h.BestE1RM, &h.TotalVolume, &h.TotalSets, &h.AvgRPE, &recorded); err != nil {
			return nil, fmt.Errorf("models: scan exercise history: %w", err)
		}
		h.RecordedAt = fromMillis(recorded)
		out = append(out, h)
	}
	return out, rows.Err()
}
