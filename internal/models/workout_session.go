package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// WorkoutSet is one logged set of an exercise.
type WorkoutSet struct {
	ID         int64
	ExerciseID int64
	SetNumber  int
	Reps       int
	Weight     float64
	RPE        sql.NullFloat64
	Notes      sql.NullString
}

// SessionExercise is one exercise inside a workout session with its sets in
// logged order.
type SessionExercise struct {
	ID             int64
	SessionID      int64
	Position       int
	Name           string
	NormalizedName string
	Sets           []WorkoutSet
}

// WorkoutSession is one logged training session.
type WorkoutSession struct {
	ID        int64
	UserID    int64
	Date      string // YYYY-MM-DD
	Notes     sql.NullString
	CreatedAt time.Time
	Exercises []SessionExercise
}

// CreateWorkoutSession persists a session with its exercises and sets in a
// single transaction and returns the stored session.
func CreateWorkoutSession(ctx context.Context, db *sql.DB, s *WorkoutSession) (*WorkoutSession, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("models: begin create session: %w", err)
	}
	defer tx.Rollback()

	var sessionID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO workout_sessions (user_id, date, notes) VALUES (?, ?, ?) RETURNING id`,
		s.UserID, normalizeDate(s.Date), s.Notes,
	).Scan(&sessionID)
	if err != nil {
		return nil, fmt.Errorf("models: create session for user %d: %w", s.UserID, err)
	}

	for i, ex := range s.Exercises {
		var exerciseID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO session_exercises (session_id, position, name, normalized_name)
			 VALUES (?, ?, ?, ?) RETURNING id`,
			sessionID, i+1, ex.Name, ex.NormalizedName,
		).Scan(&exerciseID)
		if err != nil {
			return nil, fmt.Errorf("models: add exercise %q to session %d: %w", ex.Name, sessionID, err)
		}

		for j, set := range ex.Sets {
			setNumber := set.SetNumber
			if setNumber == 0 {
				setNumber = j + 1
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO session_sets (exercise_id, set_number, reps, weight, rpe, notes)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				exerciseID, setNumber, set.Reps, set.Weight, set.RPE, set.Notes,
			)
			if err != nil {
				return nil, fmt.Errorf("models: add set %d to exercise %d: %w", setNumber, exerciseID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("models: commit session: %w", err)
	}
	return GetWorkoutSession(ctx, db, sessionID)
}

// GetWorkoutSession retrieves a session with its exercises and sets.
func GetWorkoutSession(ctx context.Context, db DBTX, id int64) (*WorkoutSession, error) {
	s := &WorkoutSession{}
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, date, notes, created_at FROM workout_sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.Date, &s.Notes, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get session %d: %w", id, err)
	}
	s.Date = normalizeDate(s.Date)

	if s.Exercises, err = listSessionExercises(ctx, db, id); err != nil {
		return nil, err
	}
	return s, nil
}

func listSessionExercises(ctx context.Context, db DBTX, sessionID int64) ([]SessionExercise, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.id, e.session_id, e.position, e.name, e.normalized_name,
		       s.id, s.set_number, s.reps, s.weight, s.rpe, s.notes
		FROM session_exercises e
		LEFT JOIN session_sets s ON s.exercise_id = e.id
		WHERE e.session_id = ?
		ORDER BY e.position, s.set_number, s.id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("models: list exercises for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var exercises []SessionExercise
	for rows.Next() {
		var (
			ex        SessionExercise
			setID     sql.NullInt64
			setNumber sql.NullInt64
			reps      sql.NullInt64
			weight    sql.NullFloat64
			set       WorkoutSet
		)
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.Position, &ex.Name, &ex.NormalizedName,
			&setID, &setNumber, &reps, &weight, &set.RPE, &set.Notes); err != nil {
			return nil, fmt.Errorf("models: scan session exercise: %w", err)
		}
		if n := len(exercises); n == 0 || exercises[n-1].ID != ex.ID {
			exercises = append(exercises, ex)
		}
		if setID.Valid {
			set.ID = setID.Int64
			set.ExerciseID = ex.ID
			set.SetNumber = int(setNumber.Int64)
			set.Reps = int(reps.Int64)
			set.Weight = weight.Float64
			last := &exercises[len(exercises)-1]
			last.Sets = append(last.Sets, set)
		}
	}
	return exercises, rows.Err()
}

// ListWorkoutSessions returns a user's most recent sessions, newest first,
// with exercises and sets loaded.
func ListWorkoutSessions(ctx context.Context, db DBTX, userID int64, limit int) ([]*WorkoutSession, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, date, notes, created_at
		FROM workout_sessions
		WHERE user_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("models: list sessions for user %d: %w", userID, err)
	}

	var sessions []*WorkoutSession
	for rows.Next() {
		s := &WorkoutSession{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.Notes, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("models: scan session: %w", err)
		}
		s.Date = normalizeDate(s.Date)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Close before issuing the per-session queries; the pool has one connection.
	rows.Close()

	for _, s := range sessions {
		if s.Exercises, err = listSessionExercises(ctx, db, s.ID); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// DeleteWorkoutSession removes a session. Its exercises, sets and history
// rows cascade; personal records keep their values with the session link
// cleared.
func DeleteWorkoutSession(ctx context.Context, db DBTX, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM workout_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("models: delete session %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
