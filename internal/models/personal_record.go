package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordType is one of the four independently tracked personal-record kinds.
type RecordType string

const (
	RecordOneRepMax RecordType = "one_rep_max"
	RecordMaxReps   RecordType = "max_reps"
	RecordMaxVolume RecordType = "max_volume"
	RecordBestSet   RecordType = "best_set"
)

// RecordTypes lists every record type in evaluation order.
var RecordTypes = []RecordType{RecordOneRepMax, RecordMaxReps, RecordMaxVolume, RecordBestSet}

// PersonalRecord is one append-only entry in a user's improvement trail. The
// current record for a (user, exercise, type) is the row with the latest
// AchievedAt, ties broken by the highest ID.
type PersonalRecord struct {
	ID             int64
	UserID         int64
	SessionID      sql.NullInt64
	ExerciseKey    string
	Type           RecordType
	Value          float64
	Reps           sql.NullInt64
	Weight         sql.NullFloat64
	PreviousValue  sql.NullFloat64
	ImprovementPct sql.NullFloat64
	AchievedAt     time.Time
}

const recordColumns = `id, user_id, session_id, exercise_key, record_type, value, reps, weight,
	previous_value, improvement_pct, achieved_at`

func scanRecord(row interface{ Scan(...any) error }) (*PersonalRecord, error) {
	r := &PersonalRecord{}
	var achieved int64
	if err := row.Scan(&r.ID, &r.UserID, &r.SessionID, &r.ExerciseKey, &r.Type, &r.Value,
		&r.Reps, &r.Weight, &r.PreviousValue, &r.ImprovementPct, &achieved); err != nil {
		return nil, err
	}
	r.AchievedAt = fromMillis(achieved)
	return r, nil
}

// LatestPersonalRecord returns the current record of one type for a user and
// exercise, or nil when none exists.
func LatestPersonalRecord(ctx context.Context, db DBTX, userID int64, exerciseKey string, typ RecordType) (*PersonalRecord, error) {
	r, err := scanRecord(db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM personal_records
		WHERE user_id = ? AND exercise_key = ? AND record_type = ?
		ORDER BY achieved_at DESC, id DESC
		LIMIT 1`, userID, exerciseKey, typ))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("models: latest %s record for user %d %s: %w", typ, userID, exerciseKey, err)
	}
	return r, nil
}

// InsertPersonalRecord appends a record and sets r.ID. A zero AchievedAt is
// stamped with the current time.
func InsertPersonalRecord(ctx context.Context, db DBTX, r *PersonalRecord) error {
	if r.AchievedAt.IsZero() {
		r.AchievedAt = time.Now().UTC()
	}
	err := db.QueryRowContext(ctx, `
		INSERT INTO personal_records (user_id, session_id, exercise_key, record_type, value, reps, weight,
		                              previous_value, improvement_pct, achieved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		r.UserID, r.SessionID, r.ExerciseKey, r.Type, r.Value, r.Reps, r.Weight,
		r.PreviousValue, r.ImprovementPct, toMillis(r.AchievedAt),
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("models: insert %s record for user %d %s: %w", r.Type, r.UserID, r.ExerciseKey, err)
	}
	return nil
}

// ListCurrentPersonalRecords returns the current record of every type for
// every exercise the user has logged, ordered by exercise then type.
func ListCurrentPersonalRecords(ctx context.Context, db DBTX, userID int64) ([]*PersonalRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY exercise_key, record_type
				ORDER BY achieved_at DESC, id DESC
			) AS rn
			FROM personal_records
			WHERE user_id = ?
		)
		WHERE rn = 1
		ORDER BY exercise_key,
			CASE record_type
				WHEN 'one_rep_max' THEN 1
				WHEN 'max_reps' THEN 2
				WHEN 'max_volume' THEN 3
				ELSE 4
			END`, userID)
	if err != nil {
		return nil, fmt.Errorf("models: list current records for user %d: %w", userID, err)
	}
	return collectRecords(rows)
}

// ListPersonalRecordHistory returns the full improvement trail for one
// exercise, oldest first.
func ListPersonalRecordHistory(ctx context.Context, db DBTX, userID int64, exerciseKey string) ([]*PersonalRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM personal_records
		WHERE user_id = ? AND exercise_key = ?
		ORDER BY achieved_at, id`, userID, exerciseKey)
	if err != nil {
		return nil, fmt.Errorf("models: list record history for user %d %s: %w", userID, exerciseKey, err)
	}
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]*PersonalRecord, error) {
	defer rows.Close()

	var records []*PersonalRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan personal record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
