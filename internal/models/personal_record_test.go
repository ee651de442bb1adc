package models

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func TestLatestPersonalRecord(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := testProfile(t, db, "+100")

	got, err := LatestPersonalRecord(ctx, db, p.ID, "bench_press", RecordOneRepMax)
	if err != nil {
		t.Fatalf("latest with no records: %v", err)
	}
	if got != nil {
		t.Fatalf("latest = %+v, want nil", got)
	}

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	insert := func(value float64, at time.Time) *PersonalRecord {
		t.Helper()
		r := &PersonalRecord{
			UserID: p.ID, ExerciseKey: "bench_press", Type: RecordOneRepMax,
			Value: value, AchievedAt: at,
		}
		if err := InsertPersonalRecord(ctx, db, r); err != nil {
			t.Fatalf("insert record: %v", err)
		}
		return r
	}

	insert(100, base)
	insert(110, base.Add(time.Hour))
	// Same timestamp as the previous row: the higher id wins.
	last := insert(105, base.Add(time.Hour))

	got, err = LatestPersonalRecord(ctx, db, p.ID, "bench_press", RecordOneRepMax)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.ID != last.ID || got.Value != 105 {
		t.Errorf("latest = id %d value %v, want id %d value 105", got.ID, got.Value, last.ID)
	}
	if !got.AchievedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("achieved_at = %v", got.AchievedAt)
	}

	other, err := LatestPersonalRecord(ctx, db, p.ID, "bench_press", RecordMaxReps)
	if err != nil {
		t.Fatalf("latest other type: %v", err)
	}
	if other != nil {
		t.Errorf("max_reps latest = %+v, want nil", other)
	}
}

func TestListCurrentPersonalRecords(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := testProfile(t, db, "+100")
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := []PersonalRecord{
		{ExerciseKey: "squat", Type: RecordMaxVolume, Value: 1000, AchievedAt: base},
		{ExerciseKey: "squat", Type: RecordMaxVolume, Value: 1200, AchievedAt: base.Add(time.Hour),
			PreviousValue: sql.NullFloat64{Float64: 1000, Valid: true}, ImprovementPct: sql.NullFloat64{Float64: 20, Valid: true}},
		{ExerciseKey: "squat", Type: RecordOneRepMax, Value: 140, AchievedAt: base},
		{ExerciseKey: "bench_press", Type: RecordBestSet, Value: 500, AchievedAt: base},
	}
	for i := range rows {
		rows[i].UserID = p.ID
		if err := InsertPersonalRecord(ctx, db, &rows[i]); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	current, err := ListCurrentPersonalRecords(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("list current: %v", err)
	}
	if len(current) != 3 {
		t.Fatalf("current records = %d, want 3", len(current))
	}
	if current[0].ExerciseKey != "bench_press" {
		t.Errorf("first = %s, want bench_press", current[0].ExerciseKey)
	}
	if current[1].Type != RecordOneRepMax || current[2].Type != RecordMaxVolume {
		t.Errorf("squat order = %s, %s", current[1].Type, current[2].Type)
	}
	if current[2].Value != 1200 || current[2].ImprovementPct.Float64 != 20 {
		t.Errorf("current volume = %v (%v%%), want 1200 (20%%)", current[2].Value, current[2].ImprovementPct.Float64)
	}

	history, err := ListPersonalRecordHistory(ctx, db, p.ID, "squat")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("history = %d rows, want 3", len(history))
	}
}

func TestPersonalRecordSurvivesSessionDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := testProfile(t, db, "+100")

	s, err := CreateWorkoutSession(ctx, db, &WorkoutSession{
		UserID: p.ID, Date: "2026-03-01",
		Exercises: []SessionExercise{{Name: "Squat", NormalizedName: "squat", Sets: []WorkoutSet{{Reps: 1, Weight: 150}}}},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := InsertPersonalRecord(ctx, db, &PersonalRecord{
		UserID: p.ID, SessionID: sql.NullInt64{Int64: s.ID, Valid: true},
		ExerciseKey: "squat", Type: RecordOneRepMax, Value: 150,
	}); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	if err := DeleteWorkoutSession(ctx, db, s.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	r, err := LatestPersonalRecord(ctx, db, p.ID, "squat", RecordOneRepMax)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if r == nil || r.Value != 150 {
		t.Fatalf("record = %+v, want value 150", r)
	}
	if r.SessionID.Valid {
		t.Errorf("session_id = %d, want NULL", r.SessionID.Int64)
	}
}
