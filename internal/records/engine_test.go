package records

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/carpenike/repcoach/internal/models"
)

// memStore keeps records in insertion order; the last appended row of a type
// is the current one.
type memStore struct {
	mu      sync.Mutex
	records []*models.PersonalRecord
	history []*models.ExerciseHistory
	err     error
}

func (m *memStore) GetLatestRecord(_ context.Context, userID int64, key string, typ models.RecordType) (*models.PersonalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if r.UserID == userID && r.ExerciseKey == key && r.Type == typ {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertPersonalRecord(_ context.Context, r *models.PersonalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.records) + 1)
	m.records = append(m.records, r)
	return nil
}

func (m *memStore) InsertExerciseHistory(_ context.Context, h *models.ExerciseHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = int64(len(m.history) + 1)
	m.history = append(m.history, h)
	return nil
}

func byType(as []Achievement) map[models.RecordType]Achievement {
	m := make(map[models.RecordType]Achievement, len(as))
	for _, a := range as {
		m[a.Type] = a
	}
	return m
}

func bench(sets ...Set) Exercise {
	return Exercise{Name: "Bench Press", NormalizedName: "bench_press", Sets: sets}
}

func TestEvaluateFirstEverLog(t *testing.T) {
	store := &memStore{}
	e := NewEngine(store, nil)

	got, err := e.Evaluate(context.Background(), 1, 10, bench(Set{SetNumber: 1, Reps: 5, Weight: 100}))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("achievements = %d, want 4", len(got))
	}
	for _, a := range got {
		if a.Previous != nil || a.Improvement != nil {
			t.Errorf("%s: first record should carry no previous/improvement", a.Type)
		}
	}

	m := byType(got)
	if m[models.RecordOneRepMax].Value != 116.7 {
		t.Errorf("1rm = %v, want 116.7", m[models.RecordOneRepMax].Value)
	}
	if m[models.RecordMaxReps].Value != 5 {
		t.Errorf("max reps = %v, want 5", m[models.RecordMaxReps].Value)
	}
	if m[models.RecordMaxVolume].Value != 500 {
		t.Errorf("volume = %v, want 500", m[models.RecordMaxVolume].Value)
	}
	if m[models.RecordBestSet].Value != 500 {
		t.Errorf("best set = %v, want 500", m[models.RecordBestSet].Value)
	}

	if len(store.records) != 4 {
		t.Errorf("stored records = %d, want 4", len(store.records))
	}
	for _, r := range store.records {
		if r.SessionID.Int64 != 10 || r.PreviousValue.Valid || r.ImprovementPct.Valid {
			t.Errorf("stored %s = %+v", r.Type, r)
		}
	}
}

func TestEvaluateIdenticalSessionTwice(t *testing.T) {
	store := &memStore{}
	e := NewEngine(store, nil)
	ex := bench(Set{Reps: 10, Weight: 80}, Set{Reps: 10, Weight: 90}, Set{Reps: 6, Weight: 100})

	first, err := e.Evaluate(context.Background(), 1, 1, ex)
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	if len(first) != 4 {
		t.Fatalf("first achievements = %d, want 4", len(first))
	}

	second, err := e.Evaluate(context.Background(), 1, 2, ex)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if second == nil || len(second) != 0 {
		t.Errorf("second achievements = %v, want empty non-nil slice", second)
	}
	if len(store.records) != 4 {
		t.Errorf("stored records = %d, want 4", len(store.records))
	}
}

func TestEvaluateMaxRepsTieBreak(t *testing.T) {
	e := NewEngine(&memStore{}, nil)

	got, err := e.Evaluate(context.Background(), 1, 1, bench(Set{Reps: 10, Weight: 80}, Set{Reps: 10, Weight: 90}))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	mr := byType(got)[models.RecordMaxReps]
	if mr.Reps != 10 || mr.Weight != 90 {
		t.Errorf("max reps candidate = %d x %v, want 10 x 90", mr.Reps, mr.Weight)
	}
}

func TestEvaluateMaxRepsAgainstPrior(t *testing.T) {
	store := &memStore{}
	e := NewEngine(store, nil)
	ctx := context.Background()

	if _, err := e.Evaluate(ctx, 1, 1, bench(Set{Reps: 10, Weight: 80})); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name string
		set  Set
		want bool
	}{
		{"equal reps lighter", Set{Reps: 10, Weight: 70}, false},
		{"equal reps equal weight", Set{Reps: 10, Weight: 80}, false},
		{"fewer reps heavier", Set{Reps: 8, Weight: 120}, false},
		{"equal reps heavier", Set{Reps: 10, Weight: 85}, true},
		{"more reps lighter", Set{Reps: 12, Weight: 40}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(ctx, 1, 2, bench(tt.set))
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			_, fired := byType(got)[models.RecordMaxReps]
			if fired != tt.want {
				t.Errorf("max_reps fired = %v, want %v", fired, tt.want)
			}
		})
	}
}

func TestEvaluateBestSetTieBreak(t *testing.T) {
	e := NewEngine(&memStore{}, nil)

	// 100x5 and 125x4 both score 500; the first one wins.
	got, err := e.Evaluate(context.Background(), 1, 1, bench(Set{Reps: 5, Weight: 100}, Set{Reps: 4, Weight: 125}))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	bs := byType(got)[models.RecordBestSet]
	if bs.Reps != 5 || bs.Weight != 100 || bs.Value != 500 {
		t.Errorf("best set = %d x %v (%v), want 5 x 100 (500)", bs.Reps, bs.Weight, bs.Value)
	}
}

func TestEvaluateBeatenVolumeNotOneRepMax(t *testing.T) {
	store := &memStore{}
	e := NewEngine(store, nil)
	ctx := context.Background()

	// Prior: 1RM 100 from a single, volume 100.
	if _, err := e.Evaluate(ctx, 1, 1, bench(Set{Reps: 1, Weight: 100})); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// 3 x 5 @ 82.5: e1rm 96.3, volume 1237.5.
	got, err := e.Evaluate(ctx, 1, 2, bench(
		Set{Reps: 5, Weight: 82.5}, Set{Reps: 5, Weight: 82.5}, Set{Reps: 5, Weight: 82.5},
	))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	m := byType(got)
	if _, ok := m[models.RecordOneRepMax]; ok {
		t.Error("one_rep_max should not fire")
	}
	vol, ok := m[models.RecordMaxVolume]
	if !ok {
		t.Fatal("max_volume should fire")
	}
	if vol.Value != 1237.5 {
		t.Errorf("volume = %v, want 1237.5", vol.Value)
	}
	if vol.Previous == nil || *vol.Previous != 100 {
		t.Errorf("previous = %v, want 100", vol.Previous)
	}
	if vol.Improvement == nil || *vol.Improvement != 1137.5 {
		t.Errorf("improvement = %v, want 1137.5", vol.Improvement)
	}
	if _, ok := m[models.RecordBestSet]; !ok {
		t.Error("best_set should fire (412.5 > 100)")
	}
}

func TestEvaluateImprovementOmittedWhenPreviousZero(t *testing.T) {
	store := &memStore{}
	e := NewEngine(store, nil)
	ctx := context.Background()

	// Bodyweight set: volume and best set are 0.
	if _, err := e.Evaluate(ctx, 1, 1, bench(Set{Reps: 10, Weight: 0})); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := e.Evaluate(ctx, 1, 2, bench(Set{Reps: 10, Weight: 20}))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	vol := byType(got)[models.RecordMaxVolume]
	if vol.Previous == nil || *vol.Previous != 0 {
		t.Errorf("previous = %v, want 0", vol.Previous)
	}
	if vol.Improvement != nil {
		t.Errorf("improvement = %v, want nil", *vol.Improvement)
	}
}

func TestEvaluateNoSets(t *testing.T) {
	e := NewEngine(&memStore{}, nil)
	if _, err := e.Evaluate(context.Background(), 1, 1, bench()); !errors.Is(err, ErrNoSets) {
		t.Errorf("err = %v, want ErrNoSets", err)
	}
}

func TestEvaluateStoreError(t *testing.T) {
	boom := errors.New("boom")
	e := NewEngine(&memStore{err: boom}, nil)
	if _, err := e.Evaluate(context.Background(), 1, 1, bench(Set{Reps: 1, Weight: 1})); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestEvaluateConcurrentSameExercise(t *testing.T) {
	store := &memStore{}
	e := NewEngine(store, nil)
	ex := bench(Set{Reps: 5, Weight: 100})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(session int64) {
			defer wg.Done()
			if _, err := e.Evaluate(context.Background(), 1, session, ex); err != nil {
				t.Errorf("evaluate: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	if len(store.records) != 4 {
		t.Errorf("stored records = %d, want 4 (one per type)", len(store.records))
	}
}
