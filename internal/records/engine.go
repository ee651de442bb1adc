package records

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/strength"
)

// Store is the record persistence the engine reads and appends to.
type Store interface {
	GetLatestRecord(ctx context.Context, userID int64, exerciseKey string, typ models.RecordType) (*models.PersonalRecord, error)
	InsertPersonalRecord(ctx context.Context, r *models.PersonalRecord) error
}

// Achievement is a newly set personal record.
type Achievement struct {
	Type        models.RecordType `json:"type"`
	Value       float64           `json:"value"`
	Reps        int               `json:"reps"`
	Weight      float64           `json:"weight"`
	Previous    *float64          `json:"previous,omitempty"`
	Improvement *float64          `json:"improvement_pct,omitempty"`
}

// candidate is the session's best performance for one record type.
type candidate struct {
	typ       models.RecordType
	value     float64
	reps      int
	weight    float64
	hasWeight bool
}

// Engine evaluates the four record types of an exercise against the user's
// current records and appends every record that was beaten.
type Engine struct {
	store  Store
	locker Locker
	now    func() time.Time
}

// NewEngine creates an engine. A nil locker serializes with an in-process
// keyed mutex.
func NewEngine(store Store, locker Locker) *Engine {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &Engine{store: store, locker: locker, now: time.Now}
}

// Evaluate checks one exercise of a persisted session. It returns the records
// that were beaten, or an empty slice when none were. The read-then-insert of
// all four types runs under a lock on (user, exercise).
func (e *Engine) Evaluate(ctx context.Context, userID, sessionID int64, ex Exercise) ([]Achievement, error) {
	if len(ex.Sets) == 0 {
		return nil, ErrNoSets
	}

	key := ex.NormalizedName
	unlock, err := e.locker.Lock(ctx, lockKey(userID, key))
	if err != nil {
		return nil, fmt.Errorf("records: lock %d/%s: %w", userID, key, err)
	}
	defer unlock()

	achieved := []Achievement{}
	for _, c := range candidates(ex.Sets) {
		prior, err := e.store.GetLatestRecord(ctx, userID, key, c.typ)
		if err != nil {
			return nil, fmt.Errorf("records: latest %s for %s: %w", c.typ, key, err)
		}
		if !beats(c, prior) {
			continue
		}

		r := &models.PersonalRecord{
			UserID:      userID,
			SessionID:   sql.NullInt64{Int64: sessionID, Valid: sessionID > 0},
			ExerciseKey: key,
			Type:        c.typ,
			Value:       c.value,
			Reps:        sql.NullInt64{Int64: int64(c.reps), Valid: true},
			Weight:      sql.NullFloat64{Float64: c.weight, Valid: c.hasWeight},
			AchievedAt:  e.now().UTC(),
		}
		a := Achievement{Type: c.typ, Value: c.value, Reps: c.reps, Weight: c.weight}
		if prior != nil {
			prev := prior.Value
			r.PreviousValue = sql.NullFloat64{Float64: prev, Valid: true}
			a.Previous = &prev
			if pct, ok := strength.ImprovementPct(prev, c.value); ok {
				r.ImprovementPct = sql.NullFloat64{Float64: pct, Valid: true}
				a.Improvement = &pct
			}
		}

		if err := e.store.InsertPersonalRecord(ctx, r); err != nil {
			return nil, fmt.Errorf("records: insert %s for %s: %w", c.typ, key, err)
		}
		achieved = append(achieved, a)
	}
	return achieved, nil
}

func candidates(sets []Set) []candidate {
	orm := sets[oneRepMaxIndex(sets)]
	mr := sets[maxRepsIndex(sets)]
	bs := sets[bestSetIndex(sets)]
	volume, reps := totalVolume(sets)

	return []candidate{
		{typ: models.RecordOneRepMax, value: strength.EstimateOneRepMax(orm.Weight, orm.Reps), reps: orm.Reps, weight: orm.Weight, hasWeight: true},
		{typ: models.RecordMaxReps, value: float64(mr.Reps), reps: mr.Reps, weight: mr.Weight, hasWeight: true},
		{typ: models.RecordMaxVolume, value: volume, reps: reps},
		{typ: models.RecordBestSet, value: strength.SetScore(bs.Weight, bs.Reps), reps: bs.Reps, weight: bs.Weight, hasWeight: true},
	}
}

// beats reports whether c is a new record over prior. Every comparison is
// strict so logging an identical session twice sets nothing the second time.
func beats(c candidate, prior *models.PersonalRecord) bool {
	if prior == nil {
		return true
	}
	if c.typ != models.RecordMaxReps {
		return c.value > prior.Value
	}

	priorReps := int(prior.Value)
	if prior.Reps.Valid {
		priorReps = int(prior.Reps.Int64)
	}
	if c.reps != priorReps {
		return c.reps > priorReps
	}
	return c.weight > prior.Weight.Float64
}

func lockKey(userID int64, exerciseKey string) string {
	return strconv.FormatInt(userID, 10) + ":" + exerciseKey
}
