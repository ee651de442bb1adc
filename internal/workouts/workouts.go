// Package workouts logs training sessions: it validates and normalizes the
// input, stores the session, detects personal records and writes the
// per-exercise history.
package workouts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carpenike/repcoach/internal/events"
	"github.com/carpenike/repcoach/internal/exercise"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/notify"
	"github.com/carpenike/repcoach/internal/observability"
	"github.com/carpenike/repcoach/internal/records"
)

var (
	// ErrInvalidSession wraps every validation failure of a SessionInput.
	ErrInvalidSession = errors.New("workouts: invalid session")
	// ErrProfileNotFound is returned when the phone has no profile.
	ErrProfileNotFound = errors.New("workouts: profile not found")
)

// SetInput is one set as submitted.
type SetInput struct {
	Reps   int      `json:"reps"`
	Weight float64  `json:"weight"`
	RPE    *float64 `json:"rpe,omitempty"`
	Notes  string   `json:"notes,omitempty"`
}

// ExerciseInput is one exercise as submitted, with its sets in order.
type ExerciseInput struct {
	Name string     `json:"name"`
	Sets []SetInput `json:"sets"`
}

// SessionInput is a workout as submitted. Date defaults to today (UTC).
type SessionInput struct {
	Date      string          `json:"date,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	Exercises []ExerciseInput `json:"exercises"`
}

// Validate checks the structural rules of a session.
func (in SessionInput) Validate() error {
	if in.Date != "" {
		if _, err := time.Parse("2006-01-02", in.Date); err != nil {
			return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidSession, in.Date)
		}
	}
	if len(in.Exercises) == 0 {
		return fmt.Errorf("%w: at least one exercise is required", ErrInvalidSession)
	}
	for i, ex := range in.Exercises {
		if exercise.Normalize(ex.Name) == "" {
			return fmt.Errorf("%w: exercise %d has no name", ErrInvalidSession, i+1)
		}
		if len(ex.Sets) == 0 {
			return fmt.Errorf("%w: %s has no sets", ErrInvalidSession, ex.Name)
		}
		for j, s := range ex.Sets {
			if s.Reps < 1 {
				return fmt.Errorf("%w: %s set %d: reps must be at least 1", ErrInvalidSession, ex.Name, j+1)
			}
			if s.Weight < 0 {
				return fmt.Errorf("%w: %s set %d: weight must not be negative", ErrInvalidSession, ex.Name, j+1)
			}
		}
	}
	return nil
}

// ExerciseResult is what logging one exercise produced.
type ExerciseResult struct {
	Name         string                  `json:"name"`
	Key          string                  `json:"key"`
	Achievements []records.Achievement   `json:"achievements"`
	History      *models.ExerciseHistory `json:"-"`
}

// LogResult is the stored session and the records it set.
type LogResult struct {
	Session   *models.WorkoutSession `json:"-"`
	Exercises []ExerciseResult       `json:"exercises"`
}

// PRCount returns the number of new records across all exercises.
func (r *LogResult) PRCount() int {
	n := 0
	for _, ex := range r.Exercises {
		n += len(ex.Achievements)
	}
	return n
}

// Store is the persistence the service uses directly.
type Store interface {
	GetUserProfile(ctx context.Context, phone string) (*models.UserProfile, error)
	InsertWorkoutSession(ctx context.Context, s *models.WorkoutSession) (*models.WorkoutSession, error)
}

// Service logs workouts.
type Service struct {
	store    Store
	engine   *records.Engine
	recorder *records.Recorder
	events   events.Publisher
	notifier *notify.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a service. A nil publisher drops events; a nil notifier
// sends nothing.
func NewService(store Store, engine *records.Engine, recorder *records.Recorder, pub events.Publisher, notifier *notify.Notifier, log *logger.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		store:    store,
		engine:   engine,
		recorder: recorder,
		events:   pub,
		notifier: notifier,
		log:      log.With("component", "workouts"),
		now:      time.Now,
	}
}

// LogSession validates and stores a session for phone, then evaluates
// personal records and writes history for each exercise.
func (s *Service) LogSession(ctx context.Context, phone string, in SessionInput) (*LogResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	profile, err := s.store.GetUserProfile(ctx, phone)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("workouts: load profile: %w", err)
	}

	session, err := s.store.InsertWorkoutSession(ctx, toSession(profile.ID, in, s.now()))
	if err != nil {
		return nil, fmt.Errorf("workouts: save session: %w", err)
	}

	res := &LogResult{Session: session}
	var evs []events.PRAchieved
	for _, se := range session.Exercises {
		ex := toRecordsExercise(se)
		achieved, err := s.engine.Evaluate(ctx, profile.ID, session.ID, ex)
		if err != nil {
			return nil, fmt.Errorf("workouts: evaluate records for %s: %w", ex.NormalizedName, err)
		}
		hist, err := s.recorder.Record(ctx, profile.ID, session.ID, ex)
		if err != nil {
			return nil, fmt.Errorf("workouts: record history for %s: %w", ex.NormalizedName, err)
		}

		for _, a := range achieved {
			observability.RecordPersonalRecord(string(a.Type))
			evs = append(evs, events.PRAchieved{
				UserID:         profile.ID,
				SessionID:      session.ID,
				ExerciseKey:    ex.NormalizedName,
				RecordType:     string(a.Type),
				Value:          a.Value,
				Reps:           a.Reps,
				Weight:         a.Weight,
				PreviousValue:  a.Previous,
				ImprovementPct: a.Improvement,
				AchievedAt:     s.now().UTC(),
			})
		}
		res.Exercises = append(res.Exercises, ExerciseResult{
			Name:         se.Name,
			Key:          ex.NormalizedName,
			Achievements: achieved,
			History:      hist,
		})
	}

	if len(evs) > 0 {
		if err := s.events.PublishPRAchieved(ctx, evs...); err != nil {
			s.log.Warn("pr events not published", "phone", phone, "count", len(evs), "error", err)
		}
		s.notifier.Broadcast(notify.Request{
			Title:   fmt.Sprintf("%d nuevos récords", len(evs)),
			Message: prLines(res),
		})
	}

	s.log.Info("workout logged", "phone", phone, "session_id", session.ID,
		"exercises", len(session.Exercises), "records", len(evs))
	return res, nil
}

func toSession(userID int64, in SessionInput, now time.Time) *models.WorkoutSession {
	date := in.Date
	if date == "" {
		date = now.UTC().Format("2006-01-02")
	}
	ws := &models.WorkoutSession{
		UserID: userID,
		Date:   date,
		Notes:  sql.NullString{String: strings.TrimSpace(in.Notes), Valid: strings.TrimSpace(in.Notes) != ""},
	}
	// Entries naming the same exercise (an alias pair, or warm-up and work
	// sets logged apart) become one exercise with their sets in order, so
	// records and history see a single exercise per session.
	byKey := make(map[string]int)
	for _, ex := range in.Exercises {
		key := exercise.Normalize(ex.Name)
		idx, seen := byKey[key]
		if !seen {
			idx = len(ws.Exercises)
			byKey[key] = idx
			ws.Exercises = append(ws.Exercises, models.SessionExercise{
				Name:           strings.TrimSpace(ex.Name),
				NormalizedName: key,
			})
		}
		se := &ws.Exercises[idx]
		for _, set := range ex.Sets {
			row := models.WorkoutSet{
				SetNumber: len(se.Sets) + 1,
				Reps:      set.Reps,
				Weight:    set.Weight,
				Notes:     sql.NullString{String: set.Notes, Valid: set.Notes != ""},
			}
			if set.RPE != nil {
				row.RPE = sql.NullFloat64{Float64: *set.RPE, Valid: true}
			}
			se.Sets = append(se.Sets, row)
		}
	}
	return ws
}

func toRecordsExercise(se models.SessionExercise) records.Exercise {
	ex := records.Exercise{Name: se.Name, NormalizedName: se.NormalizedName}
	for _, s := range se.Sets {
		set := records.Set{SetNumber: s.SetNumber, Reps: s.Reps, Weight: s.Weight, Notes: s.Notes.String}
		if s.RPE.Valid {
			rpe := s.RPE.Float64
			set.RPE = &rpe
		}
		ex.Sets = append(ex.Sets, set)
	}
	return ex
}

func prLines(res *LogResult) string {
	var b strings.Builder
	for _, ex := range res.Exercises {
		for _, a := range ex.Achievements {
			fmt.Fprintf(&b, "%s: %s\n", exercise.DisplayName(ex.Key), records.FormatAchievement(a))
		}
	}
	return strings.TrimSpace(b.String())
}

// FormatSummary renders a logged session for the user.
func FormatSummary(res *LogResult) string {
	sets := 0
	for _, ex := range res.Exercises {
		if ex.History != nil {
			sets += ex.History.TotalSets
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*¡Entrenamiento registrado!* %d ejercicios, %d series.\n", len(res.Exercises), sets)
	if res.PRCount() == 0 {
		b.WriteString("\nSin récords nuevos esta vez. ¡La constancia es lo que cuenta!")
		return b.String()
	}

	b.WriteString("\n*¡Nuevos récords personales!*\n")
	for _, ex := range res.Exercises {
		if len(ex.Achievements) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n*%s*\n", exercise.DisplayName(ex.Key))
		for _, a := range ex.Achievements {
			fmt.Fprintf(&b, "• %s\n", records.FormatAchievement(a))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
