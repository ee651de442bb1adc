package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/carpenike/repcoach/internal/exercise"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/records"
	"github.com/carpenike/repcoach/internal/store"
	"github.com/carpenike/repcoach/internal/workouts"
)

const (
	maxBodySize         = 1 << 20
	defaultHistoryLimit = 50
)

// WorkoutLogger logs a session and evaluates its records.
type WorkoutLogger interface {
	LogSession(ctx context.Context, phone string, in workouts.SessionInput) (*workouts.LogResult, error)
}

// Users serves the per-user JSON API.
type Users struct {
	Store    store.Store
	Workouts WorkoutLogger
	Log      *logger.Logger
}

type recordJSON struct {
	Exercise       string    `json:"exercise"`
	ExerciseKey    string    `json:"exercise_key"`
	Type           string    `json:"type"`
	Label          string    `json:"label"`
	Value          float64   `json:"value"`
	Display        string    `json:"display"`
	Reps           *int64    `json:"reps,omitempty"`
	Weight         *float64  `json:"weight,omitempty"`
	PreviousValue  *float64  `json:"previous_value,omitempty"`
	ImprovementPct *float64  `json:"improvement_pct,omitempty"`
	SessionID      *int64    `json:"session_id,omitempty"`
	AchievedAt     time.Time `json:"achieved_at"`
}

func toRecordJSON(pr *models.PersonalRecord) recordJSON {
	out := recordJSON{
		Exercise:    exercise.DisplayName(pr.ExerciseKey),
		ExerciseKey: pr.ExerciseKey,
		Type:        string(pr.Type),
		Label:       records.Label(pr.Type),
		Value:       pr.Value,
		Display:     records.FormatRecord(pr),
		AchievedAt:  pr.AchievedAt,
	}
	if pr.Reps.Valid {
		out.Reps = &pr.Reps.Int64
	}
	if pr.Weight.Valid {
		out.Weight = &pr.Weight.Float64
	}
	if pr.PreviousValue.Valid {
		out.PreviousValue = &pr.PreviousValue.Float64
	}
	if pr.ImprovementPct.Valid {
		out.ImprovementPct = &pr.ImprovementPct.Float64
	}
	if pr.SessionID.Valid {
		out.SessionID = &pr.SessionID.Int64
	}
	return out
}

type historyJSON struct {
	SessionID   int64     `json:"session_id"`
	BestReps    int       `json:"best_reps"`
	BestWeight  float64   `json:"best_weight"`
	BestE1RM    float64   `json:"best_e1rm"`
	TotalVolume float64   `json:"total_volume"`
	TotalSets   int       `json:"total_sets"`
	AvgRPE      *float64  `json:"avg_rpe,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type profileJSON struct {
	Phone              string   `json:"phone"`
	Name               *string  `json:"name,omitempty"`
	Age                *int64   `json:"age,omitempty"`
	Sex                *string  `json:"sex,omitempty"`
	WeightKg           *float64 `json:"weight_kg,omitempty"`
	HeightCm           *float64 `json:"height_cm,omitempty"`
	Goal               *string  `json:"goal,omitempty"`
	Experience         *string  `json:"experience,omitempty"`
	Equipment          []string `json:"equipment"`
	TrainingDays       *int64   `json:"training_days,omitempty"`
	OnboardingComplete bool     `json:"onboarding_complete"`
}

// profile loads the user named in the path, writing 404 when absent.
func (h *Users) profile(w http.ResponseWriter, r *http.Request) (*models.UserProfile, bool) {
	phone := pathParam(r, "phone")
	p, err := h.Store.GetUserProfile(r.Context(), phone)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	if err != nil {
		h.Log.Error("get user profile", "phone", phone, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	return p, true
}

// LogWorkout stores a session and returns the records it set.
func (h *Users) LogWorkout(w http.ResponseWriter, r *http.Request) {
	var in workouts.SessionInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.Workouts.LogSession(r.Context(), pathParam(r, "phone"), in)
	switch {
	case errors.Is(err, workouts.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, workouts.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		h.Log.Error("log workout", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": res.Session.ID,
		"date":       res.Session.Date,
		"exercises":  res.Exercises,
		"pr_count":   res.PRCount(),
		"summary":    workouts.FormatSummary(res),
	})
}

// Records lists the current record of every type for every exercise.
func (h *Users) Records(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}
	prs, err := h.Store.ListCurrentRecords(r.Context(), p.ID)
	if err != nil {
		h.Log.Error("list current records", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]recordJSON, 0, len(prs))
	for _, pr := range prs {
		out = append(out, toRecordJSON(pr))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

// RecordHistory lists every record ever set for one exercise, oldest first.
func (h *Users) RecordHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}
	key := exercise.Normalize(pathParam(r, "exercise"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "exercise is required")
		return
	}
	prs, err := h.Store.ListRecordHistory(r.Context(), p.ID, key)
	if err != nil {
		h.Log.Error("list record history", "exercise", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]recordJSON, 0, len(prs))
	for _, pr := range prs {
		out = append(out, toRecordJSON(pr))
	}
	writeJSON(w, http.StatusOK, map[string]any{"exercise_key": key, "records": out})
}

// ExerciseHistory lists per-session snapshots for one exercise, newest
// first. ?limit= caps the result.
func (h *Users) ExerciseHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profile(w, r)
	if !ok {
		return
	}
	key := exercise.Normalize(pathParam(r, "exercise"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "exercise is required")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := h.Store.ListExerciseHistory(r.Context(), p.ID, key, limit)
	if err != nil {
		h.Log.Error("list exercise history", "exercise", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]historyJSON, 0, len(rows))
	for _, row := range rows {
		hj := historyJSON{
			SessionID:   row.SessionID,
			BestReps:    row.BestReps,
			BestWeight:  row.BestWeight,
			BestE1RM:    row.BestE1RM,
			TotalVolume: row.TotalVolume,
			TotalSets:   row.TotalSets,
			RecordedAt:  row.RecordedAt,
		}
		if row.AvgRPE.Valid {
			hj.AvgRPE = &row.AvgRPE.Float64
		}
		out = append(out, hj)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exercise":     exercise.DisplayName(key),
		"exercise_key": key,
		"history":      out,
	})
}

// PutProfile creates or replaces the profile for the phone in the path.
func (h *Users) PutProfile(w http.ResponseWriter, r *http.Request) {
	var in profileJSON
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Age != nil && *in.Age <= 0 {
		writeError(w, http.StatusBadRequest, "age must be positive")
		return
	}
	if (in.WeightKg != nil && *in.WeightKg <= 0) || (in.HeightCm != nil && *in.HeightCm <= 0) {
		writeError(w, http.StatusBadRequest, "weight and height must be positive")
		return
	}

	p := &models.UserProfile{
		Phone:        pathParam(r, "phone"),
		Name:         nullString(in.Name),
		Age:          nullInt(in.Age),
		Sex:          nullString(in.Sex),
		WeightKg:     nullFloat(in.WeightKg),
		HeightCm:     nullFloat(in.HeightCm),
		Goal:         nullString(in.Goal),
		Experience:   nullString(in.Experience),
		Equipment:    in.Equipment,
		TrainingDays: nullInt(in.TrainingDays),
	}
	saved, err := h.Store.UpsertUserProfile(r.Context(), p)
	if err != nil {
		h.Log.Error("upsert profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(saved))
}

// Delete erases the user and everything recorded for them.
func (h *Users) Delete(w http.ResponseWriter, r *http.Request) {
	phone := pathParam(r, "phone")
	err := h.Store.DeleteUserProfile(r.Context(), phone)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.Log.Error("delete user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.Log.Info("user erased", "phone", phone)
	w.WriteHeader(http.StatusNoContent)
}

func toProfileJSON(p *models.UserProfile) profileJSON {
	out := profileJSON{
		Phone:              p.Phone,
		Equipment:          p.Equipment,
		OnboardingComplete: p.OnboardingComplete,
	}
	if out.Equipment == nil {
		out.Equipment = []string{}
	}
	if p.Name.Valid {
		out.Name = &p.Name.String
	}
	if p.Age.Valid {
		out.Age = &p.Age.Int64
	}
	if p.Sex.Valid {
		out.Sex = &p.Sex.String
	}
	if p.WeightKg.Valid {
		out.WeightKg = &p.WeightKg.Float64
	}
	if p.HeightCm.Valid {
		out.HeightCm = &p.HeightCm.Float64
	}
	if p.Goal.Valid {
		out.Goal = &p.Goal.String
	}
	if p.Experience.Valid {
		out.Experience = &p.Experience.String
	}
	if p.TrainingDays.Valid {
		out.TrainingDays = &p.TrainingDays.Int64
	}
	return out
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
