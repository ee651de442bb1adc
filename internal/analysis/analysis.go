// Package analysis wraps the vision and language collaborators: exercise
// detection and technique review for videos, body-composition scans for
// photos, nutrition plans, progress predictions, transcription and chat.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/carpenike/repcoach/internal/llm"
	"github.com/carpenike/repcoach/internal/media"
	"github.com/carpenike/repcoach/internal/models"
)

// ErrVideoUnsupported is returned by DetectExercise when no video annotator
// is configured.
var ErrVideoUnsupported = errors.New("analysis: video analysis not configured")

// Analyzer is the analysis boundary consumed by the router, the dialogue and
// the agent.
type Analyzer interface {
	DetectExercise(ctx context.Context, video media.Reference) (*Detection, error)
	AnalyzeTechnique(ctx context.Context, video media.Reference, exercise string, profile *models.UserProfile) (*TechniqueReport, error)
	BodyScan(ctx context.Context, image media.Reference, profile *models.UserProfile) (*BodyScanResult, error)
	Nutrition(ctx context.Context, profile *models.UserProfile, scan *models.BodyScan) (*NutritionPlan, error)
	PredictProgress(ctx context.Context, profile *models.UserProfile, scan *models.BodyScan) (*ProgressPrediction, error)
	Transcribe(ctx context.Context, filename, contentType string, audio []byte) (string, error)
	Chat(ctx context.Context, in ChatInput) (string, error)
}

// Detection is the exercise recognized in a video.
type Detection struct {
	Exercise   string  `json:"exercise" jsonschema:"description=Name of the exercise being performed"`
	Confidence float64 `json:"confidence" jsonschema:"description=Confidence between 0 and 1"`
	Source     string  `json:"-"`
}

// TechniqueReport is the full biomechanics review of a lift.
type TechniqueReport struct {
	Exercise  string   `json:"exercise"`
	Score     int      `json:"score" jsonschema:"description=Overall technique score from 1 to 10"`
	Strengths []string `json:"strengths"`
	Issues    []string `json:"issues"`
	Cues      []string `json:"cues" jsonschema:"description=Short coaching cues to fix the issues"`
	Summary   string   `json:"summary"`
}

// BodyScanResult is a body-composition estimate from a photo.
type BodyScanResult struct {
	BodyFatPct      float64  `json:"body_fat_pct" jsonschema:"description=Estimated body fat percentage"`
	MuscleMass      string   `json:"muscle_mass" jsonschema:"enum=baja,enum=media,enum=alta"`
	Posture         string   `json:"posture"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// Meal is one entry of a nutrition plan.
type Meal struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NutritionPlan is a daily nutrition target with sample meals.
type NutritionPlan struct {
	Calories int    `json:"calories"`
	ProteinG int    `json:"protein_g"`
	CarbsG   int    `json:"carbs_g"`
	FatG     int    `json:"fat_g"`
	Meals    []Meal `json:"meals"`
	Notes    string `json:"notes"`
}

// ProgressPrediction projects body composition over a horizon.
type ProgressPrediction struct {
	HorizonWeeks       int      `json:"horizon_weeks"`
	ExpectedWeightKg   float64  `json:"expected_weight_kg"`
	ExpectedBodyFatPct float64  `json:"expected_body_fat_pct"`
	Milestones         []string `json:"milestones"`
	Summary            string   `json:"summary"`
}

// ChatInput is one general conversation turn.
type ChatInput struct {
	Profile *models.UserProfile
	History []llm.Message
	Text    string
}

// ParseError is returned when a collaborator reply cannot be decoded into
// the expected structure.
type ParseError struct {
	Op  string
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("analysis: %s: parse reply: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
