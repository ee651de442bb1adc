package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carpenike/repcoach/internal/exercise"
	"github.com/carpenike/repcoach/internal/llm"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/media"
	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/observability"
)

const coachPersona = `You are RepCoach, a strength and conditioning coach chatting over WhatsApp.
Always answer in Spanish. Be concise, warm and practical. Never give medical diagnoses.`

// LLMAnalyzer implements Analyzer on a language model, with an optional video
// annotator for exercise detection and pose data.
type LLMAnalyzer struct {
	provider llm.Provider
	video    VideoAnnotator
	log      *logger.Logger
}

// NewLLMAnalyzer creates an analyzer. video may be nil, in which case
// DetectExercise returns ErrVideoUnsupported and technique reviews run
// without pose data.
func NewLLMAnalyzer(provider llm.Provider, video VideoAnnotator, log *logger.Logger) *LLMAnalyzer {
	return &LLMAnalyzer{provider: provider, video: video, log: log.With("component", "analysis")}
}

// DetectExercise recognizes the exercise in a video. A label that resolves
// to a known exercise wins outright; otherwise the model picks from the
// labels.
func (a *LLMAnalyzer) DetectExercise(ctx context.Context, video media.Reference) (*Detection, error) {
	if a.video == nil {
		return nil, ErrVideoUnsupported
	}
	start := time.Now()
	ann, err := a.video.Annotate(ctx, video.URI, false)
	observability.ObserveAnalysis("annotate_labels", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("analysis: detect exercise: %w", err)
	}

	if d := matchLabels(ann.Labels); d != nil {
		return d, nil
	}

	d, err := generate[Detection](ctx, a, "detect_exercise", llm.Request{
		System: "You identify gym exercises from video annotations. Reply with the single most likely exercise.",
		Prompt: "Video annotations:\n" + ann.Describe(),
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(d.Exercise) == "" {
		return nil, &ParseError{Op: "detect_exercise", Err: errors.New("empty exercise")}
	}
	if key := exercise.Normalize(d.Exercise); exercise.IsKnown(key) {
		d.Exercise = exercise.DisplayName(key)
	}
	d.Source = "model"
	return d, nil
}

func matchLabels(labels []Label) *Detection {
	for _, l := range labels {
		if key := exercise.Normalize(l.Name); exercise.IsKnown(key) {
			return &Detection{Exercise: exercise.DisplayName(key), Confidence: l.Confidence, Source: "labels"}
		}
	}
	return nil
}

// AnalyzeTechnique reviews the lift in video as the named exercise. The name
// is used as given, so a user correction reaches the model verbatim.
func (a *LLMAnalyzer) AnalyzeTechnique(ctx context.Context, video media.Reference, name string, profile *models.UserProfile) (*TechniqueReport, error) {
	pose := "not available"
	if a.video != nil && video.URI != "" {
		start := time.Now()
		ann, err := a.video.Annotate(ctx, video.URI, true)
		observability.ObserveAnalysis("annotate_pose", time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("analysis: technique pose: %w", err)
		}
		pose = ann.Describe()
	}

	report, err := generate[TechniqueReport](ctx, a, "technique", llm.Request{
		System: coachPersona + "\nYou review lifting technique from pose tracking data of a video.",
		Prompt: fmt.Sprintf("Exercise: %s\n\nAthlete:\n%s\n\nPose data:\n%s\n\nReview the technique.",
			name, profileContext(profile), pose),
	})
	if err != nil {
		return nil, err
	}
	report.Exercise = name
	return report, nil
}

// BodyScan estimates body composition from a photo.
func (a *LLMAnalyzer) BodyScan(ctx context.Context, image media.Reference, profile *models.UserProfile) (*BodyScanResult, error) {
	return generate[BodyScanResult](ctx, a, "body_scan", llm.Request{
		System:   coachPersona + "\nYou estimate body composition from a physique photo. Estimates are approximate.",
		Prompt:   "Athlete:\n" + profileContext(profile) + "\n\nEstimate the body composition in the attached photo.",
		ImageURL: image.URL,
	})
}

// Nutrition builds a daily plan from the profile and the latest scan.
func (a *LLMAnalyzer) Nutrition(ctx context.Context, profile *models.UserProfile, scan *models.BodyScan) (*NutritionPlan, error) {
	return generate[NutritionPlan](ctx, a, "nutrition", llm.Request{
		System: coachPersona + "\nYou design daily nutrition plans with macro targets.",
		Prompt: fmt.Sprintf("Athlete:\n%s\n\nLatest body scan:\n%s\n\nDesign a daily nutrition plan.",
			profileContext(profile), scanContext(scan)),
	})
}

// PredictProgress projects body composition from the profile and the latest
// scan.
func (a *LLMAnalyzer) PredictProgress(ctx context.Context, profile *models.UserProfile, scan *models.BodyScan) (*ProgressPrediction, error) {
	return generate[ProgressPrediction](ctx, a, "prediction", llm.Request{
		System: coachPersona + "\nYou project realistic body composition progress for the next 12 weeks.",
		Prompt: fmt.Sprintf("Athlete:\n%s\n\nLatest body scan:\n%s\n\nPredict the progress.",
			profileContext(profile), scanContext(scan)),
	})
}

// Transcribe converts a voice note to text.
func (a *LLMAnalyzer) Transcribe(ctx context.Context, filename, contentType string, audio []byte) (string, error) {
	start := time.Now()
	text, err := a.provider.Transcribe(ctx, filename, contentType, bytes.NewReader(audio))
	observability.ObserveAnalysis("transcribe", time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("analysis: transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Chat answers one general conversation turn.
func (a *LLMAnalyzer) Chat(ctx context.Context, in ChatInput) (string, error) {
	start := time.Now()
	resp, err := a.provider.Generate(ctx, llm.Request{
		System:  coachPersona + "\n\nAthlete:\n" + profileContext(in.Profile),
		History: in.History,
		Prompt:  in.Text,
		Options: llm.Options{Temperature: 0.7},
	})
	observability.ObserveAnalysis("chat", time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("analysis: chat: %w", err)
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", &ParseError{Op: "chat", Err: errors.New("empty reply")}
	}
	return reply, nil
}

// generate runs a structured completion and decodes the reply into T.
func generate[T any](ctx context.Context, a *LLMAnalyzer, op string, req llm.Request) (*T, error) {
	req.Schema = &llm.Schema{Name: op, Schema: llm.GenerateSchema[T]()}
	if req.Options.Temperature == 0 {
		req.Options.Temperature = 0.2
	}

	start := time.Now()
	resp, err := a.provider.Generate(ctx, req)
	observability.ObserveAnalysis(op, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", op, err)
	}

	raw := llm.StripCodeFence(resp.Content)
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		a.log.Warn("unparseable analysis reply", "op", op, "model", resp.Model, "bytes", len(raw))
		return nil, &ParseError{Op: op, Raw: raw, Err: err}
	}
	a.log.Debug("analysis complete", "op", op, "model", resp.Model, "tokens", resp.TokensUsed, "duration", resp.Duration)
	return &out, nil
}

func profileContext(p *models.UserProfile) string {
	if p == nil {
		return "unknown"
	}
	var lines []string
	add := func(label, value string) {
		lines = append(lines, label+": "+value)
	}
	if p.Name.Valid {
		add("name", p.Name.String)
	}
	if p.Age.Valid {
		add("age", fmt.Sprint(p.Age.Int64))
	}
	if p.Sex.Valid {
		add("sex", p.Sex.String)
	}
	if p.WeightKg.Valid {
		add("weight_kg", fmt.Sprintf("%.1f", p.WeightKg.Float64))
	}
	if p.HeightCm.Valid {
		add("height_cm", fmt.Sprintf("%.0f", p.HeightCm.Float64))
	}
	if p.Goal.Valid {
		add("goal", p.Goal.String)
	}
	if p.Experience.Valid {
		add("experience", p.Experience.String)
	}
	if len(p.Equipment) > 0 {
		add("equipment", strings.Join(p.Equipment, ", "))
	}
	if p.TrainingDays.Valid {
		add("training_days_per_week", fmt.Sprint(p.TrainingDays.Int64))
	}
	if len(lines) == 0 {
		return "no profile data yet"
	}
	return strings.Join(lines, "\n")
}

func scanContext(s *models.BodyScan) string {
	if s == nil {
		return "none"
	}
	var b strings.Builder
	if s.BodyFatPct.Valid {
		fmt.Fprintf(&b, "body_fat_pct: %.1f\n", s.BodyFatPct.Float64)
	}
	if s.MuscleMass.Valid {
		fmt.Fprintf(&b, "muscle_mass: %s\n", s.MuscleMass.String)
	}
	fmt.Fprintf(&b, "summary: %s\ntaken: %s", s.Summary, s.CreatedAt.Format("2006-01-02"))
	return b.String()
}
