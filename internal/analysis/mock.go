package analysis

import (
	"context"
	"sync"

	"github.com/carpenike/repcoach/internal/media"
	"github.com/carpenike/repcoach/internal/models"
)

// Mock implements Analyzer with canned results. It records the exercise name
// of every technique review and every chat input.
type Mock struct {
	Detection     *Detection
	DetectErr     error
	Technique     *TechniqueReport
	TechniqueErr  error
	Scan          *BodyScanResult
	ScanErr       error
	Plan          *NutritionPlan
	PlanErr       error
	Prediction    *ProgressPrediction
	PredictErr    error
	Transcript    string
	TranscribeErr error
	Reply         string
	ChatErr       error

	mu                 sync.Mutex
	detections         int
	techniqueExercises []string
	chats              []ChatInput
}

func (m *Mock) DetectExercise(_ context.Context, _ media.Reference) (*Detection, error) {
	m.mu.Lock()
	m.detections++
	m.mu.Unlock()
	if m.DetectErr != nil {
		return nil, m.DetectErr
	}
	return m.Detection, nil
}

func (m *Mock) AnalyzeTechnique(_ context.Context, _ media.Reference, exercise string, _ *models.UserProfile) (*TechniqueReport, error) {
	m.mu.Lock()
	m.techniqueExercises = append(m.techniqueExercises, exercise)
	m.mu.Unlock()
	if m.TechniqueErr != nil {
		return nil, m.TechniqueErr
	}
	r := TechniqueReport{Score: 7, Summary: "Buena técnica."}
	if m.Technique != nil {
		r = *m.Technique
	}
	r.Exercise = exercise
	return &r, nil
}

func (m *Mock) BodyScan(_ context.Context, _ media.Reference, _ *models.UserProfile) (*BodyScanResult, error) {
	if m.ScanErr != nil {
		return nil, m.ScanErr
	}
	return m.Scan, nil
}

func (m *Mock) Nutrition(_ context.Context, _ *models.UserProfile, _ *models.BodyScan) (*NutritionPlan, error) {
	if m.PlanErr != nil {
		return nil, m.PlanErr
	}
	return m.Plan, nil
}

func (m *Mock) PredictProgress(_ context.Context, _ *models.UserProfile, _ *models.BodyScan) (*ProgressPrediction, error) {
	if m.PredictErr != nil {
		return nil, m.PredictErr
	}
	return m.Prediction, nil
}

func (m *Mock) Transcribe(_ context.Context, _, _ string, _ []byte) (string, error) {
	if m.TranscribeErr != nil {
		return "", m.TranscribeErr
	}
	return m.Transcript, nil
}

func (m *Mock) Chat(_ context.Context, in ChatInput) (string, error) {
	m.mu.Lock()
	m.chats = append(m.chats, in)
	m.mu.Unlock()
	if m.ChatErr != nil {
		return "", m.ChatErr
	}
	return m.Reply, nil
}

// Detections returns how many detection passes ran.
func (m *Mock) Detections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detections
}

// TechniqueExercises returns the exercise names technique reviews ran with.
func (m *Mock) TechniqueExercises() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.techniqueExercises...)
}

// Chats returns the chat inputs received.
func (m *Mock) Chats() []ChatInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatInput(nil), m.chats...)
}
