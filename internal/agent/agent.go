// Package agent answers the general conversation: a handful of fixed commands
// backed by stored data, and free chat with the language model for
// everything else.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carpenike/repcoach/internal/analysis"
	"github.com/carpenike/repcoach/internal/exercise"
	"github.com/carpenike/repcoach/internal/llm"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/records"
)

// ErrNoBodyScan is returned when a command needs a body scan the user has
// not sent yet.
var ErrNoBodyScan = errors.New("agent: no body scan on file")

// Store is the persistence the agent reads.
type Store interface {
	ListCurrentRecords(ctx context.Context, userID int64) ([]*models.PersonalRecord, error)
	LatestBodyScan(ctx context.Context, userID int64) (*models.BodyScan, error)
	RecentMessages(ctx context.Context, userID int64, n int) ([]models.Message, error)
}

// Analyzer is the slice of analysis the agent calls.
type Analyzer interface {
	Nutrition(ctx context.Context, profile *models.UserProfile, scan *models.BodyScan) (*analysis.NutritionPlan, error)
	PredictProgress(ctx context.Context, profile *models.UserProfile, scan *models.BodyScan) (*analysis.ProgressPrediction, error)
	Chat(ctx context.Context, in analysis.ChatInput) (string, error)
}

type command int

const (
	cmdChat command = iota
	cmdRecords
	cmdNutrition
	cmdPrediction
	cmdHelp
)

var commands = map[string]command{
	"records":     cmdRecords,
	"mis records": cmdRecords,
	"prs":         cmdRecords,
	"mis prs":     cmdRecords,
	"nutricion":   cmdNutrition,
	"nutrition":   cmdNutrition,
	"prediccion":  cmdPrediction,
	"progreso":    cmdPrediction,
	"prediction":  cmdPrediction,
	"ayuda":       cmdHelp,
	"help":        cmdHelp,
}

// Help lists the commands.
const Help = `*Esto es lo que puedo hacer:*
• Envíame un *video* de tu ejercicio y analizo tu técnica.
• Envíame una *foto* y estimo tu composición corporal.
• *records*: tus récords personales.
• *nutrición*: tu plan de alimentación.
• *progreso*: predicción de tu progreso.
• O simplemente escríbeme tus dudas de entrenamiento.`

const (
	noRecords  = "Todavía no tienes récords. Registra un entrenamiento y empezaré a seguir tu progreso."
	needScan   = "Primero necesito una foto para analizar tu composición corporal. Envíame una foto de cuerpo completo y vuelve a intentarlo."
	emptyReply = "No estoy seguro de cómo responder a eso. Escribe *ayuda* para ver lo que puedo hacer."
)

// Agent answers text that is not part of the confirmation dialogue.
type Agent struct {
	store        Store
	analyzer     Analyzer
	historyTurns int
	log          *logger.Logger
}

// New creates an agent that sends the last historyTurns conversation turns
// to the model.
func New(store Store, analyzer Analyzer, historyTurns int, log *logger.Logger) *Agent {
	if historyTurns < 0 {
		historyTurns = 0
	}
	return &Agent{
		store:        store,
		analyzer:     analyzer,
		historyTurns: historyTurns,
		log:          log.With("component", "agent"),
	}
}

// Reply produces the answer to text from profile.
func (a *Agent) Reply(ctx context.Context, profile *models.UserProfile, text string) (string, error) {
	cleaned := exercise.Clean(text)
	if cleaned == "" {
		return Help, nil
	}

	var (
		reply string
		err   error
	)
	switch commands[cleaned] {
	case cmdRecords:
		reply, err = a.records(ctx, profile)
	case cmdNutrition:
		reply, err = a.nutrition(ctx, profile)
	case cmdPrediction:
		reply, err = a.prediction(ctx, profile)
	case cmdHelp:
		reply = Help
	default:
		reply, err = a.chat(ctx, profile, text)
	}
	if errors.Is(err, ErrNoBodyScan) {
		return needScan, nil
	}
	return reply, err
}

func (a *Agent) records(ctx context.Context, profile *models.UserProfile) (string, error) {
	recs, err := a.store.ListCurrentRecords(ctx, profile.ID)
	if err != nil {
		return "", fmt.Errorf("agent: records: %w", err)
	}
	return FormatRecords(recs), nil
}

// FormatRecords renders current records grouped by exercise. recs must be
// ordered by exercise.
func FormatRecords(recs []*models.PersonalRecord) string {
	if len(recs) == 0 {
		return noRecords
	}
	var b strings.Builder
	b.WriteString("*Tus récords personales*\n")
	last := ""
	for _, r := range recs {
		if r.ExerciseKey != last {
			fmt.Fprintf(&b, "\n*%s*\n", exercise.DisplayName(r.ExerciseKey))
			last = r.ExerciseKey
		}
		fmt.Fprintf(&b, "• %s\n", records.FormatRecord(r))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Agent) latestScan(ctx context.Context, profile *models.UserProfile) (*models.BodyScan, error) {
	scan, err := a.store.LatestBodyScan(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("agent: latest body scan: %w", err)
	}
	if scan == nil {
		return nil, ErrNoBodyScan
	}
	return scan, nil
}

func (a *Agent) nutrition(ctx context.Context, profile *models.UserProfile) (string, error) {
	scan, err := a.latestScan(ctx, profile)
	if err != nil {
		return "", err
	}
	plan, err := a.analyzer.Nutrition(ctx, profile, scan)
	if err != nil {
		return "", fmt.Errorf("agent: nutrition: %w", err)
	}
	return analysis.FormatNutrition(plan), nil
}

func (a *Agent) prediction(ctx context.Context, profile *models.UserProfile) (string, error) {
	scan, err := a.latestScan(ctx, profile)
	if err != nil {
		return "", err
	}
	pred, err := a.analyzer.PredictProgress(ctx, profile, scan)
	if err != nil {
		return "", fmt.Errorf("agent: prediction: %w", err)
	}
	return analysis.FormatPrediction(pred), nil
}

func (a *Agent) chat(ctx context.Context, profile *models.UserProfile, text string) (string, error) {
	var history []llm.Message
	if a.historyTurns > 0 {
		msgs, err := a.store.RecentMessages(ctx, profile.ID, a.historyTurns)
		if err != nil {
			// Chat still works without context.
			a.log.Warn("conversation history unavailable", "phone", profile.Phone, "error", err)
		}
		for _, m := range msgs {
			history = append(history, llm.Message{Role: m.Role, Content: m.Content})
		}
	}

	reply, err := a.analyzer.Chat(ctx, analysis.ChatInput{Profile: profile, History: history, Text: strings.TrimSpace(text)})
	if err != nil {
		var perr *analysis.ParseError
		if errors.As(err, &perr) {
			return emptyReply, nil
		}
		return "", fmt.Errorf("agent: chat: %w", err)
	}
	return reply, nil
}
