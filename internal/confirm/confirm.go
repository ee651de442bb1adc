// Package confirm implements the exercise-video confirmation dialogue: after
// a video arrives the detected exercise is put to the user, who confirms,
// rejects and then corrects it before the technique review runs.
package confirm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carpenike/repcoach/internal/analysis"
	"github.com/carpenike/repcoach/internal/exercise"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/media"
	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/observability"
)

// State is where a user stands in the dialogue.
type State int

const (
	StateNone State = iota
	StateDetected
	StateAwaitingCorrection
)

func (s State) String() string {
	switch s {
	case StateDetected:
		return models.PendingDetected
	case StateAwaitingCorrection:
		return models.PendingAwaitingCorrection
	default:
		return "none"
	}
}

// StateOf derives the dialogue state from a pending confirmation. A nil
// pending confirmation is StateNone.
func StateOf(p *models.PendingConfirmation) State {
	switch {
	case p == nil:
		return StateNone
	case p.AwaitingCorrection():
		return StateAwaitingCorrection
	default:
		return StateDetected
	}
}

// Action is the outcome of interpreting one text message.
type Action int

const (
	// ActionFallThrough means the text is not a dialogue answer.
	ActionFallThrough Action = iota
	ActionConfirm
	ActionReject
	ActionCorrect
)

func (a Action) String() string {
	switch a {
	case ActionConfirm:
		return "confirm"
	case ActionReject:
		return "reject"
	case ActionCorrect:
		return "correct"
	default:
		return "fall_through"
	}
}

// Decision is the interpreted answer. Correction carries the verbatim text
// for ActionCorrect.
type Decision struct {
	Action     Action
	Correction string
}

var (
	affirmative = map[string]bool{"si": true, "yes": true, "correcto": true, "exacto": true}
	negative    = map[string]bool{"no": true, "incorrecto": true, "nope": true}
)

// Decide interprets text in state. Keyword matching is case and accent
// insensitive and the keyword must be the whole message, so "sí, correcto"
// falls through to conversation. A correction is taken verbatim.
func Decide(state State, text string) Decision {
	switch state {
	case StateDetected:
		answer := exercise.Clean(strings.TrimSpace(text))
		switch {
		case affirmative[answer]:
			return Decision{Action: ActionConfirm}
		case negative[answer]:
			return Decision{Action: ActionReject}
		}
	case StateAwaitingCorrection:
		if corrected := strings.TrimSpace(text); corrected != "" {
			return Decision{Action: ActionCorrect, Correction: corrected}
		}
	}
	return Decision{Action: ActionFallThrough}
}

// Store is the pending-confirmation persistence the dialogue drives.
type Store interface {
	UpsertPendingConfirmation(ctx context.Context, p *models.PendingConfirmation) error
	DeletePendingConfirmation(ctx context.Context, phone string) error
}

// Analyzer runs exercise detection and technique review.
type Analyzer interface {
	DetectExercise(ctx context.Context, video media.Reference) (*analysis.Detection, error)
	AnalyzeTechnique(ctx context.Context, video media.Reference, exercise string, profile *models.UserProfile) (*analysis.TechniqueReport, error)
}

// Result is the dialogue's reply to one message. Handled is false when the
// text fell through and belongs to general conversation.
type Result struct {
	Handled bool
	Action  Action
	Reply   string
}

// Dialogue drives the confirmation state machine.
type Dialogue struct {
	store    Store
	analyzer Analyzer
	ttl      time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// NewDialogue creates a dialogue whose pending confirmations expire after
// ttl.
func NewDialogue(store Store, analyzer Analyzer, ttl time.Duration, log *logger.Logger) *Dialogue {
	return &Dialogue{
		store:    store,
		analyzer: analyzer,
		ttl:      ttl,
		log:      log.With("component", "confirm"),
		now:      time.Now,
	}
}

// Question is the prompt asking the user to confirm a detected exercise.
func Question(exerciseName string) string {
	return fmt.Sprintf("¿Estás haciendo %s, correcto? Responde *sí* o *no*.", exerciseName)
}

// Reminder is the reply to a new video while a question is outstanding.
func Reminder(p *models.PendingConfirmation) string {
	if p.AwaitingCorrection() {
		return "Todavía estoy esperando el nombre del ejercicio de tu video anterior. Escríbelo y analizo tu técnica."
	}
	return "Antes de analizar otro video, responde a mi pregunta pendiente: " + Question(p.DetectedExercise)
}

const correctionPrompt = "¿Qué ejercicio estabas haciendo? Escribe el nombre y analizaré tu técnica."

// Start detects the exercise in video and opens a confirmation for the user.
func (d *Dialogue) Start(ctx context.Context, profile *models.UserProfile, video media.Reference) (string, error) {
	det, err := d.analyzer.DetectExercise(ctx, video)
	if err != nil {
		return "", fmt.Errorf("confirm: detect: %w", err)
	}

	now := d.now().UTC()
	p := &models.PendingConfirmation{
		Phone:            profile.Phone,
		UserID:           profile.ID,
		DetectedExercise: det.Exercise,
		VideoRef:         video.URI,
		VideoURL:         video.URL,
		State:            models.PendingDetected,
		CreatedAt:        now,
		ExpiresAt:        now.Add(d.ttl),
	}
	if err := d.store.UpsertPendingConfirmation(ctx, p); err != nil {
		return "", fmt.Errorf("confirm: open: %w", err)
	}

	observability.RecordDialogue("detected")
	d.log.Info("exercise detected", "phone", profile.Phone, "exercise", det.Exercise,
		"confidence", det.Confidence, "source", det.Source)
	return Question(det.Exercise), nil
}

// Answer interprets text against the user's outstanding confirmation.
func (d *Dialogue) Answer(ctx context.Context, profile *models.UserProfile, pending *models.PendingConfirmation, text string) (Result, error) {
	dec := Decide(StateOf(pending), text)
	observability.RecordDialogue(dec.Action.String())

	switch dec.Action {
	case ActionConfirm:
		if err := d.store.DeletePendingConfirmation(ctx, pending.Phone); err != nil {
			return Result{}, fmt.Errorf("confirm: close: %w", err)
		}
		reply, err := d.review(ctx, profile, pending, pending.DetectedExercise)
		if err != nil {
			return Result{}, err
		}
		return Result{Handled: true, Action: dec.Action, Reply: reply}, nil

	case ActionReject:
		updated := *pending
		updated.State = models.PendingAwaitingCorrection
		updated.ExpiresAt = d.now().UTC().Add(d.ttl)
		if err := d.store.UpsertPendingConfirmation(ctx, &updated); err != nil {
			return Result{}, fmt.Errorf("confirm: reject: %w", err)
		}
		return Result{Handled: true, Action: dec.Action, Reply: correctionPrompt}, nil

	case ActionCorrect:
		reply, reviewErr := d.review(ctx, profile, pending, dec.Correction)
		if err := d.store.DeletePendingConfirmation(ctx, pending.Phone); err != nil {
			return Result{}, fmt.Errorf("confirm: close: %w", err)
		}
		if reviewErr != nil {
			return Result{}, reviewErr
		}
		return Result{Handled: true, Action: dec.Action, Reply: reply}, nil
	}

	return Result{Action: dec.Action}, nil
}

func (d *Dialogue) review(ctx context.Context, profile *models.UserProfile, pending *models.PendingConfirmation, name string) (string, error) {
	video := media.Reference{URI: pending.VideoRef, URL: pending.VideoURL, ContentType: "video/mp4"}
	report, err := d.analyzer.AnalyzeTechnique(ctx, video, name, profile)
	if err != nil {
		return "", fmt.Errorf("confirm: technique review: %w", err)
	}
	d.log.Info("technique reviewed", "phone", pending.Phone, "exercise", name, "score", report.Score)
	return analysis.FormatTechnique(report), nil
}
