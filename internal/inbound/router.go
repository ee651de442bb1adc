package inbound

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carpenike/repcoach/internal/analysis"
	"github.com/carpenike/repcoach/internal/confirm"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/media"
	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/observability"
	"github.com/carpenike/repcoach/internal/store"
)

// Apology is sent whenever a branch fails.
const Apology = "Lo siento, hubo un problema procesando tu mensaje. Por favor intenta de nuevo."

const (
	locationAck     = "Recibí tu ubicación, ¡gracias!"
	emptyVoiceNote  = "No pude entender tu nota de voz. ¿Puedes repetirla o escribirme?"
	onboardingIntro = "Para analizar tu foto necesito completar tu perfil. Me falta: "
)

// Sender delivers a reply. Carriers chunk and retry on their own.
type Sender interface {
	Send(ctx context.Context, to, from, body string) error
}

// Store is the persistence the router uses directly.
type Store interface {
	EnsureUserProfile(ctx context.Context, phone string) (*models.UserProfile, bool, error)
	SetLastMedia(ctx context.Context, phone string, kind models.MediaKind, ref string) error
	GetPendingConfirmation(ctx context.Context, phone string) (*models.PendingConfirmation, error)
	CreateBodyScan(ctx context.Context, b *models.BodyScan) error
	AppendMessage(ctx context.Context, userID int64, role, content string) error
	RecordInbound(ctx context.Context, messageID, phone string) (bool, error)
}

// Analyzer is the slice of analysis the router calls itself.
type Analyzer interface {
	BodyScan(ctx context.Context, image media.Reference, profile *models.UserProfile) (*analysis.BodyScanResult, error)
	Transcribe(ctx context.Context, filename, contentType string, audio []byte) (string, error)
}

// Dialogue is the exercise confirmation dialogue.
type Dialogue interface {
	Start(ctx context.Context, profile *models.UserProfile, video media.Reference) (string, error)
	Answer(ctx context.Context, profile *models.UserProfile, pending *models.PendingConfirmation, text string) (confirm.Result, error)
}

// Agent answers general conversation.
type Agent interface {
	Reply(ctx context.Context, profile *models.UserProfile, text string) (string, error)
}

// Deps are the router's collaborators.
type Deps struct {
	Store    Store
	Media    media.Ingestor
	Analyzer Analyzer
	Dialogue Dialogue
	Agent    Agent
	Sender   Sender
	Log      *logger.Logger
}

// Router handles inbound events.
type Router struct {
	store    Store
	media    media.Ingestor
	analyzer Analyzer
	dialogue Dialogue
	agent    Agent
	sender   Sender
	log      *logger.Logger
	now      func() time.Time
}

// NewRouter creates a router.
func NewRouter(d Deps) *Router {
	return &Router{
		store:    d.Store,
		media:    d.Media,
		analyzer: d.Analyzer,
		dialogue: d.Dialogue,
		agent:    d.Agent,
		sender:   d.Sender,
		log:      d.Log.With("component", "router"),
		now:      time.Now,
	}
}

// Outcome reports what Handle did. Err is the branch failure that was turned
// into the apology, if any.
type Outcome struct {
	Branch    Branch
	Reply     string
	Duplicate bool
	Delivered bool
	Err       error
}

// Handle runs exactly one branch for ev and delivers its reply. Failures are
// logged and answered with Apology; Handle itself never fails, so the
// carrier can always acknowledge the delivery.
func (r *Router) Handle(ctx context.Context, ev Event) Outcome {
	branch := Classify(ev)
	out := Outcome{Branch: branch}
	log := r.log.With("phone", ev.From, "branch", string(branch), "message_id", ev.MessageID)

	if ev.MessageID != "" {
		fresh, err := r.store.RecordInbound(ctx, ev.MessageID, ev.From)
		switch {
		case err != nil:
			log.Warn("inbound receipt not recorded", "error", err)
		case !fresh:
			observability.RecordDuplicate()
			log.Info("duplicate delivery dropped")
			out.Duplicate = true
			return out
		}
	}
	observability.RecordInbound(string(branch))

	profile, created, err := r.store.EnsureUserProfile(ctx, ev.From)
	if err != nil {
		out.Err = fmt.Errorf("inbound: ensure profile: %w", err)
		out.Reply = Apology
	} else {
		if created {
			log.Info("new user")
		}
		turn := describe(ev, branch)
		reply, err := r.run(ctx, profile, ev, branch, &turn)
		if err != nil {
			out.Err = err
			reply = Apology
		}
		out.Reply = reply
		r.logTurns(ctx, log, profile.ID, turn, reply)
	}

	if out.Err != nil {
		observability.RecordBranchFailure(string(branch))
		log.Error("branch failed", "error", out.Err)
	}

	if err := r.sender.Send(ctx, ev.From, ev.To, out.Reply); err != nil {
		log.Error("reply not delivered", "error", err)
		return out
	}
	out.Delivered = true
	return out
}

// run dispatches to the branch handler. A panic in a branch is reported as
// a failure like any other.
func (r *Router) run(ctx context.Context, profile *models.UserProfile, ev Event, branch Branch, turn *string) (reply string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("inbound: %s branch panic: %v", branch, p)
		}
	}()

	switch branch {
	case BranchAudio:
		return r.handleAudio(ctx, profile, ev, turn)
	case BranchVideo:
		return r.handleVideo(ctx, profile, ev)
	case BranchImage:
		return r.handleImage(ctx, profile, ev)
	case BranchLocation:
		return locationAck, nil
	default:
		return r.handleText(ctx, profile, ev)
	}
}

// handleAudio transcribes a voice note and hands it to the agent. A voice
// note is never a confirmation answer.
func (r *Router) handleAudio(ctx context.Context, profile *models.UserProfile, ev Event, turn *string) (string, error) {
	ref, err := r.ingest(ctx, ev)
	if err != nil {
		return "", err
	}
	data := ev.Media.Data
	if data == nil {
		if data, err = r.media.Bytes(ctx, ref); err != nil {
			return "", fmt.Errorf("inbound: read voice note: %w", err)
		}
	}

	transcript, err := r.analyzer.Transcribe(ctx, media.Filename(ref), ref.ContentType, data)
	if err != nil {
		return "", fmt.Errorf("inbound: transcribe: %w", err)
	}
	if transcript == "" {
		return emptyVoiceNote, nil
	}
	*turn = "[nota de voz] " + transcript

	reply, err := r.agent.Reply(ctx, profile, transcript)
	if err != nil {
		return "", fmt.Errorf("inbound: agent: %w", err)
	}
	return reply, nil
}

// handleVideo opens a confirmation for the video, or reminds the user of the
// one already outstanding without analysing the new video.
func (r *Router) handleVideo(ctx context.Context, profile *models.UserProfile, ev Event) (string, error) {
	ref, err := r.ingest(ctx, ev)
	if err != nil {
		return "", err
	}
	if err := r.store.SetLastMedia(ctx, profile.Phone, models.MediaVideo, ref.URI); err != nil {
		return "", fmt.Errorf("inbound: record last video: %w", err)
	}

	pending, err := store.LivePending(ctx, r.store, profile.Phone, r.now())
	if err != nil {
		return "", fmt.Errorf("inbound: pending confirmation: %w", err)
	}
	if pending != nil {
		observability.RecordDialogue("reminded")
		return confirm.Reminder(pending), nil
	}
	return r.dialogue.Start(ctx, profile, ref)
}

// handleImage runs a body-composition scan on a photo.
func (r *Router) handleImage(ctx context.Context, profile *models.UserProfile, ev Event) (string, error) {
	ref, err := r.ingest(ctx, ev)
	if err != nil {
		return "", err
	}
	if err := r.store.SetLastMedia(ctx, profile.Phone, models.MediaImage, ref.URI); err != nil {
		return "", fmt.Errorf("inbound: record last image: %w", err)
	}
	if !profile.OnboardingComplete {
		return onboardingRequest(profile), nil
	}

	res, err := r.analyzer.BodyScan(ctx, ref, profile)
	if err != nil {
		return "", fmt.Errorf("inbound: body scan: %w", err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("inbound: encode body scan: %w", err)
	}
	scan := &models.BodyScan{
		UserID:     profile.ID,
		ImageRef:   ref.URI,
		BodyFatPct: sql.NullFloat64{Float64: res.BodyFatPct, Valid: res.BodyFatPct > 0},
		MuscleMass: sql.NullString{String: res.MuscleMass, Valid: res.MuscleMass != ""},
		Summary:    res.Summary,
		Raw:        string(raw),
	}
	if err := r.store.CreateBodyScan(ctx, scan); err != nil {
		return "", fmt.Errorf("inbound: save body scan: %w", err)
	}
	return analysis.FormatBodyScan(res), nil
}

// handleText answers an outstanding confirmation if there is one, and
// otherwise talks to the agent. Text the dialogue does not recognize also
// goes to the agent.
func (r *Router) handleText(ctx context.Context, profile *models.UserProfile, ev Event) (string, error) {
	pending, err := store.LivePending(ctx, r.store, profile.Phone, r.now())
	if err != nil {
		return "", fmt.Errorf("inbound: pending confirmation: %w", err)
	}
	if pending != nil {
		res, err := r.dialogue.Answer(ctx, profile, pending, ev.Body)
		if err != nil {
			return "", err
		}
		if res.Handled {
			return res.Reply, nil
		}
	}

	reply, err := r.agent.Reply(ctx, profile, ev.Body)
	if err != nil {
		return "", fmt.Errorf("inbound: agent: %w", err)
	}
	return reply, nil
}

func (r *Router) ingest(ctx context.Context, ev Event) (media.Reference, error) {
	var (
		ref media.Reference
		err error
	)
	if ev.Media.Data != nil {
		ref, err = r.media.IngestBytes(ctx, ev.Media.Data, ev.Media.ContentType)
	} else {
		ref, err = r.media.Ingest(ctx, ev.Media.URL, ev.Media.ContentType)
	}
	if err != nil {
		return media.Reference{}, fmt.Errorf("inbound: ingest media: %w", err)
	}
	return ref, nil
}

func (r *Router) logTurns(ctx context.Context, log *logger.Logger, userID int64, turn, reply string) {
	if turn != "" {
		if err := r.store.AppendMessage(ctx, userID, models.RoleUser, turn); err != nil {
			log.Warn("user turn not recorded", "error", err)
		}
	}
	if err := r.store.AppendMessage(ctx, userID, models.RoleAssistant, reply); err != nil {
		log.Warn("assistant turn not recorded", "error", err)
	}
}

func onboardingRequest(p *models.UserProfile) string {
	var missing []string
	if !p.Age.Valid {
		missing = append(missing, "edad")
	}
	if !p.Sex.Valid {
		missing = append(missing, "sexo")
	}
	if !p.WeightKg.Valid {
		missing = append(missing, "peso")
	}
	if !p.HeightCm.Valid {
		missing = append(missing, "altura")
	}
	if !p.Goal.Valid {
		missing = append(missing, "objetivo")
	}
	if !p.Experience.Valid {
		missing = append(missing, "experiencia")
	}
	if len(missing) == 0 {
		return onboardingIntro + "confirmar tus datos."
	}
	return onboardingIntro + strings.Join(missing, ", ") + "."
}
