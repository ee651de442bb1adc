package agent

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carpenike/repcoach/internal/analysis"
	"github.com/carpenike/repcoach/internal/database"
	"github.com/carpenike/repcoach/internal/llm"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/store"
)

// testDB creates a fresh in-memory SQLite database with migrations applied.
func testDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func setup(t *testing.T, historyTurns int) (*Agent, *store.SQLite, *analysis.Mock, *models.UserProfile) {
	t.Helper()
	st := store.NewSQLite(testDB(t))
	mock := &analysis.Mock{Reply: "¡Claro! Descansa 48 horas entre sesiones."}
	p, _, err := st.EnsureUserProfile(context.Background(), "+5215550001")
	require.NoError(t, err)
	return New(st, mock, historyTurns, logger.Nop()), st, mock, p
}

func TestReplyHelp(t *testing.T) {
	a, _, mock, p := setup(t, 10)
	for _, text := range []string{"ayuda", "AYUDA!", "help", "   "} {
		reply, err := a.Reply(context.Background(), p, text)
		require.NoError(t, err)
		assert.Equal(t, Help, reply, text)
	}
	assert.Empty(t, mock.Chats())
}

func TestReplyRecords(t *testing.T) {
	a, st, _, p := setup(t, 10)
	ctx := context.Background()

	reply, err := a.Reply(ctx, p, "records")
	require.NoError(t, err)
	assert.Equal(t, noRecords, reply)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, r := range []*models.PersonalRecord{
		{UserID: p.ID, ExerciseKey: "squat", Type: models.RecordOneRepMax, Value: 140, AchievedAt: at},
		{UserID: p.ID, ExerciseKey: "bench_press", Type: models.RecordOneRepMax, Value: 100, AchievedAt: at},
		{UserID: p.ID, ExerciseKey: "bench_press", Type: models.RecordMaxVolume, Value: 2400, AchievedAt: at},
	} {
		require.NoError(t, st.InsertPersonalRecord(ctx, r))
	}

	reply, err = a.Reply(ctx, p, "Mis Récords")
	require.NoError(t, err)
	assert.Contains(t, reply, "*Tus récords personales*")
	assert.Contains(t, reply, "1RM estimado: 100 kg")
	assert.Contains(t, reply, "Volumen total: 2400 kg")
	assert.Contains(t, reply, "1RM estimado: 140 kg")
	assert.Less(t, strings.Index(reply, "Bench"), strings.Index(reply, "Squat"), "grouped by exercise key")
}

func TestReplyNutritionNeedsBodyScan(t *testing.T) {
	a, st, mock, p := setup(t, 10)
	ctx := context.Background()

	for _, text := range []string{"nutrición", "progreso"} {
		reply, err := a.Reply(ctx, p, text)
		require.NoError(t, err)
		assert.Equal(t, needScan, reply)
	}

	require.NoError(t, st.CreateBodyScan(ctx, &models.BodyScan{
		UserID: p.ID, ImageRef: "gs://b/image/1.jpg",
		BodyFatPct: sql.NullFloat64{Float64: 18, Valid: true}, Summary: "ok", Raw: "{}",
	}))
	mock.Plan = &analysis.NutritionPlan{Calories: 2500, ProteinG: 160, CarbsG: 280, FatG: 80}
	mock.Prediction = &analysis.ProgressPrediction{HorizonWeeks: 12, ExpectedWeightKg: 78, Summary: "Vas bien"}

	reply, err := a.Reply(ctx, p, "Nutricion")
	require.NoError(t, err)
	assert.Contains(t, reply, "2500")

	reply, err = a.Reply(ctx, p, "predicción")
	require.NoError(t, err)
	assert.Contains(t, reply, "Vas bien")
}

func TestReplyNutritionAnalyzerError(t *testing.T) {
	a, st, mock, p := setup(t, 10)
	ctx := context.Background()
	require.NoError(t, st.CreateBodyScan(ctx, &models.BodyScan{UserID: p.ID, ImageRef: "gs://b/i.jpg", Raw: "{}"}))
	mock.PlanErr = &llm.APIError{Provider: "OpenAI", StatusCode: 500}

	_, err := a.Reply(ctx, p, "nutrition")
	var apiErr *llm.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestReplyChatUsesHistory(t *testing.T) {
	a, st, mock, p := setup(t, 2)
	ctx := context.Background()
	require.NoError(t, st.AppendMessage(ctx, p.ID, models.RoleUser, "hago 3 días por semana"))
	require.NoError(t, st.AppendMessage(ctx, p.ID, models.RoleAssistant, "¡Perfecto!"))
	require.NoError(t, st.AppendMessage(ctx, p.ID, models.RoleUser, "¿y el cardio?"))

	reply, err := a.Reply(ctx, p, "  ¿cuánto descanso?  ")
	require.NoError(t, err)
	assert.Equal(t, mock.Reply, reply)

	chats := mock.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "¿cuánto descanso?", chats[0].Text)
	assert.Equal(t, p.ID, chats[0].Profile.ID)
	assert.Equal(t, []llm.Message{
		{Role: models.RoleAssistant, Content: "¡Perfecto!"},
		{Role: models.RoleUser, Content: "¿y el cardio?"},
	}, chats[0].History)
}

func TestReplyChatWithoutHistory(t *testing.T) {
	a, st, mock, p := setup(t, 0)
	ctx := context.Background()
	require.NoError(t, st.AppendMessage(ctx, p.ID, models.RoleUser, "hola"))

	_, err := a.Reply(ctx, p, "¿qué tal?")
	require.NoError(t, err)
	assert.Empty(t, mock.Chats()[0].History)
}

func TestReplyChatParseErrorDegrades(t *testing.T) {
	a, _, mock, p := setup(t, 10)
	mock.ChatErr = &analysis.ParseError{Op: "chat", Err: errors.New("empty reply")}

	reply, err := a.Reply(context.Background(), p, "hola")
	require.NoError(t, err)
	assert.Equal(t, emptyReply, reply)
}

func TestReplyChatFailure(t *testing.T) {
	a, _, mock, p := setup(t, 10)
	mock.ChatErr = errors.New("timeout")

	_, err := a.Reply(context.Background(), p, "hola")
	assert.Error(t, err)
}
