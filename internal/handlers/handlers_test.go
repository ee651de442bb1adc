package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carpenike/repcoach/internal/database"
	"github.com/carpenike/repcoach/internal/events"
	"github.com/carpenike/repcoach/internal/inbound"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/models"
	"github.com/carpenike/repcoach/internal/notify"
	"github.com/carpenike/repcoach/internal/records"
	"github.com/carpenike/repcoach/internal/store"
	"github.com/carpenike/repcoach/internal/workouts"
)

const phone = "+5215550001"

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

type nopPublisher struct{}

func (nopPublisher) PublishPRAchieved(context.Context, ...events.PRAchieved) error { return nil }
func (nopPublisher) Close() error                                                  { return nil }

type recordingInbound struct {
	mu  sync.Mutex
	evs []inbound.Event
}

func (f *recordingInbound) Handle(_ context.Context, ev inbound.Event) inbound.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evs = append(f.evs, ev)
	return inbound.Outcome{Branch: inbound.Classify(ev), Delivered: true}
}

type harness struct {
	srv     *Server
	store   *store.SQLite
	inbound *recordingInbound
}

func newHarness(t *testing.T, d Deps) *harness {
	t.Helper()
	st := store.NewSQLite(testDB(t))
	svc := workouts.NewService(st, records.NewEngine(st, nil), records.NewRecorder(st),
		nopPublisher{}, notify.New("", logger.Nop()), logger.Nop())
	in := &recordingInbound{}

	d.Store = st
	d.Workouts = svc
	d.Inbound = in
	d.Log = logger.Nop()
	srv := New(d)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, store: st, inbound: in}
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, req)
	return rr
}

func (h *harness) seedProfile(t *testing.T) *models.UserProfile {
	t.Helper()
	p, _, err := h.store.EnsureUserProfile(context.Background(), phone)
	require.NoError(t, err)
	return p
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func userPath(suffix string) string {
	return "/api/users/" + url.PathEscape(phone) + suffix
}

const squatSession = `{"date":"2026-05-01","exercises":[{"name":"sentadilla","sets":[
	{"reps":5,"weight":100},{"reps":3,"weight":110,"rpe":8.5}]}]}`

func TestHealth(t *testing.T) {
	h := newHarness(t, Deps{})
	rr := h.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestMetrics(t *testing.T) {
	h := newHarness(t, Deps{})
	rr := h.do("GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestTwilioWebhook(t *testing.T) {
	h := newHarness(t, Deps{})
	form := url.Values{
		"MessageSid": {"SM1"},
		"From":       {"whatsapp:" + phone},
		"To":         {"whatsapp:+14155238886"},
		"Body":       {"hola"},
	}
	req := httptest.NewRequest("POST", "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, req)
	h.srv.Webhook.Wait()

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/xml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<Response></Response>")

	require.Len(t, h.inbound.evs, 1)
	assert.Equal(t, phone, h.inbound.evs[0].From)
	assert.Equal(t, "hola", h.inbound.evs[0].Body)
	assert.Equal(t, "SM1", h.inbound.evs[0].MessageID)
}

func TestTwilioWebhook_MalformedStillAcknowledged(t *testing.T) {
	h := newHarness(t, Deps{})
	req := httptest.NewRequest("POST", "/webhooks/twilio", strings.NewReader("Body=hola"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, req)
	h.srv.Webhook.Wait()

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, h.inbound.evs)
}

func TestTwilioWebhook_RateLimitedPerSender(t *testing.T) {
	h := newHarness(t, Deps{WebhookLimit: 1})
	post := func(sid string) int {
		form := url.Values{"MessageSid": {sid}, "From": {"whatsapp:" + phone}, "Body": {"hola"}}
		req := httptest.NewRequest("POST", "/webhooks/twilio", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		h.srv.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, post("SM1"))
	assert.Equal(t, http.StatusTooManyRequests, post("SM2"))
	h.srv.Webhook.Wait()
	assert.Len(t, h.inbound.evs, 1)
}

func TestLogWorkout(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedProfile(t)

	rr := h.do("POST", userPath("/workouts"), squatSession)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "2026-05-01", body["date"])
	assert.EqualValues(t, 4, body["pr_count"])
	assert.Contains(t, body["summary"], "Nuevos récords personales")
}

func TestLogWorkout_Errors(t *testing.T) {
	h := newHarness(t, Deps{})

	rr := h.do("POST", userPath("/workouts"), squatSession)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	h.seedProfile(t)
	rr = h.do("POST", userPath("/workouts"), `{"exercises":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr)["error"], "at least one exercise")

	rr = h.do("POST", userPath("/workouts"), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecordsAndHistory(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedProfile(t)
	require.Equal(t, http.StatusCreated, h.do("POST", userPath("/workouts"), squatSession).Code)
	heavier := `{"date":"2026-05-08","exercises":[{"name":"Back Squat","sets":[{"reps":3,"weight":115}]}]}`
	require.Equal(t, http.StatusCreated, h.do("POST", userPath("/workouts"), heavier).Code)

	rr := h.do("GET", userPath("/records"), "")
	require.Equal(t, http.StatusOK, rr.Code)
	recs := decode(t, rr)["records"].([]any)
	assert.Len(t, recs, 4)

	rr = h.do("GET", userPath("/records/squat/history"), "")
	require.Equal(t, http.StatusOK, rr.Code)
	hist := decode(t, rr)
	assert.Equal(t, "squat", hist["exercise_key"])
	// Four records from the first session, then only a new e1RM: 115x3 moves
	// less load than 100x5.
	assert.Len(t, hist["records"].([]any), 5)

	rr = h.do("GET", userPath("/exercises/Sentadilla/history?limit=1"), "")
	require.Equal(t, http.StatusOK, rr.Code)
	ex := decode(t, rr)
	rows := ex["history"].([]any)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 115, rows[0].(map[string]any)["best_weight"])

	rr = h.do("GET", userPath("/exercises/squat/history?limit=zero"), "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecords_UnknownUser(t *testing.T) {
	h := newHarness(t, Deps{})
	assert.Equal(t, http.StatusNotFound, h.do("GET", userPath("/records"), "").Code)
}

func TestPutProfile(t *testing.T) {
	h := newHarness(t, Deps{})

	rr := h.do("PUT", userPath("/profile"), `{"name":"Ana","age":31,"sex":"female","weight_kg":62.5,"height_cm":165,
		"goal":"fuerza","experience":"intermedio","equipment":["barra"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, phone, body["phone"])
	assert.Equal(t, true, body["onboarding_complete"])

	p, err := h.store.GetUserProfile(context.Background(), phone)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name.String)
	assert.EqualValues(t, 31, p.Age.Int64)

	rr = h.do("PUT", userPath("/profile"), `{"age":-1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteUser(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedProfile(t)
	require.Equal(t, http.StatusCreated, h.do("POST", userPath("/workouts"), squatSession).Code)

	assert.Equal(t, http.StatusNoContent, h.do("DELETE", userPath(""), "").Code)
	assert.Equal(t, http.StatusNotFound, h.do("GET", userPath("/records"), "").Code)
	assert.Equal(t, http.StatusNotFound, h.do("DELETE", userPath(""), "").Code)
}
