// Package handlers is the HTTP surface: the Twilio webhook, the JSON API for
// workouts, records and profiles, health and metrics.
package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/middleware"
	"github.com/carpenike/repcoach/internal/store"
)

// Deps holds everything the routes need.
type Deps struct {
	Store    store.Store
	Workouts WorkoutLogger
	Inbound  InboundHandler
	Log      *logger.Logger

	// WebhookLimit caps webhook deliveries per sender per minute. Zero
	// disables the limit.
	WebhookLimit int
	// APILimit caps API requests per client IP per minute. Zero disables
	// the limit.
	APILimit       int
	TrustedProxies []string
}

// Server is the routed HTTP handler plus the resources that need closing.
type Server struct {
	http.Handler
	Webhook  *Webhook
	limiters []*middleware.RateLimiter
}

// New builds the chi router.
func New(d Deps) *Server {
	s := &Server{}
	webhook := &Webhook{Inbound: d.Inbound, Log: d.Log.With("component", "webhook")}
	users := &Users{Store: d.Store, Workouts: d.Workouts, Log: d.Log.With("component", "api")}
	s.Webhook = webhook

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if d.WebhookLimit > 0 {
			rl := middleware.NewRateLimiter(d.WebhookLimit, time.Minute, middleware.WebhookSender)
			s.limiters = append(s.limiters, rl)
			r.Use(rl.Limit)
		}
		r.Post("/webhooks/twilio", webhook.Twilio)
	})

	r.Route("/api/users/{phone}", func(r chi.Router) {
		if d.APILimit > 0 {
			rl := middleware.NewRateLimiter(d.APILimit, time.Minute, middleware.ClientIP(d.TrustedProxies))
			s.limiters = append(s.limiters, rl)
			r.Use(rl.Limit)
		}
		r.Delete("/", users.Delete)
		r.Put("/profile", users.PutProfile)
		r.Post("/workouts", users.LogWorkout)
		r.Get("/records", users.Records)
		r.Get("/records/{exercise}/history", users.RecordHistory)
		r.Get("/exercises/{exercise}/history", users.ExerciseHistory)
	})

	s.Handler = r
	return s
}

// Close stops the rate limiters and waits for in-flight webhook events.
func (s *Server) Close() {
	for _, rl := range s.limiters {
		rl.Stop()
	}
	s.Webhook.Wait()
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathParam returns the unescaped chi URL parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
