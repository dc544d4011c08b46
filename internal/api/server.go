// Package api exposes the HTTP surface: the cron-authenticated processing
// trigger, outbox enqueue and status queries, the integration connect flows,
// and the health and metrics endpoints.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/brandwell/dispatch/internal/oauth"
	"github.com/brandwell/dispatch/internal/outbox"
)

// Triggerer runs one processing pass, sharing the runner's single-flight
// guard with the periodic ticker.
type Triggerer interface {
	Trigger(ctx context.Context) outbox.Summary
}

// ConnectService is the slice of the oauth service the handlers need.
type ConnectService interface {
	BuildAuthorizeURL(userID, brandID string) (string, error)
	CompleteAuthorization(ctx context.Context, code, stateToken string) (*oauth.StatePayload, error)
	ConnectBuffer(ctx context.Context, ownerID, brandID, accessToken string) error
}

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// Deps carries everything the server needs.
type Deps struct {
	Store   outbox.Store
	Runner  Triggerer
	Connect ConnectService

	// CronSecret authenticates external processing triggers. Empty disables
	// the check (local development only).
	CronSecret string

	// Metrics is mounted at /metrics; typically promhttp.Handler().
	Metrics http.Handler

	// Health checks run on /healthz, keyed by dependency name.
	Health map[string]Pinger

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// Server is the HTTP handler set.
type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Server{deps: deps}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Cron-Secret"},
	}).Handler)

	r.Get("/healthz", s.handleHealthz)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Post("/internal/outbox/run", s.handleTriggerRun)

	r.Route("/outbox", func(r chi.Router) {
		r.Post("/", s.handleEnqueue)
		r.Get("/", s.handleList)
	})

	r.Route("/integrations", func(r chi.Router) {
		r.Get("/google/connect", s.handleGoogleConnect)
		r.Get("/google/callback", s.handleGoogleCallback)
		r.Post("/buffer/connect", s.handleBufferConnect)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.deps.Clock.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.deps.Logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", s.deps.Clock.Since(start)).
			Msg("http request")
	})
}

// cronAuthorized compares the X-Cron-Secret header in constant time.
func (s *Server) cronAuthorized(r *http.Request) bool {
	if s.deps.CronSecret == "" {
		return true
	}
	got := r.Header.Get("X-Cron-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.CronSecret)) == 1
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func parseTimestamp(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	utc := t.UTC()
	return &utc, nil
}
