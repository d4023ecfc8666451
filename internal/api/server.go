// Package api provides the HTTP server for Strollr: session control, sample
// ingestion, lifecycle events, on-demand queries and discovery browsing.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/strollr-labs/strollr/internal/discovery"
	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/logging"
	"github.com/strollr-labs/strollr/internal/tracking"
)

// Server is the Strollr HTTP API server.
type Server struct {
	tracker     *tracking.Manager
	pings       *discovery.PingManager
	coordinator *discovery.Coordinator
	discoveries domain.DiscoveryStore
	sessions    domain.SessionStore

	// lifecycle receives host foreground/background transitions reported by
	// the mobile client; the lifecycle monitor consumes the other end.
	lifecycle chan<- tracking.LifecycleEvent

	metricsEnabled bool
	validate       *validator.Validate
	log            zerolog.Logger
}

// ServerConfig wires the server's collaborators. Lifecycle, Coordinator and
// the stores are optional; routes needing an absent collaborator return 503.
type ServerConfig struct {
	Tracker     *tracking.Manager
	Pings       *discovery.PingManager
	Coordinator *discovery.Coordinator
	Discoveries domain.DiscoveryStore
	Sessions    domain.SessionStore
	Lifecycle   chan<- tracking.LifecycleEvent
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		tracker:     cfg.Tracker,
		pings:       cfg.Pings,
		coordinator: cfg.Coordinator,
		discoveries: cfg.Discoveries,
		sessions:    cfg.Sessions,
		lifecycle:   cfg.Lifecycle,
		validate:    validator.New(),
		log:         logging.Component("api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/start", s.handleStartSession)
			r.Post("/pause", s.handlePauseSession)
			r.Post("/resume", s.handleResumeSession)
			r.Post("/stop", s.handleStopSession)
			r.Get("/active", s.handleActiveSession)
			r.Get("/history", s.handleSessionHistory)
			r.Get("/{sessionID}/discoveries", s.handleListDiscoveries)
		})

		// Sample ingestion runs hot during a walk; rate-limit per IP to the
		// plausible GPS fix rate, not to API-abuse levels.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(120, time.Minute))
			r.Post("/samples", s.handleSample)
		})

		r.Post("/lifecycle", s.handleLifecycleEvent)

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(30, time.Minute))
			r.Post("/ping", s.handlePing)
		})
		r.Get("/ping/eligibility", s.handlePingEligibility)

		r.Route("/discoveries", func(r chi.Router) {
			r.Post("/save", s.handleSaveDiscovery)
			r.Post("/dismiss", s.handleDismissDiscovery)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// requestLogger logs one line per request with status and duration. The
// sample-ingest path runs hot, so it logs at debug only.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ev := s.log.Info()
		if r.URL.Path == "/v1/samples" {
			ev = s.log.Debug()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps a domain error to an HTTP status. Typed failures get
// distinct statuses so the client can render them instead of crashing.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	if cooldown, ok := domain.InCooldown(err); ok {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error": map[string]interface{}{
				"message":                    "query in cooldown",
				"type":                       "cooldown",
				"cooldown_remaining_seconds": cooldown.Remaining.Seconds(),
			},
		})
		return
	}
	switch {
	case err == domain.ErrNoCredits:
		writeError(w, http.StatusPaymentRequired, "no query credits remaining")
	case err == domain.ErrNoActiveSession:
		writeError(w, http.StatusNotFound, "no active session")
	case err == domain.ErrNotPaused:
		writeError(w, http.StatusConflict, "session is not paused")
	case err == domain.ErrSessionStopped:
		writeError(w, http.StatusConflict, "session already stopped")
	case err == domain.ErrDiscoveryNotFound:
		writeError(w, http.StatusNotFound, "discovery not found")
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusBadGateway, "query failed, please retry")
	}
}

// decodeAndValidate decodes a JSON body into dst and runs struct validation.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}
