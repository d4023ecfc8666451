package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/tracking"
)

// ─── Request DTOs ───────────────────────────────────────────────────────────

type sessionRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type sampleRequest struct {
	UserID         string    `json:"user_id" validate:"required"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	CapturedAt     time.Time `json:"captured_at"`
}

type lifecycleRequest struct {
	Event string `json:"event" validate:"required,oneof=foreground background"`
}

type pingRequest struct {
	UserID    string  `json:"user_id" validate:"required"`
	SessionID string  `json:"session_id" validate:"required"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type discoveryFlagRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	PlaceID   string `json:"place_id" validate:"required"`
	Value     bool   `json:"value"`
}

// ─── Session Handlers ───────────────────────────────────────────────────────

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	sessionID, err := s.tracker.Start(req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": sessionID,
		"state":      string(domain.StateTracking),
	})
}

func (s *Server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.tracker.Pause(req.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.StatePaused)})
}

func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.tracker.Resume(req.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.StateTracking)})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	summary, err := s.tracker.Stop(r.Context(), req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	sessionID, state, ok := s.tracker.Active(userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":     ok,
		"session_id": sessionID,
		"state":      string(state),
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session history unavailable")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	summaries, err := s.sessions.ListSummaries(r.Context(), userID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if summaries == nil {
		summaries = []domain.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": summaries})
}

// ─── Sample and Lifecycle Handlers ──────────────────────────────────────────

// handleSample accepts one raw GPS fix. It always returns 202: delivery into
// the pipeline is fire-and-forget, and drops are counted server-side.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	var req sampleRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	s.tracker.OnSample(req.UserID, domain.LocationSample{
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		AccuracyMeters: req.AccuracyMeters,
		CapturedAt:     req.CapturedAt,
	})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLifecycleEvent(w http.ResponseWriter, r *http.Request) {
	if s.lifecycle == nil {
		writeError(w, http.StatusServiceUnavailable, "lifecycle monitoring unavailable")
		return
	}
	var req lifecycleRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	ev := tracking.EventForeground
	if req.Event == "background" {
		ev = tracking.EventBackground
	}
	select {
	case s.lifecycle <- ev:
	default:
		// A saturated event queue means transitions are arriving faster than
		// the monitor drains them; the newest event wins anyway.
		s.log.Warn().Str("event", req.Event).Msg("lifecycle event dropped")
	}
	w.WriteHeader(http.StatusAccepted)
}

// ─── On-Demand Query Handlers ───────────────────────────────────────────────

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	results, err := s.pings.Query(r.Context(), req.UserID, req.SessionID, domain.LocationSample{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if results == nil {
		results = []domain.DiscoveryCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handlePingEligibility(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	eligibility, err := s.pings.Eligibility(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibility)
}

// ─── Discovery Handlers ─────────────────────────────────────────────────────

func (s *Server) handleListDiscoveries(w http.ResponseWriter, r *http.Request) {
	if s.discoveries == nil {
		writeError(w, http.StatusServiceUnavailable, "discovery store unavailable")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	pending := s.coordinator != nil && s.coordinator.Pending(sessionID)
	list, err := s.discoveries.ListDiscoveries(r.Context(), userID, sessionID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []domain.ConsolidatedDiscovery{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending":     pending,
		"discoveries": list,
	})
}

func (s *Server) handleSaveDiscovery(w http.ResponseWriter, r *http.Request) {
	s.setDiscoveryFlag(w, r, func(req discoveryFlagRequest) error {
		return s.discoveries.SetSaved(r.Context(), req.UserID, req.SessionID, req.PlaceID, req.Value)
	})
}

func (s *Server) handleDismissDiscovery(w http.ResponseWriter, r *http.Request) {
	s.setDiscoveryFlag(w, r, func(req discoveryFlagRequest) error {
		return s.discoveries.SetDismissed(r.Context(), req.UserID, req.SessionID, req.PlaceID, req.Value)
	})
}

func (s *Server) setDiscoveryFlag(w http.ResponseWriter, r *http.Request, apply func(discoveryFlagRequest) error) {
	if s.discoveries == nil {
		writeError(w, http.StatusServiceUnavailable, "discovery store unavailable")
		return
	}
	var req discoveryFlagRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := apply(req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
