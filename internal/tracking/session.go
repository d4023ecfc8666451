package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/logging"
	"github.com/strollr-labs/strollr/internal/infra/observability"
)

// ─── Session State Machine ──────────────────────────────────────────────────
// idle → tracking ⇄ paused → stopped. One active session per user. The route
// and window are mutated only by the session's own run goroutine; samples
// arrive through a bounded channel so sample delivery never blocks on
// pipeline work (single-writer discipline).

// ingestBuffer bounds the per-session sample queue. A full queue drops the
// newest sample rather than blocking the producer.
const ingestBuffer = 64

// FinalizedSession is handed to the end-of-walk flow when a session stops.
// Route is the session's own final slice; the session is gone afterwards, so
// the receiver owns it.
type FinalizedSession struct {
	Summary domain.SessionSummary
	Route   []domain.LocationSample
}

type session struct {
	mu       sync.Mutex
	id       string
	userID   string
	state    domain.SessionState
	closed   bool // samples channel closed; no further sends allowed
	route    []domain.LocationSample
	window   []domain.LocationSample
	started  time.Time
	rejected int

	samples chan domain.LocationSample
	done    chan struct{}
}

// Manager owns every active walk session and serializes all mutation of
// session state. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session // keyed by user ID

	filter   *SampleFilter
	smoother *Smoother
	clock    domain.Clock
	store    domain.SessionStore
	monitor  *LifecycleMonitor

	// onFinalized receives each stopped session on a background goroutine.
	// The sampling hot path never waits on it.
	onFinalized func(FinalizedSession)

	log zerolog.Logger
}

// ManagerConfig wires the manager's collaborators. Store, Monitor and
// OnFinalized are optional.
type ManagerConfig struct {
	Filter      *SampleFilter
	Smoother    *Smoother
	Clock       domain.Clock
	Store       domain.SessionStore
	Monitor     *LifecycleMonitor
	OnFinalized func(FinalizedSession)
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Filter == nil {
		cfg.Filter = NewSampleFilter()
	}
	if cfg.Smoother == nil {
		cfg.Smoother = NewSmoother()
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.ClockFunc(time.Now)
	}
	return &Manager{
		sessions:    make(map[string]*session),
		filter:      cfg.Filter,
		smoother:    cfg.Smoother,
		clock:       cfg.Clock,
		store:       cfg.Store,
		monitor:     cfg.Monitor,
		onFinalized: cfg.OnFinalized,
		log:         logging.Component("tracking"),
	}
}

// Start begins a new session for the user and returns its ID. Start is
// idempotent against stale inherited state: any prior session for the user —
// including a "tracking" record that survived a process restart — is torn
// down first, so calling Start twice yields exactly one active session.
func (m *Manager) Start(userID string) (string, error) {
	m.mu.Lock()
	stale := m.sessions[userID]
	if stale != nil {
		delete(m.sessions, userID)
	}

	s := &session{
		id:      uuid.NewString(),
		userID:  userID,
		state:   domain.StateTracking,
		started: m.clock.Now(),
		samples: make(chan domain.LocationSample, ingestBuffer),
		done:    make(chan struct{}),
	}
	m.sessions[userID] = s
	m.mu.Unlock()

	if stale != nil {
		m.log.Warn().Str("user", userID).Str("stale_session", stale.id).
			Msg("cleared stale session on start")
		stale.shutdown()
		observability.ActiveSessions.Dec()
	}

	go m.run(s)
	observability.ActiveSessions.Inc()
	m.log.Info().Str("user", userID).Str("session", s.id).Msg("session started")
	return s.id, nil
}

// OnSample delivers a raw GPS fix for the user's active session. It never
// blocks: samples arriving with no active session, while paused/stopped, or
// with a full ingest queue are dropped silently (counted, not surfaced).
func (m *Manager) OnSample(userID string, raw domain.LocationSample) {
	m.mu.Lock()
	s := m.sessions[userID]
	m.mu.Unlock()
	if s == nil {
		observability.SamplesDropped.WithLabelValues("no_session").Inc()
		return
	}

	// The send happens under s.mu so shutdown cannot close the channel
	// between the state check and the send. It still never blocks: the
	// channel is buffered and a full buffer falls through to default.
	s.mu.Lock()
	if s.state != domain.StateTracking || s.closed {
		s.mu.Unlock()
		observability.SamplesDropped.WithLabelValues("not_tracking").Inc()
		return
	}
	select {
	case s.samples <- raw:
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		observability.SamplesDropped.WithLabelValues("queue_full").Inc()
	}
}

// run is the single writer for one session's route and window.
func (m *Manager) run(s *session) {
	defer close(s.done)
	for raw := range s.samples {
		m.ingest(s, raw)
	}
}

func (m *Manager) ingest(s *session, raw domain.LocationSample) {
	if !m.filter.Accept(raw) {
		reason := m.filter.RejectReason(raw)
		observability.SamplesRejected.WithLabelValues(reason).Inc()
		if m.monitor != nil {
			m.monitor.NoteRejected()
		}
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()
		m.log.Debug().Str("session", s.id).Str("reason", reason).Msg("sample rejected")
		return
	}

	s.mu.Lock()
	if s.state != domain.StateTracking {
		// Stop raced the queue drain; a stopped session's route is frozen.
		s.mu.Unlock()
		observability.SamplesDropped.WithLabelValues("not_tracking").Inc()
		return
	}
	smoothed, window := m.smoother.Smooth(s.window, raw)
	s.window = window
	s.route = append(s.route, smoothed)
	s.mu.Unlock()

	observability.SamplesAccepted.Inc()
	if m.monitor != nil {
		m.monitor.NoteAccepted()
	}
}

// Pause suspends sample ingestion without ending the walk.
func (m *Manager) Pause(userID string) error {
	s := m.lookup(userID)
	if s == nil {
		return domain.ErrNoActiveSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case domain.StateTracking:
		s.state = domain.StatePaused
		return nil
	case domain.StatePaused:
		return nil
	default:
		return domain.ErrSessionStopped
	}
}

// Resume re-enables sample ingestion for a paused session.
func (m *Manager) Resume(userID string) error {
	s := m.lookup(userID)
	if s == nil {
		return domain.ErrNoActiveSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case domain.StatePaused:
		s.state = domain.StateTracking
		return nil
	case domain.StateTracking:
		return domain.ErrNotPaused
	default:
		return domain.ErrSessionStopped
	}
}

// Stop ends the user's session, finalizes its metrics and hands the route to
// the end-of-walk flow. Any queued samples are drained first; samples
// arriving after Stop are dropped.
func (m *Manager) Stop(ctx context.Context, userID string) (domain.SessionSummary, error) {
	m.mu.Lock()
	s := m.sessions[userID]
	if s != nil {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if s == nil {
		return domain.SessionSummary{}, domain.ErrNoActiveSession
	}

	s.shutdown()
	observability.ActiveSessions.Dec()

	now := m.clock.Now()
	s.mu.Lock()
	s.state = domain.StateStopped
	route := s.route
	summary := domain.SessionSummary{
		SessionID:       s.id,
		UserID:          s.userID,
		StartedAt:       s.started,
		EndedAt:         now,
		DistanceMeters:  domain.RouteDistanceMeters(route),
		DurationSeconds: int64(now.Sub(s.started) / time.Second),
		SampleCount:     len(route),
		RejectedCount:   s.rejected,
	}
	s.mu.Unlock()

	if m.store != nil {
		if err := m.store.PutSummary(ctx, summary); err != nil {
			m.log.Error().Err(err).Str("session", s.id).Msg("persist session summary")
		}
	}

	m.log.Info().Str("user", userID).Str("session", s.id).
		Float64("distance_m", summary.DistanceMeters).
		Int64("duration_s", summary.DurationSeconds).
		Int("samples", summary.SampleCount).
		Msg("session stopped")

	if m.onFinalized != nil {
		go m.onFinalized(FinalizedSession{Summary: summary, Route: route})
	}
	return summary, nil
}

// Active returns the user's current session ID and state, if any.
func (m *Manager) Active(userID string) (sessionID string, state domain.SessionState, ok bool) {
	s := m.lookup(userID)
	if s == nil {
		return "", domain.StateIdle, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.state, true
}

// RouteSnapshot returns a copy of the user's current route.
func (m *Manager) RouteSnapshot(userID string) ([]domain.LocationSample, error) {
	s := m.lookup(userID)
	if s == nil {
		return nil, domain.ErrNoActiveSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LocationSample, len(s.route))
	copy(out, s.route)
	return out, nil
}

// ActiveSessionIDs returns the IDs of every currently active session.
func (m *Manager) ActiveSessionIDs() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]bool, len(m.sessions))
	for _, s := range m.sessions {
		ids[s.id] = true
	}
	return ids
}

// StaleSessions returns the users whose session started before cutoff.
// An abandoned walk (app killed, phone died) otherwise tracks forever.
func (m *Manager) StaleSessions(cutoff time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []string
	for userID, s := range m.sessions {
		s.mu.Lock()
		stale := s.started.Before(cutoff)
		s.mu.Unlock()
		if stale {
			users = append(users, userID)
		}
	}
	return users
}

// Shutdown tears down all active sessions without finalizing them.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.shutdown()
		observability.ActiveSessions.Dec()
	}
}

func (m *Manager) lookup(userID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// shutdown closes the sample queue and waits for the run loop to drain it.
// The closed flag is flipped under s.mu before the close, so a concurrent
// OnSample either sends before the close or observes the flag and drops.
func (s *session) shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.samples)
	s.mu.Unlock()
	<-s.done
}
