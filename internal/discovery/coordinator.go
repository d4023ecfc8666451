package discovery

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/logging"
)

// ─── End-of-Walk Coordinator ────────────────────────────────────────────────
// Runs the full finalization flow for a stopped session: one route-wide
// query, consolidation with the session's staged ping results, persistence,
// and completion notification. Runs on session-scoped background work, never
// on the sampling hot path.

// Coordinator drives route query → consolidate → persist for each stopped
// session.
type Coordinator struct {
	engine       *RouteEngine
	pings        *PingManager
	consolidator *Consolidator
	store        domain.DiscoveryStore

	mu      sync.Mutex
	pending map[string]bool

	// onConsolidated, when set, is called after a session's discoveries are
	// persisted. Used by the API layer for completion notification.
	onConsolidated func(sessionID string, discoveries []domain.ConsolidatedDiscovery)

	log zerolog.Logger
}

// NewCoordinator wires the finalization flow.
func NewCoordinator(engine *RouteEngine, pings *PingManager, consolidator *Consolidator, store domain.DiscoveryStore) *Coordinator {
	return &Coordinator{
		engine:       engine,
		pings:        pings,
		consolidator: consolidator,
		store:        store,
		pending:      make(map[string]bool),
		log:          logging.Component("consolidation"),
	}
}

// SetOnConsolidated registers the completion hook. Must be called before the
// first Finalize.
func (co *Coordinator) SetOnConsolidated(fn func(sessionID string, discoveries []domain.ConsolidatedDiscovery)) {
	co.onConsolidated = fn
}

// Pending reports whether a session's consolidation is still in flight.
func (co *Coordinator) Pending(sessionID string) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.pending[sessionID]
}

// Finalize runs the end-of-walk flow for one stopped session. A failed route
// query still consolidates the ping results — the worst acceptable outcome
// is fewer discoveries, never a lost walk.
func (co *Coordinator) Finalize(ctx context.Context, summary domain.SessionSummary, route []domain.LocationSample) ([]domain.ConsolidatedDiscovery, error) {
	co.mu.Lock()
	co.pending[summary.SessionID] = true
	co.mu.Unlock()
	defer func() {
		co.mu.Lock()
		delete(co.pending, summary.SessionID)
		co.mu.Unlock()
	}()

	routeResults, err := co.engine.QueryAlongRoute(ctx, route, domain.SearchPreferences{})
	if err != nil {
		co.log.Warn().Err(err).Str("session", summary.SessionID).
			Msg("route query unavailable, consolidating pings only")
		routeResults = nil
	}

	pingResults := co.pings.TakeStaged(summary.SessionID)
	discoveries := co.consolidator.Consolidate(summary.UserID, summary.SessionID, routeResults, pingResults)

	if len(discoveries) > 0 && co.store != nil {
		if err := co.store.PutDiscoveries(ctx, discoveries); err != nil {
			co.log.Error().Err(err).Str("session", summary.SessionID).Msg("persist discoveries")
			return discoveries, err
		}
	}

	co.log.Info().Str("session", summary.SessionID).
		Int("route_results", len(routeResults)).
		Int("ping_results", len(pingResults)).
		Int("consolidated", len(discoveries)).
		Msg("consolidation complete")

	if co.onConsolidated != nil {
		co.onConsolidated(summary.SessionID, discoveries)
	}
	return discoveries, nil
}
