// Package discovery implements the two point-of-interest query paths — the
// mid-walk on-demand "ping" and the end-of-walk route-wide search — and the
// consolidation step that merges their results into one deduplicated set.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/logging"
	"github.com/strollr-labs/strollr/internal/infra/observability"
)

// ─── On-Demand ("Ping") Manager ─────────────────────────────────────────────

const (
	// pingRadiusMeters is the search radius around the walker's position.
	pingRadiusMeters = 500

	// pingMaxResults caps one ping's result count.
	pingMaxResults = 10

	// pingTimeout bounds the network call; a slower query is a failed query.
	pingTimeout = 8 * time.Second
)

// PingManager issues rate-limited, credit-limited on-demand queries and
// stages their results per session for later consolidation.
type PingManager struct {
	searcher domain.PlaceSearcher
	ledgers  domain.LedgerStore
	clock    domain.Clock
	cooldown time.Duration

	mu     sync.Mutex
	staged map[string][]domain.DiscoveryCandidate // sessionID → all ping hits

	// Ledger read-modify-write is serialized per user, never globally: one
	// user's slow provider call must not stall another user's ping or
	// eligibility check.
	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex

	log zerolog.Logger
}

// NewPingManager creates the on-demand query manager.
func NewPingManager(searcher domain.PlaceSearcher, ledgers domain.LedgerStore, clock domain.Clock) *PingManager {
	if clock == nil {
		clock = domain.ClockFunc(time.Now)
	}
	return &PingManager{
		searcher:  searcher,
		ledgers:   ledgers,
		clock:     clock,
		cooldown:  domain.DefaultPingCooldown,
		staged:    make(map[string][]domain.DiscoveryCandidate),
		userLocks: make(map[string]*sync.Mutex),
		log:       logging.Component("ping"),
	}
}

// Query performs one on-demand search around the walker's position.
// Eligibility (credits and cooldown) is checked first; failures are typed so
// the UI can render a countdown or a "no credits" message instead of crashing.
func (pm *PingManager) Query(ctx context.Context, userID, sessionID string, loc domain.LocationSample) ([]domain.DiscoveryCandidate, error) {
	lock := pm.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := pm.clock.Now()
	ledger, err := pm.loadLedger(ctx, userID, now)
	if err != nil {
		observability.PingRequests.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	if remaining := ledger.CooldownRemaining(now, pm.cooldown); remaining > 0 {
		observability.PingRequests.WithLabelValues("cooldown").Inc()
		return nil, domain.ErrInCooldown{Remaining: remaining}
	}
	if ledger.CreditsRemaining <= 0 {
		observability.PingRequests.WithLabelValues("no_credits").Inc()
		return nil, domain.ErrNoCredits
	}

	queryCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	started := time.Now()
	results, err := pm.searcher.SearchNearby(queryCtx, loc.Latitude, loc.Longitude, pingRadiusMeters,
		domain.SearchPreferences{MaxResults: pingMaxResults})
	observability.QueryLatency.WithLabelValues("nearby").Observe(time.Since(started).Seconds())
	if err != nil {
		observability.PingRequests.WithLabelValues("failed").Inc()
		pm.log.Warn().Err(err).Str("session", sessionID).Msg("on-demand query failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}

	if len(results) > pingMaxResults {
		results = results[:pingMaxResults]
	}
	tagged := make([]domain.DiscoveryCandidate, len(results))
	for i, c := range results {
		c.Source = domain.SourceOnDemand
		tagged[i] = c
	}

	spent := ledger.Spend(now)
	if err := pm.ledgers.PutLedger(ctx, spent); err != nil {
		// The search already ran; losing the decrement is the lesser evil,
		// but it must be visible in logs.
		pm.log.Error().Err(err).Str("user", userID).Msg("persist spent ledger")
	}

	pm.mu.Lock()
	pm.staged[sessionID] = append(pm.staged[sessionID], tagged...)
	pm.mu.Unlock()

	observability.PingRequests.WithLabelValues("ok").Inc()
	pm.log.Info().Str("user", userID).Str("session", sessionID).
		Int("results", len(tagged)).Int("credits_left", spent.CreditsRemaining).
		Msg("on-demand query succeeded")
	return tagged, nil
}

// Eligibility answers whether the user could ping right now, for UI display.
func (pm *PingManager) Eligibility(ctx context.Context, userID string) (domain.PingEligibility, error) {
	lock := pm.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := pm.clock.Now()
	ledger, err := pm.loadLedger(ctx, userID, now)
	if err != nil {
		return domain.PingEligibility{}, fmt.Errorf("load ledger: %w", err)
	}

	remaining := ledger.CooldownRemaining(now, pm.cooldown)
	return domain.PingEligibility{
		CanQuery:          ledger.CreditsRemaining > 0 && remaining == 0,
		CooldownRemaining: remaining.Seconds(),
		CreditsRemaining:  ledger.CreditsRemaining,
	}, nil
}

// TakeStaged returns and discards the session's staged ping results. Called
// exactly once per session, at consolidation time.
func (pm *PingManager) TakeStaged(sessionID string) []domain.DiscoveryCandidate {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	staged := pm.staged[sessionID]
	delete(pm.staged, sessionID)
	return staged
}

// SweepStaged drops staged results for sessions no longer in the active set
// and reports how many were removed. A ping issued with a stale or bogus
// session ID otherwise stages results nothing will ever consolidate.
func (pm *PingManager) SweepStaged(active map[string]bool) int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	removed := 0
	for sessionID := range pm.staged {
		if !active[sessionID] {
			delete(pm.staged, sessionID)
			removed++
		}
	}
	return removed
}

// userLock returns the mutex serializing one user's ledger read-modify-write.
func (pm *PingManager) userLock(userID string) *sync.Mutex {
	pm.lockMu.Lock()
	defer pm.lockMu.Unlock()
	l, ok := pm.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		pm.userLocks[userID] = l
	}
	return l
}

// loadLedger reads the user's ledger, creating a fresh one for new users and
// self-healing corrupt or period-expired state before it is acted on.
func (pm *PingManager) loadLedger(ctx context.Context, userID string, now time.Time) (domain.CreditLedger, error) {
	ledger, err := pm.ledgers.GetLedger(ctx, userID)
	if err == domain.ErrLedgerNotFound {
		ledger = domain.NewCreditLedger(userID, now)
		if err := pm.ledgers.PutLedger(ctx, ledger); err != nil {
			return domain.CreditLedger{}, err
		}
		return ledger, nil
	}
	if err != nil {
		return domain.CreditLedger{}, err
	}

	corrupt := ledger.CreditsRemaining < 0 ||
		ledger.CreditsRemaining > domain.DefaultMaxCreditsPerPeriod*10
	healed, changed := ledger.Normalize(now)
	if changed {
		if corrupt {
			observability.LedgerSelfHeals.Inc()
			pm.log.Warn().Str("user", userID).
				Int("bad_credits", ledger.CreditsRemaining).
				Msg("credit ledger corrupted, reset to defaults")
		} else {
			observability.LedgerResets.Inc()
			pm.log.Info().Str("user", userID).Msg("credit ledger period reset")
		}
		if err := pm.ledgers.PutLedger(ctx, healed); err != nil {
			return domain.CreditLedger{}, err
		}
	}
	return healed, nil
}
