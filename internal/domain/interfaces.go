package domain

import (
	"context"
	"time"
)

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// Implemented by infrastructure; the core depends only on these.

// PlaceSearcher is the point-of-interest search capability. Both query shapes
// return candidates without a Source tag; the caller tags them.
type PlaceSearcher interface {
	// SearchNearby finds places within radiusMeters of a single point.
	SearchNearby(ctx context.Context, lat, lon, radiusMeters float64, prefs SearchPreferences) ([]DiscoveryCandidate, error)

	// SearchAlongRoute finds places along a full route polyline.
	SearchAlongRoute(ctx context.Context, route []LocationSample, prefs SearchPreferences) ([]DiscoveryCandidate, error)
}

// DiscoveryStore persists consolidated discoveries keyed by user+session.
type DiscoveryStore interface {
	PutDiscoveries(ctx context.Context, discoveries []ConsolidatedDiscovery) error
	ListDiscoveries(ctx context.Context, userID, sessionID string) ([]ConsolidatedDiscovery, error)
	SetSaved(ctx context.Context, userID, sessionID, placeID string, saved bool) error
	SetDismissed(ctx context.Context, userID, sessionID, placeID string, dismissed bool) error
}

// LedgerStore persists per-user credit ledgers.
type LedgerStore interface {
	GetLedger(ctx context.Context, userID string) (CreditLedger, error)
	PutLedger(ctx context.Context, ledger CreditLedger) error
}

// SessionStore persists finalized session summaries.
type SessionStore interface {
	PutSummary(ctx context.Context, summary SessionSummary) error
	ListSummaries(ctx context.Context, userID string, limit int) ([]SessionSummary, error)
}

// Clock abstracts wall-clock reads so budget and cooldown logic is testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }
