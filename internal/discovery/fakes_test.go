package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/strollr-labs/strollr/internal/domain"
)

// ─── Shared Test Fakes ──────────────────────────────────────────────────────

type fakeSearcher struct {
	mu           sync.Mutex
	nearby       []domain.DiscoveryCandidate
	nearbyErr    error
	alongRoute   []domain.DiscoveryCandidate
	alongErr     error
	nearbyCalls  int
	routeCalls   int
	lastLat      float64
	lastLon      float64
	lastRadius   float64
	lastRouteLen int
}

func (f *fakeSearcher) SearchNearby(_ context.Context, lat, lon, radius float64, _ domain.SearchPreferences) ([]domain.DiscoveryCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nearbyCalls++
	f.lastLat, f.lastLon, f.lastRadius = lat, lon, radius
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}
	return f.nearby, nil
}

func (f *fakeSearcher) SearchAlongRoute(_ context.Context, route []domain.LocationSample, _ domain.SearchPreferences) ([]domain.DiscoveryCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routeCalls++
	f.lastRouteLen = len(route)
	if f.alongErr != nil {
		return nil, f.alongErr
	}
	return f.alongRoute, nil
}

type memLedgerStore struct {
	mu      sync.Mutex
	ledgers map[string]domain.CreditLedger
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{ledgers: make(map[string]domain.CreditLedger)}
}

func (s *memLedgerStore) GetLedger(_ context.Context, userID string) (domain.CreditLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[userID]
	if !ok {
		return domain.CreditLedger{}, domain.ErrLedgerNotFound
	}
	return l, nil
}

func (s *memLedgerStore) PutLedger(_ context.Context, ledger domain.CreditLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[ledger.UserID] = ledger
	return nil
}

type memDiscoveryStore struct {
	mu   sync.Mutex
	rows []domain.ConsolidatedDiscovery
}

func (s *memDiscoveryStore) PutDiscoveries(_ context.Context, discoveries []domain.ConsolidatedDiscovery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, discoveries...)
	return nil
}

func (s *memDiscoveryStore) ListDiscoveries(_ context.Context, userID, sessionID string) ([]domain.ConsolidatedDiscovery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ConsolidatedDiscovery
	for _, d := range s.rows {
		if d.UserID == userID && d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memDiscoveryStore) SetSaved(_ context.Context, userID, sessionID, placeID string, saved bool) error {
	return nil
}

func (s *memDiscoveryStore) SetDismissed(_ context.Context, userID, sessionID, placeID string, dismissed bool) error {
	return nil
}

// testClock is a settable clock for budget and cooldown tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock { return &testClock{now: start} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func place(id string, src domain.Source) domain.DiscoveryCandidate {
	return domain.DiscoveryCandidate{
		PlaceID:     id,
		DisplayName: "Place " + id,
		Source:      src,
	}
}
