package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strollr-labs/strollr/internal/domain"
)

func coordinatorUnderTest(searcher *fakeSearcher) (*Coordinator, *PingManager, *memDiscoveryStore) {
	clock := newTestClock(time.Date(2026, time.June, 10, 14, 0, 0, 0, time.UTC))
	pings := NewPingManager(searcher, newMemLedgerStore(), clock)
	store := &memDiscoveryStore{}
	co := NewCoordinator(NewRouteEngine(searcher), pings, NewConsolidator(clock), store)
	return co, pings, store
}

// End-to-end: a ~70m two-point route triggers a real route query; a place
// found by both an earlier ping and the route query consolidates into one
// discovery carrying both sources.
func TestCoordinator_EndToEndBothSources(t *testing.T) {
	searcher := &fakeSearcher{
		nearby:     []domain.DiscoveryCandidate{place("P1", "")},
		alongRoute: []domain.DiscoveryCandidate{place("P1", ""), place("P2", "")},
	}
	co, pings, store := coordinatorUnderTest(searcher)

	// Mid-walk ping finds P1.
	loc := domain.LocationSample{Latitude: 0, Longitude: 0, AccuracyMeters: 5}
	if _, err := pings.Query(context.Background(), "user-1", "sess-1", loc); err != nil {
		t.Fatalf("ping Query() error: %v", err)
	}

	summary := domain.SessionSummary{SessionID: "sess-1", UserID: "user-1"}
	route := []domain.LocationSample{
		{Latitude: 0, Longitude: 0, AccuracyMeters: 5},
		{Latitude: 0.0005, Longitude: 0.0005, AccuracyMeters: 8},
	}

	discoveries, err := co.Finalize(context.Background(), summary, route)
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if searcher.routeCalls != 1 {
		t.Errorf("route query calls = %d, want 1 (route is non-degenerate)", searcher.routeCalls)
	}
	if len(discoveries) != 2 {
		t.Fatalf("len(discoveries) = %d, want 2", len(discoveries))
	}

	var p1 *domain.ConsolidatedDiscovery
	for i := range discoveries {
		if discoveries[i].PlaceID == "P1" {
			p1 = &discoveries[i]
		}
	}
	if p1 == nil {
		t.Fatal("P1 missing from consolidated output")
	}
	if !p1.HasSource(domain.SourceRouteQuery) || !p1.HasSource(domain.SourceOnDemand) {
		t.Errorf("P1 sources = %v, want both", p1.Sources)
	}
	if p1.OnDemandHitCount != 1 || p1.RouteQueryHitCount != 1 {
		t.Errorf("P1 hit counts = (ping=%d, route=%d), want (1, 1)", p1.OnDemandHitCount, p1.RouteQueryHitCount)
	}

	persisted, err := store.ListDiscoveries(context.Background(), "user-1", "sess-1")
	if err != nil {
		t.Fatalf("ListDiscoveries() error: %v", err)
	}
	if len(persisted) != 2 {
		t.Errorf("persisted %d discoveries, want 2", len(persisted))
	}
}

func TestCoordinator_PingOnlyWhenRouteNotInResults(t *testing.T) {
	searcher := &fakeSearcher{
		nearby:     []domain.DiscoveryCandidate{place("P1", "")},
		alongRoute: []domain.DiscoveryCandidate{place("P2", "")},
	}
	co, pings, _ := coordinatorUnderTest(searcher)

	loc := domain.LocationSample{Latitude: 0, Longitude: 0, AccuracyMeters: 5}
	if _, err := pings.Query(context.Background(), "user-1", "sess-1", loc); err != nil {
		t.Fatalf("ping Query() error: %v", err)
	}

	summary := domain.SessionSummary{SessionID: "sess-1", UserID: "user-1"}
	route := []domain.LocationSample{
		{Latitude: 0, Longitude: 0, AccuracyMeters: 5},
		{Latitude: 0.0005, Longitude: 0.0005, AccuracyMeters: 8},
	}
	discoveries, err := co.Finalize(context.Background(), summary, route)
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	for _, d := range discoveries {
		if d.PlaceID == "P1" {
			if len(d.Sources) != 1 || d.Sources[0] != domain.SourceOnDemand {
				t.Errorf("P1 sources = %v, want on_demand only", d.Sources)
			}
		}
	}
}

func TestCoordinator_RouteFailureStillConsolidatesPings(t *testing.T) {
	searcher := &fakeSearcher{
		nearby:   []domain.DiscoveryCandidate{place("P1", "")},
		alongErr: errors.New("places api down"),
	}
	co, pings, _ := coordinatorUnderTest(searcher)

	loc := domain.LocationSample{Latitude: 0, Longitude: 0, AccuracyMeters: 5}
	if _, err := pings.Query(context.Background(), "user-1", "sess-1", loc); err != nil {
		t.Fatalf("ping Query() error: %v", err)
	}
	// After the ping, make nearby fail too so the fallback cannot succeed.
	searcher.mu.Lock()
	searcher.nearbyErr = errors.New("places api down")
	searcher.mu.Unlock()

	summary := domain.SessionSummary{SessionID: "sess-1", UserID: "user-1"}
	route := []domain.LocationSample{
		{Latitude: 0, Longitude: 0, AccuracyMeters: 5},
		{Latitude: 0.0005, Longitude: 0.0005, AccuracyMeters: 8},
		{Latitude: 0.0010, Longitude: 0.0010, AccuracyMeters: 8},
	}
	discoveries, err := co.Finalize(context.Background(), summary, route)
	if err != nil {
		t.Fatalf("Finalize() error: %v (route failure must degrade, not fail the walk)", err)
	}
	if len(discoveries) != 1 || discoveries[0].PlaceID != "P1" {
		t.Errorf("discoveries = %+v, want the ping result alone", discoveries)
	}
}

func TestCoordinator_NotifiesOnCompletion(t *testing.T) {
	searcher := &fakeSearcher{alongRoute: []domain.DiscoveryCandidate{place("P1", "")}}
	co, _, _ := coordinatorUnderTest(searcher)

	var gotSession string
	var gotCount int
	co.SetOnConsolidated(func(sessionID string, discoveries []domain.ConsolidatedDiscovery) {
		gotSession = sessionID
		gotCount = len(discoveries)
	})

	summary := domain.SessionSummary{SessionID: "sess-9", UserID: "user-1"}
	route := []domain.LocationSample{
		{Latitude: 0, Longitude: 0, AccuracyMeters: 5},
		{Latitude: 0.0005, Longitude: 0.0005, AccuracyMeters: 8},
	}
	if _, err := co.Finalize(context.Background(), summary, route); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if gotSession != "sess-9" || gotCount != 1 {
		t.Errorf("notification = (%q, %d), want (sess-9, 1)", gotSession, gotCount)
	}

	if co.Pending("sess-9") {
		t.Error("Pending() = true after completion, want false")
	}
}
