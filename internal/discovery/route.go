package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/logging"
	"github.com/strollr-labs/strollr/internal/infra/observability"
)

// ─── Route ("SAR") Engine ───────────────────────────────────────────────────

const (
	// routeMinMovementMeters is the minimum two-point distance that counts as
	// meaningful movement. A route-wide search over a near-stationary route
	// returns arbitrary globally-popular places, not local ones.
	routeMinMovementMeters = 50

	// routeMaxResults caps the route-wide result count.
	routeMaxResults = 50

	// routeQueryTimeout bounds the network call.
	routeQueryTimeout = 15 * time.Second

	// fallbackRadiusMeters is the reduced-confidence single-point radius used
	// when the polyline query fails.
	fallbackRadiusMeters = 500

	// fallbackMinPoints is how many route points a centroid needs to be
	// meaningful.
	fallbackMinPoints = 3
)

// RouteEngine runs the single end-of-walk search spanning the whole recorded
// path.
type RouteEngine struct {
	searcher domain.PlaceSearcher
	log      zerolog.Logger
}

// NewRouteEngine creates the route query engine.
func NewRouteEngine(searcher domain.PlaceSearcher) *RouteEngine {
	return &RouteEngine{searcher: searcher, log: logging.Component("route_query")}
}

// QueryAlongRoute searches for places along the recorded route. Degenerate
// routes (a single point, or two points closer than 50 m) yield an empty
// result without querying. A failed polyline query degrades to a
// single-point query on the route centroid when the route has enough points
// for a centroid to mean anything; otherwise the result is empty.
func (re *RouteEngine) QueryAlongRoute(ctx context.Context, route []domain.LocationSample, prefs domain.SearchPreferences) ([]domain.DiscoveryCandidate, error) {
	usable := usablePoints(route)
	if degenerate(usable) {
		observability.RouteQueries.WithLabelValues("degenerate").Inc()
		re.log.Info().Int("points", len(usable)).Msg("route too short or stationary, skipping query")
		return nil, nil
	}

	if prefs.MaxResults <= 0 || prefs.MaxResults > routeMaxResults {
		prefs.MaxResults = routeMaxResults
	}

	queryCtx, cancel := context.WithTimeout(ctx, routeQueryTimeout)
	defer cancel()

	started := time.Now()
	results, err := re.searcher.SearchAlongRoute(queryCtx, usable, prefs)
	observability.QueryLatency.WithLabelValues("route").Observe(time.Since(started).Seconds())
	if err == nil {
		observability.RouteQueries.WithLabelValues("ok").Inc()
		return tagRouteResults(results, prefs.MaxResults), nil
	}

	re.log.Warn().Err(err).Int("points", len(usable)).Msg("route query failed, trying centroid fallback")

	if len(usable) < fallbackMinPoints {
		observability.RouteQueries.WithLabelValues("empty").Inc()
		return nil, nil
	}
	lat, lon, ok := domain.RouteCentroid(usable)
	if !ok {
		observability.RouteQueries.WithLabelValues("empty").Inc()
		return nil, nil
	}

	fallbackCtx, cancelFallback := context.WithTimeout(ctx, routeQueryTimeout)
	defer cancelFallback()
	results, err = re.searcher.SearchNearby(fallbackCtx, lat, lon, fallbackRadiusMeters, prefs)
	if err != nil {
		observability.RouteQueries.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrRouteQueryFailed, err)
	}
	observability.RouteQueries.WithLabelValues("fallback").Inc()
	return tagRouteResults(results, prefs.MaxResults), nil
}

// usablePoints drops invalid-coordinate samples; the search collaborator
// never sees them.
func usablePoints(route []domain.LocationSample) []domain.LocationSample {
	out := make([]domain.LocationSample, 0, len(route))
	for _, s := range route {
		if s.HasValidCoordinates() {
			out = append(out, s)
		}
	}
	return out
}

// degenerate reports whether the route lacks meaningful movement.
func degenerate(route []domain.LocationSample) bool {
	switch {
	case len(route) <= 1:
		return true
	case len(route) == 2:
		d := domain.HaversineMeters(
			route[0].Latitude, route[0].Longitude,
			route[1].Latitude, route[1].Longitude)
		return d < routeMinMovementMeters
	default:
		return false
	}
}

func tagRouteResults(results []domain.DiscoveryCandidate, limit int) []domain.DiscoveryCandidate {
	if len(results) > limit {
		results = results[:limit]
	}
	tagged := make([]domain.DiscoveryCandidate, len(results))
	for i, c := range results {
		c.Source = domain.SourceRouteQuery
		tagged[i] = c
	}
	return tagged
}
