package discovery

import (
	"time"

	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/observability"
)

// ─── Consolidation Engine ───────────────────────────────────────────────────
// Merges route-query results and every on-demand result for a session into
// one deduplicated set: the user never sees the same physical place twice
// just because it was found via a ping and again via the route search.

// Consolidator merges discovery candidates by place ID.
type Consolidator struct {
	clock domain.Clock
}

// NewConsolidator creates a consolidation engine.
func NewConsolidator(clock domain.Clock) *Consolidator {
	if clock == nil {
		clock = domain.ClockFunc(time.Now)
	}
	return &Consolidator{clock: clock}
}

// Consolidate groups all candidates by place ID and merges each group into
// one ConsolidatedDiscovery:
//
//   - rating and rating count: maximum seen (best-known value wins)
//   - categories: union, ordered by first appearance
//   - address: longest non-empty string seen
//   - sources: set union, plus per-source hit counts
//
// Output order follows first appearance in the input, so consolidation is
// idempotent under re-grouping and deterministic for a given input order.
// Candidates without a place ID cannot be deduplicated and are skipped.
func (c *Consolidator) Consolidate(userID, sessionID string, routeResults []domain.DiscoveryCandidate, pingResults []domain.DiscoveryCandidate) []domain.ConsolidatedDiscovery {
	now := c.clock.Now()

	all := make([]domain.DiscoveryCandidate, 0, len(routeResults)+len(pingResults))
	all = append(all, routeResults...)
	all = append(all, pingResults...)

	groups := make(map[string]*domain.ConsolidatedDiscovery)
	order := make([]string, 0, len(all))

	for _, cand := range all {
		if cand.PlaceID == "" {
			continue
		}
		g, seen := groups[cand.PlaceID]
		if !seen {
			groups[cand.PlaceID] = &domain.ConsolidatedDiscovery{
				PlaceID:     cand.PlaceID,
				SessionID:   sessionID,
				UserID:      userID,
				DisplayName: cand.DisplayName,
				Categories:  appendUnique(nil, cand.Categories),
				Rating:      cand.Rating,
				RatingCount: cand.RatingCount,
				Latitude:    cand.Latitude,
				Longitude:   cand.Longitude,
				Address:     cand.Address,
				Sources:     []domain.Source{cand.Source},
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			order = append(order, cand.PlaceID)
			countSource(groups[cand.PlaceID], cand.Source)
			continue
		}

		observability.DuplicatesMerged.Inc()
		if cand.Rating > g.Rating {
			g.Rating = cand.Rating
		}
		if cand.RatingCount > g.RatingCount {
			g.RatingCount = cand.RatingCount
		}
		if len(cand.Address) > len(g.Address) {
			g.Address = cand.Address
		}
		if g.DisplayName == "" {
			g.DisplayName = cand.DisplayName
		}
		g.Categories = appendUnique(g.Categories, cand.Categories)
		if !hasSource(g.Sources, cand.Source) {
			g.Sources = append(g.Sources, cand.Source)
		}
		countSource(g, cand.Source)
	}

	out := make([]domain.ConsolidatedDiscovery, 0, len(order))
	for _, placeID := range order {
		out = append(out, *groups[placeID])
	}
	observability.DiscoveriesConsolidated.Add(float64(len(out)))
	return out
}

func countSource(g *domain.ConsolidatedDiscovery, src domain.Source) {
	switch src {
	case domain.SourceOnDemand:
		g.OnDemandHitCount++
	case domain.SourceRouteQuery:
		g.RouteQueryHitCount++
	}
}

func hasSource(sources []domain.Source, src domain.Source) bool {
	for _, s := range sources {
		if s == src {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, add []string) []string {
	for _, a := range add {
		if a == "" {
			continue
		}
		found := false
		for _, d := range dst {
			if d == a {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, a)
		}
	}
	return dst
}
