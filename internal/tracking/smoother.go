package tracking

import (
	"github.com/strollr-labs/strollr/internal/domain"
)

// ─── Sample Smoother ────────────────────────────────────────────────────────

const (
	// defaultPlausibilityMeters gates how far a new sample may sit from the
	// window centroid before it is treated as an outlier.
	defaultPlausibilityMeters = 80.0

	// minTrust floors the blend weight so even very poor samples retain some
	// influence and a walker who genuinely moved is not pinned in place.
	minTrust = 0.2

	// outlierDamping scales down trust for samples beyond the plausibility
	// distance, pulling them hard toward the historical centroid.
	outlierDamping = 0.25
)

// Smoother blends each new sample against an accuracy-weighted centroid of
// the recent window. The window holds at most domain.MaxWindowSize entries
// and only ever contains filtered, valid-coordinate samples.
type Smoother struct {
	PlausibilityMeters float64
}

// NewSmoother returns a smoother with the default plausibility gate.
func NewSmoother() *Smoother {
	return &Smoother{PlausibilityMeters: defaultPlausibilityMeters}
}

// Smooth produces a smoothed sample and the updated window. Both the input
// window and sample are left untouched; the result window is a fresh slice
// (copy-and-truncate, never in-place mutation).
//
// The centroid is computed from the EXISTING window only. Including the new
// sample in its own evaluation would bias the average toward the candidate
// being judged and defeat outlier rejection.
func (sm *Smoother) Smooth(window []domain.LocationSample, s domain.LocationSample) (domain.LocationSample, []domain.LocationSample) {
	cLat, cLon, ok := weightedCentroid(window)
	if !ok {
		// Empty or degraded window: nothing to average against, pass the raw
		// sample through rather than inventing a centroid.
		return s, appendBounded(window, s)
	}

	trust := 1 - s.AccuracyMeters/domain.MaxAccuracyMeters
	if trust < minTrust {
		trust = minTrust
	}
	if trust > 1 {
		trust = 1
	}

	dist := domain.HaversineMeters(s.Latitude, s.Longitude, cLat, cLon)
	if dist > sm.PlausibilityMeters {
		trust *= outlierDamping
	}

	smoothed := domain.LocationSample{
		Latitude:       trust*s.Latitude + (1-trust)*cLat,
		Longitude:      trust*s.Longitude + (1-trust)*cLon,
		AccuracyMeters: s.AccuracyMeters,
		CapturedAt:     s.CapturedAt,
	}
	return smoothed, appendBounded(window, smoothed)
}

// weightedCentroid averages the window's coordinates weighted by inverse
// accuracy: a tighter fix counts for more. Invalid entries are skipped; if
// none remain the centroid is unusable.
func weightedCentroid(window []domain.LocationSample) (lat, lon float64, ok bool) {
	var sumLat, sumLon, sumW float64
	for _, p := range window {
		if !p.HasValidCoordinates() {
			continue
		}
		acc := p.AccuracyMeters
		if acc < 1 {
			acc = 1
		}
		w := 1 / acc
		sumLat += p.Latitude * w
		sumLon += p.Longitude * w
		sumW += w
	}
	if sumW == 0 {
		return 0, 0, false
	}
	return sumLat / sumW, sumLon / sumW, true
}

// appendBounded returns a new window slice with s appended, dropping the
// oldest entries to stay within domain.MaxWindowSize.
func appendBounded(window []domain.LocationSample, s domain.LocationSample) []domain.LocationSample {
	out := make([]domain.LocationSample, 0, len(window)+1)
	out = append(out, window...)
	out = append(out, s)
	if len(out) > domain.MaxWindowSize {
		out = out[len(out)-domain.MaxWindowSize:]
	}
	return out
}
