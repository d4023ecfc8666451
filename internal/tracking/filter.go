// Package tracking implements the location pipeline for one walk: sample
// filtering, accuracy-weighted smoothing, the session state machine, and the
// foreground/background lifecycle monitor.
package tracking

import "github.com/strollr-labs/strollr/internal/domain"

// ─── Sample Filter ──────────────────────────────────────────────────────────

// SampleFilter rejects raw GPS fixes that must never enter a route:
// worse-than-ceiling accuracy, negative accuracy, or missing/non-finite
// coordinates. It is a pure predicate with no side effects.
type SampleFilter struct {
	MaxAccuracyMeters float64
}

// NewSampleFilter returns a filter with the policy accuracy ceiling.
func NewSampleFilter() *SampleFilter {
	return &SampleFilter{MaxAccuracyMeters: domain.MaxAccuracyMeters}
}

// Accept reports whether the sample may enter the smoothing stage.
// Invalid coordinates are rejected outright rather than defaulted — a zeroed
// coordinate produces a valid-looking but wildly wrong geographic point.
func (f *SampleFilter) Accept(s domain.LocationSample) bool {
	if !s.HasValidCoordinates() {
		return false
	}
	if s.AccuracyMeters < 0 || s.AccuracyMeters > f.MaxAccuracyMeters {
		return false
	}
	return true
}

// RejectReason classifies why Accept returned false, for metrics and logs.
func (f *SampleFilter) RejectReason(s domain.LocationSample) string {
	switch {
	case !s.HasValidCoordinates():
		return "invalid_coordinates"
	case s.AccuracyMeters < 0:
		return "negative_accuracy"
	case s.AccuracyMeters > f.MaxAccuracyMeters:
		return "low_accuracy"
	default:
		return "accepted"
	}
}
