package tracking

import (
	"math"
	"testing"

	"github.com/strollr-labs/strollr/internal/domain"
)

func sample(lat, lon, acc float64) domain.LocationSample {
	return domain.LocationSample{Latitude: lat, Longitude: lon, AccuracyMeters: acc}
}

func TestSmoother_EmptyWindowPassesRawThrough(t *testing.T) {
	sm := NewSmoother()
	raw := sample(52.52, 13.405, 5)

	smoothed, window := sm.Smooth(nil, raw)
	if smoothed != raw {
		t.Errorf("Smooth(empty window) = %+v, want raw sample", smoothed)
	}
	if len(window) != 1 {
		t.Errorf("window length = %d, want 1", len(window))
	}
}

func TestSmoother_DegradedWindowPassesRawThrough(t *testing.T) {
	sm := NewSmoother()
	// A window that somehow holds only invalid entries must not produce an
	// average of zero valid points.
	bad := []domain.LocationSample{
		{Latitude: math.NaN(), Longitude: 13.4, AccuracyMeters: 5},
	}
	raw := sample(52.52, 13.405, 5)

	smoothed, _ := sm.Smooth(bad, raw)
	if smoothed != raw {
		t.Errorf("Smooth(degraded window) = %+v, want raw sample", smoothed)
	}
}

func TestSmoother_CentroidExcludesCandidate(t *testing.T) {
	sm := NewSmoother()
	window := []domain.LocationSample{
		sample(10, 10, 5),
		sample(10, 10, 5),
	}
	// A far-off candidate: if the candidate leaked into its own centroid the
	// pull target would shift toward it and the output would land farther
	// from (10,10) than the window centroid allows.
	outlier := sample(10.01, 10.01, 90)

	smoothed, _ := sm.Smooth(window, outlier)

	distFromCentroid := domain.HaversineMeters(smoothed.Latitude, smoothed.Longitude, 10, 10)
	distOutlier := domain.HaversineMeters(10.01, 10.01, 10, 10)
	// Poor accuracy + beyond plausibility ⇒ strong pull: the smoothed point
	// must sit much closer to the centroid than the raw outlier.
	if distFromCentroid > distOutlier*0.1 {
		t.Errorf("smoothed point %.0fm from centroid, outlier was %.0fm; expected strong pull",
			distFromCentroid, distOutlier)
	}
}

func TestSmoother_GoodAccuracyKeepsDirectionChanges(t *testing.T) {
	sm := NewSmoother()
	window := []domain.LocationSample{
		sample(10, 10, 5),
		sample(10.0001, 10.0001, 5),
	}
	// A plausible move with excellent accuracy should stay close to the raw
	// sample — genuine direction changes must not be flattened.
	turn := sample(10.0003, 10.0000, 4)

	smoothed, _ := sm.Smooth(window, turn)
	moved := domain.HaversineMeters(smoothed.Latitude, smoothed.Longitude, turn.Latitude, turn.Longitude)
	if moved > 5 {
		t.Errorf("high-trust sample pulled %.1fm from raw position, want < 5m", moved)
	}
}

func TestSmoother_PoorAccuracyPulledTowardCentroid(t *testing.T) {
	sm := NewSmoother()
	window := []domain.LocationSample{
		sample(10, 10, 5),
		sample(10, 10, 5),
	}
	good := sample(10.0004, 10, 5)
	poor := sample(10.0004, 10, 95)

	smoothedGood, _ := sm.Smooth(window, good)
	smoothedPoor, _ := sm.Smooth(window, poor)

	pullGood := domain.HaversineMeters(smoothedGood.Latitude, smoothedGood.Longitude, good.Latitude, good.Longitude)
	pullPoor := domain.HaversineMeters(smoothedPoor.Latitude, smoothedPoor.Longitude, poor.Latitude, poor.Longitude)
	if pullPoor <= pullGood {
		t.Errorf("poor-accuracy pull (%.1fm) should exceed good-accuracy pull (%.1fm)", pullPoor, pullGood)
	}
}

func TestSmoother_WindowBoundedToFive(t *testing.T) {
	sm := NewSmoother()
	var window []domain.LocationSample
	for i := 0; i < 20; i++ {
		_, window = sm.Smooth(window, sample(10+float64(i)*0.00001, 10, 5))
		if len(window) > domain.MaxWindowSize {
			t.Fatalf("window length = %d after %d samples, want <= %d",
				len(window), i+1, domain.MaxWindowSize)
		}
	}
	if len(window) != domain.MaxWindowSize {
		t.Errorf("final window length = %d, want %d", len(window), domain.MaxWindowSize)
	}
}

func TestSmoother_InputWindowNotMutated(t *testing.T) {
	sm := NewSmoother()
	window := []domain.LocationSample{
		sample(10, 10, 5), sample(10, 10, 5), sample(10, 10, 5),
		sample(10, 10, 5), sample(10, 10, 5),
	}
	snapshot := make([]domain.LocationSample, len(window))
	copy(snapshot, window)

	_, updated := sm.Smooth(window, sample(10.00001, 10, 5))

	for i := range window {
		if window[i] != snapshot[i] {
			t.Fatalf("input window entry %d mutated", i)
		}
	}
	if &updated[0] == &window[0] {
		t.Error("updated window shares backing array with input")
	}
}

func TestSmoother_AccuracyAndTimestampPreserved(t *testing.T) {
	sm := NewSmoother()
	window := []domain.LocationSample{sample(10, 10, 5)}
	raw := sample(10.0001, 10, 42)

	smoothed, _ := sm.Smooth(window, raw)
	if smoothed.AccuracyMeters != 42 {
		t.Errorf("AccuracyMeters = %f, want 42", smoothed.AccuracyMeters)
	}
}
