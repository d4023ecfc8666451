package domain

import "math"

// ─── Geographic Math ────────────────────────────────────────────────────────

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// RouteDistanceMeters returns the cumulative path length of a route.
func RouteDistanceMeters(route []LocationSample) float64 {
	if len(route) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(route); i++ {
		total += HaversineMeters(
			route[i-1].Latitude, route[i-1].Longitude,
			route[i].Latitude, route[i].Longitude)
	}
	return total
}

// RouteCentroid returns the unweighted centroid of a route's coordinates.
// The second return is false when the route has no valid-coordinate points,
// in which case the centroid is meaningless and must not be used.
func RouteCentroid(route []LocationSample) (lat, lon float64, ok bool) {
	var sumLat, sumLon float64
	n := 0
	for _, s := range route {
		if !s.HasValidCoordinates() {
			continue
		}
		sumLat += s.Latitude
		sumLon += s.Longitude
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return sumLat / float64(n), sumLon / float64(n), true
}
