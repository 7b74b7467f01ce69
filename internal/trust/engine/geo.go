package engine

import (
	"math"

	"github.com/gaini88088/expert-pancake/internal/session/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two locations in
// kilometers (haversine).
func DistanceKm(a, b domain.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// MinDistanceKm returns the distance from loc to the nearest of the given
// locations. Returns 0 and false when the list is empty.
func MinDistanceKm(loc domain.Location, others []domain.Location) (float64, bool) {
	if len(others) == 0 {
		return 0, false
	}
	min := math.Inf(1)
	for _, o := range others {
		if d := DistanceKm(loc, o); d < min {
			min = d
		}
	}
	return min, true
}
