// Package geo holds the distance formulas shared by the optimizer, the
// reconciliation matcher and the navigation tracker.
package geo

import (
	"math"

	"trip-route-service/internal/domain"
)

const (
	EarthRadiusKm = 6371.0

	// Metres per degree of latitude used by the planar approximation.
	MetersPerDegree = 111320.0
)

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(a, b domain.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Clamp rounding drift so asin stays defined for antipodal points.
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// ApproxMeters is an equirectangular approximation, accurate to well under a metre
// at the sub-kilometre scales it is used for (step anchors, stop matching).
func ApproxMeters(a, b domain.LatLng) float64 {
	dLat := (b.Lat - a.Lat) * MetersPerDegree
	dLng := (b.Lng - a.Lng) * MetersPerDegree * math.Cos((a.Lat+b.Lat)/2*math.Pi/180)
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// PathKm sums haversine distances along a path, optionally closing it back to the first point.
func PathKm(points []domain.LatLng, closed bool) float64 {
	if len(points) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1], points[i])
	}
	if closed {
		total += HaversineKm(points[len(points)-1], points[0])
	}
	return total
}

// Offset moves a coordinate by the given metres north and east (planar, small distances only).
func Offset(p domain.LatLng, northMeters, eastMeters float64) domain.LatLng {
	return domain.LatLng{
		Lat: p.Lat + northMeters/MetersPerDegree,
		Lng: p.Lng + eastMeters/(MetersPerDegree*math.Cos(p.Lat*math.Pi/180)),
	}
}
