package ports

import (
	"context"
	"trip-route-service/internal/domain"
)

// Port: persistent or in-memory store of directed pairwise results.
// Keys are normalized by the caller; implementations store them verbatim.
type DistanceCache interface {
	GetMany(ctx context.Context, origin string, destinations []string) (map[string]DistanceResult, error)
	PutMany(ctx context.Context, origin string, results map[string]DistanceResult) error
}

// PairKey returns the normalized cache key for a point under a travel mode.
// Coordinates are rounded to 5 decimals (~1 m).
func PairKey(p domain.LatLng, mode domain.TravelMode) string {
	return string(mode) + ":" + formatCoord(p.Lat) + "," + formatCoord(p.Lng)
}
