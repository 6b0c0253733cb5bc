package ports

import (
	"context"
	"trip-route-service/internal/domain"
)

// Distance and travel durations between two locations.
// DurationInTrafficSeconds equals DurationSeconds when the provider has no traffic model for the mode.
type DistanceResult struct {
	DistanceMeters           float64
	DurationSeconds          float64
	DurationInTrafficSeconds float64
	Reachable                bool
}

// Dense n×n pairwise matrix; Rows[i][j] is the result from points[i] to points[j].
type DistanceMatrix struct {
	Rows [][]DistanceResult
}

func (m *DistanceMatrix) Size() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}

// Contract for retrieving a batched, directed cost matrix from a mapping provider.
type CostMatrixProvider interface {
	// Return the full pairwise matrix for the points under the travel mode.
	// Any provider failure fails the whole call.
	GetMatrix(ctx context.Context, points []domain.LatLng, mode domain.TravelMode) (*DistanceMatrix, error)
}

// Optional extension that fetches one origin→many destinations row.
// Caching decorators use it to fill only the missing cells.
type CostRowProvider interface {
	CostMatrixProvider
	GetRow(ctx context.Context, origin domain.LatLng, destinations []domain.LatLng, mode domain.TravelMode) ([]DistanceResult, error)
}
