package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/geo"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"
)

// Cost assigned to a directed pair the provider reports as unreachable.
const unreachablePenalty = 1e9

// CostModel is the pairwise cost between stops under the chosen metric.
//
// DistanceKm is always the haversine matrix. Duration matrices are only
// populated by metrics that consult an external provider.
type CostModel struct {
	Metric            domain.Metric
	cost              [][]float64
	DistanceKm        [][]float64
	Duration          [][]float64
	DurationInTraffic [][]float64
}

func (m *CostModel) Size() int { return len(m.cost) }

// At returns the directed cost from stop i to stop j.
func (m *CostModel) At(i, j int) float64 { return m.cost[i][j] }

// HasDurations reports whether the metric supplied travel durations.
func (m *CostModel) HasDurations() bool { return m.Duration != nil }

// Build the cost model for the stops.
//
// haversine is computed locally and never calls the provider. external and hybrid
// fetch one batched matrix; any provider failure fails the whole estimate.
func EstimateCosts(
	ctx context.Context,
	stops []domain.Stop,
	metric domain.Metric,
	mode domain.TravelMode,
	distanceWeight float64,
	timeWeight float64,
	provider ports.CostMatrixProvider,
) (_ *CostModel, err error) {
	defer obs.Time(ctx, "services.EstimateCosts")(&err)

	points := domain.Locations(stops)
	n := len(points)

	model := &CostModel{
		Metric:     metric,
		DistanceKm: haversineMatrix(points),
	}

	if metric == domain.MetricHaversine {
		model.cost = model.DistanceKm
		return model, nil
	}

	if !metric.Valid() {
		return nil, &domain.ValidationError{Field: "metric", Reason: fmt.Sprintf("unknown metric %q", metric)}
	}

	model.Duration = squareMatrix(n)
	model.DurationInTraffic = squareMatrix(n)
	if n < 2 {
		model.cost = squareMatrix(n)
		return model, nil
	}

	if provider == nil {
		return nil, &domain.ProviderError{Provider: "matrix", Op: "estimate costs", Err: errors.New("no cost matrix provider configured")}
	}

	matrix, err := provider.GetMatrix(ctx, points, mode)
	if err != nil {
		return nil, fmt.Errorf("estimate costs: %w", asProviderError("matrix", "get matrix", err))
	}
	if matrix.Size() != n {
		return nil, &domain.ProviderError{
			Provider: "matrix",
			Op:       "get matrix",
			Err:      fmt.Errorf("expected %d rows, got %d", n, matrix.Size()),
		}
	}

	roadKm := squareMatrix(n)
	for i := 0; i < n; i++ {
		if len(matrix.Rows[i]) != n {
			return nil, &domain.ProviderError{
				Provider: "matrix",
				Op:       "get matrix",
				Err:      fmt.Errorf("row %d has %d columns, want %d", i, len(matrix.Rows[i]), n),
			}
		}
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			r := matrix.Rows[i][j]
			if !r.Reachable {
				roadKm[i][j] = unreachablePenalty
				model.Duration[i][j] = unreachablePenalty
				model.DurationInTraffic[i][j] = unreachablePenalty
				continue
			}
			if !finite(r.DistanceMeters) || !finite(r.DurationSeconds) || !finite(r.DurationInTrafficSeconds) ||
				r.DistanceMeters < 0 || r.DurationSeconds < 0 || r.DurationInTrafficSeconds < 0 {
				return nil, &domain.ProviderError{
					Provider: "matrix",
					Op:       "get matrix",
					Err:      fmt.Errorf("invalid metrics for pair %d -> %d", i, j),
				}
			}
			roadKm[i][j] = r.DistanceMeters / 1000
			model.Duration[i][j] = r.DurationSeconds
			model.DurationInTraffic[i][j] = r.DurationInTrafficSeconds
		}
	}

	switch metric {
	case domain.MetricExternal:
		model.cost = model.DurationInTraffic
	case domain.MetricHybrid:
		model.cost = blend(normalize(roadKm), normalize(model.DurationInTraffic), distanceWeight, timeWeight)
	}

	return model, nil
}

func haversineMatrix(points []domain.LatLng) [][]float64 {
	n := len(points)
	out := squareMatrix(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := geo.HaversineKm(points[i], points[j])
			out[i][j] = d
			out[j][i] = d
		}
	}
	return out
}

func squareMatrix(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	return out
}

// normalize scales a matrix into [0, 1] by its largest reachable off-diagonal entry.
// Penalty cells keep the penalty so unreachable pairs stay prohibitive after blending.
func normalize(m [][]float64) [][]float64 {
	maxV := 0.0
	for i := range m {
		for j := range m[i] {
			if i != j && m[i][j] < unreachablePenalty && m[i][j] > maxV {
				maxV = m[i][j]
			}
		}
	}

	out := squareMatrix(len(m))
	for i := range m {
		for j := range m[i] {
			switch {
			case m[i][j] >= unreachablePenalty:
				out[i][j] = unreachablePenalty
			case maxV > 0:
				out[i][j] = m[i][j] / maxV
			}
		}
	}
	return out
}

func blend(dist, dur [][]float64, distanceWeight, timeWeight float64) [][]float64 {
	out := squareMatrix(len(dist))
	for i := range dist {
		for j := range dist[i] {
			if dist[i][j] >= unreachablePenalty || dur[i][j] >= unreachablePenalty {
				out[i][j] = unreachablePenalty
				continue
			}
			out[i][j] = distanceWeight*dist[i][j] + timeWeight*dur[i][j]
		}
	}
	return out
}

func asProviderError(provider, op string, err error) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.ProviderError{Provider: provider, Op: op, Err: err}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
