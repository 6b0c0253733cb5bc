package distance

import (
	"context"
	"fmt"
	"sync/atomic"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/ports"
)

type MockPair struct {
	From, To       domain.LatLng
	Meters         float64
	Seconds        float64
	TrafficSeconds float64
	Unreachable    bool
}

// MockMatrixProvider serves a fixed set of directed pairs. Missing pairs fail the call.
type MockMatrixProvider struct {
	m     map[string]ports.DistanceResult
	calls atomic.Int64
	// Err, when set, is returned from every call.
	Err error
}

func NewMockMatrixProvider(pairs []MockPair) *MockMatrixProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		traffic := p.TrafficSeconds
		if traffic == 0 {
			traffic = p.Seconds
		}
		m[pairKey(p.From, p.To)] = ports.DistanceResult{
			DistanceMeters:           p.Meters,
			DurationSeconds:          p.Seconds,
			DurationInTrafficSeconds: traffic,
			Reachable:                !p.Unreachable,
		}
	}
	return &MockMatrixProvider{m: m}
}

func pairKey(a, b domain.LatLng) string {
	return a.String() + "|" + b.String()
}

// Calls returns the number of GetMatrix/GetRow calls served.
func (p *MockMatrixProvider) Calls() int { return int(p.calls.Load()) }

func (p *MockMatrixProvider) GetMatrix(ctx context.Context, points []domain.LatLng, mode domain.TravelMode) (*ports.DistanceMatrix, error) {
	p.calls.Add(1)
	if p.Err != nil {
		return nil, p.Err
	}

	rows := make([][]ports.DistanceResult, len(points))
	for i, from := range points {
		rows[i] = make([]ports.DistanceResult, len(points))
		for j, to := range points {
			if i == j {
				rows[i][j] = ports.DistanceResult{Reachable: true}
				continue
			}
			r, ok := p.m[pairKey(from, to)]
			if !ok {
				return nil, fmt.Errorf("missing pair %s -> %s", from, to)
			}
			rows[i][j] = r
		}
	}
	return &ports.DistanceMatrix{Rows: rows}, nil
}

func (p *MockMatrixProvider) GetRow(ctx context.Context, origin domain.LatLng, destinations []domain.LatLng, mode domain.TravelMode) ([]ports.DistanceResult, error) {
	p.calls.Add(1)
	if p.Err != nil {
		return nil, p.Err
	}

	out := make([]ports.DistanceResult, 0, len(destinations))
	for _, d := range destinations {
		if d == origin {
			out = append(out, ports.DistanceResult{Reachable: true})
			continue
		}
		r, ok := p.m[pairKey(origin, d)]
		if !ok {
			return nil, fmt.Errorf("missing pair %s -> %s", origin, d)
		}
		out = append(out, r)
	}
	return out, nil
}

// FuncMatrixProvider derives every pair from a function, for property-style tests.
type FuncMatrixProvider func(from, to domain.LatLng) ports.DistanceResult

func (f FuncMatrixProvider) GetMatrix(ctx context.Context, points []domain.LatLng, mode domain.TravelMode) (*ports.DistanceMatrix, error) {
	rows := make([][]ports.DistanceResult, len(points))
	for i, from := range points {
		rows[i] = make([]ports.DistanceResult, len(points))
		for j, to := range points {
			if i == j {
				rows[i][j] = ports.DistanceResult{Reachable: true}
				continue
			}
			rows[i][j] = f(from, to)
		}
	}
	return &ports.DistanceMatrix{Rows: rows}, nil
}
