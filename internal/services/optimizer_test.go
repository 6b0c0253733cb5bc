package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"trip-route-service/internal/adapters/distance"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stop(id string, lat, lng float64) domain.Stop {
	return domain.Stop{ID: id, Name: "Stop " + id, Location: domain.LatLng{Lat: lat, Lng: lng}}
}

func ids(stops []domain.Stop) []string {
	out := make([]string, 0, len(stops))
	for _, s := range stops {
		out = append(out, s.ID)
	}
	return out
}

func randomStops(r *rand.Rand, n int) []domain.Stop {
	stops := make([]domain.Stop, 0, n)
	for i := 0; i < n; i++ {
		stops = append(stops, stop(fmt.Sprintf("s%02d", i), 5.9+r.Float64()*1.9, 79.7+r.Float64()*2.0))
	}
	return stops
}

func TestOptimizeThreeStopScenario(t *testing.T) {
	a := stop("A", 6.0, 80.0)
	b := stop("B", 6.1, 80.1)
	c := stop("C", 6.2, 80.0)

	res, err := Optimize(context.Background(), domain.OptimizationRequest{
		Stops:        []domain.Stop{a, b, c},
		TryAllStarts: false,
		Metric:       domain.MetricHaversine,
	}, nil)
	require.NoError(t, err)

	abc := geo.PathKm([]domain.LatLng{a.Location, b.Location, c.Location}, false)
	acb := geo.PathKm([]domain.LatLng{a.Location, c.Location, b.Location}, false)

	want := []string{"A", "B", "C"}
	if acb < abc {
		want = []string{"A", "C", "B"}
	}
	assert.Equal(t, want, ids(res.Order))
	assert.InDelta(t, math.Min(abc, acb), res.TotalDistanceKm, 1e-9)
	assert.Nil(t, res.TotalDurationSeconds)
	assert.Nil(t, res.TotalDurationInTrafficSeconds)
}

func TestOptimizeEmptyAndSingle(t *testing.T) {
	res, err := Optimize(context.Background(), domain.OptimizationRequest{}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Order)
	assert.NotNil(t, res.Order)
	assert.Zero(t, res.TotalDistanceKm)
	assert.Nil(t, res.TotalDurationSeconds)

	only := stop("solo", 7.2906, 80.6337)
	res, err = Optimize(context.Background(), domain.OptimizationRequest{
		Stops:         []domain.Stop{only},
		ReturnToStart: true,
		TryAllStarts:  true,
		Metric:        domain.MetricExternal,
	}, nil)
	require.NoError(t, err)
	require.Len(t, res.Order, 1)
	assert.Equal(t, only, res.Order[0])
	assert.Zero(t, res.TotalDistanceKm)
	require.NotNil(t, res.TotalDurationSeconds)
	assert.Zero(t, *res.TotalDurationSeconds)
	assert.Zero(t, *res.TotalDurationInTrafficSeconds)
	assert.Empty(t, res.Segments)
}

func TestOptimizeIsPermutationWithHaversineTotals(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for n := 2; n <= 12; n++ {
		for _, closed := range []bool{false, true} {
			for _, tryAll := range []bool{false, true} {
				stops := randomStops(r, n)
				res, err := Optimize(context.Background(), domain.OptimizationRequest{
					Stops:         stops,
					ReturnToStart: closed,
					TryAllStarts:  tryAll,
				}, nil)
				require.NoError(t, err)

				assert.ElementsMatch(t, ids(stops), ids(res.Order), "n=%d closed=%v", n, closed)
				assert.Len(t, res.OrderIndices, n)

				want := geo.PathKm(domain.Locations(res.Order), closed)
				assert.InDelta(t, want, res.TotalDistanceKm, 1e-9)

				segs := 0.0
				for _, s := range res.Segments {
					segs += s.DistanceKm
				}
				assert.InDelta(t, want, segs, 1e-9)
				if closed {
					assert.Len(t, res.Segments, n)
					assert.Len(t, res.DisplayOrder(), n+1)
				} else {
					assert.Len(t, res.Segments, n-1)
				}
				if !tryAll {
					assert.Equal(t, stops[0].ID, res.Order[0].ID)
				}
			}
		}
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	stops := randomStops(rand.New(rand.NewSource(7)), 9)
	req := domain.OptimizationRequest{Stops: stops, TryAllStarts: true, ReturnToStart: true}

	first, err := Optimize(context.Background(), req, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Optimize(context.Background(), req, nil)
		require.NoError(t, err)
		assert.InDelta(t, first.Cost, again.Cost, 1e-9)
		assert.InDelta(t, first.TotalDistanceKm, again.TotalDistanceKm, 1e-9)
	}
}

func TestOptimizeTryAllStartsKeepsCheapestStart(t *testing.T) {
	stops := randomStops(rand.New(rand.NewSource(3)), 8)
	costs, err := EstimateCosts(context.Background(), stops, domain.MetricHaversine, domain.TravelModeDriving, 1, 1, nil)
	require.NoError(t, err)

	best := math.Inf(1)
	bestStart := -1
	for s := range stops {
		tour, _ := twoOpt(costs, nearestNeighbor(costs, s), false)
		if c := tourCost(costs, tour, false); c < best-improvementEps {
			best = c
			bestStart = s
		}
	}

	res, err := Optimize(context.Background(), domain.OptimizationRequest{Stops: stops, TryAllStarts: true}, nil)
	require.NoError(t, err)
	assert.InDelta(t, best, res.Cost, 1e-9)
	assert.Equal(t, bestStart, res.OrderIndices[0])
}

func TestOptimizeRejectsInvalidStops(t *testing.T) {
	tests := []struct {
		name  string
		stops []domain.Stop
	}{
		{"empty id", []domain.Stop{stop("", 6, 80)}},
		{"duplicate id", []domain.Stop{stop("a", 6, 80), stop("a", 6.1, 80)}},
		{"nan latitude", []domain.Stop{stop("a", math.NaN(), 80)}},
		{"infinite longitude", []domain.Stop{stop("a", 6, math.Inf(1))}},
		{"out of range", []domain.Stop{stop("a", 91, 80)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Optimize(context.Background(), domain.OptimizationRequest{Stops: tt.stops}, nil)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, domain.ErrInvalidStop))

			var ve *domain.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}

	_, err := Optimize(context.Background(), domain.OptimizationRequest{Metric: "teleport"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStop)
}

func TestOptimizePinnedStartForcesFixedStart(t *testing.T) {
	here := domain.LatLng{Lat: 6.9271, Lng: 79.8612}
	stops := randomStops(rand.New(rand.NewSource(11)), 5)

	res, err := Optimize(context.Background(), domain.OptimizationRequest{
		Stops:        stops,
		Start:        &here,
		TryAllStarts: true,
	}, nil)
	require.NoError(t, err)
	require.Len(t, res.Order, 6)
	assert.Equal(t, domain.StartStopID, res.Order[0].ID)
	assert.Equal(t, here, res.Order[0].Location)
	assert.ElementsMatch(t, append([]string{domain.StartStopID}, ids(stops)...), ids(res.Order))
}

func TestOptimizeExternalMetricRanksByTrafficDuration(t *testing.T) {
	s := domain.LatLng{Lat: 6.0, Lng: 80.0}
	x := domain.LatLng{Lat: 6.01, Lng: 80.0} // nearest by distance
	y := domain.LatLng{Lat: 6.05, Lng: 80.0}

	provider := distance.NewMockMatrixProvider([]distance.MockPair{
		{From: s, To: x, Meters: 1100, Seconds: 100, TrafficSeconds: 900},
		{From: s, To: y, Meters: 5500, Seconds: 60, TrafficSeconds: 60},
		{From: x, To: y, Meters: 4400, Seconds: 900, TrafficSeconds: 900},
		{From: y, To: x, Meters: 4400, Seconds: 50, TrafficSeconds: 50},
		{From: x, To: s, Meters: 1100, Seconds: 100, TrafficSeconds: 100},
		{From: y, To: s, Meters: 5500, Seconds: 60, TrafficSeconds: 60},
	})

	stops := []domain.Stop{
		{ID: "s", Location: s},
		{ID: "x", Location: x},
		{ID: "y", Location: y},
	}

	byDistance, err := Optimize(context.Background(), domain.OptimizationRequest{Stops: stops}, provider)
	require.NoError(t, err)
	assert.Equal(t, []string{"s", "x", "y"}, ids(byDistance.Order))
	assert.Zero(t, provider.Calls(), "haversine never consults the provider")

	byTime, err := Optimize(context.Background(), domain.OptimizationRequest{
		Stops:  stops,
		Metric: domain.MetricExternal,
	}, provider)
	require.NoError(t, err)
	assert.Equal(t, []string{"s", "y", "x"}, ids(byTime.Order))
	assert.Equal(t, 1, provider.Calls())

	require.NotNil(t, byTime.TotalDurationSeconds)
	assert.InDelta(t, 110, *byTime.TotalDurationSeconds, 1e-9)
	assert.InDelta(t, 110, *byTime.TotalDurationInTrafficSeconds, 1e-9)
	assert.InDelta(t, geo.PathKm([]domain.LatLng{s, y, x}, false), byTime.TotalDistanceKm, 1e-9)
}

func TestOptimizeProviderFailureFailsCall(t *testing.T) {
	stops := randomStops(rand.New(rand.NewSource(5)), 4)

	failing := distance.NewMockMatrixProvider(nil)
	failing.Err = errors.New("quota exceeded")

	for _, metric := range []domain.Metric{domain.MetricExternal, domain.MetricHybrid} {
		res, err := Optimize(context.Background(), domain.OptimizationRequest{Stops: stops, Metric: metric}, failing)
		require.Error(t, err)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	}

	res, err := Optimize(context.Background(), domain.OptimizationRequest{Stops: stops, Metric: domain.MetricExternal}, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}
