package services

import (
	"context"
	"fmt"
	"time"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/geo"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"

	"go.uber.org/zap"
)

// Optimize plans a visiting order for the request's stops.
//
// Each candidate start is expanded with greedy nearest-neighbor construction and then
// improved with first-improvement 2-opt. The cheapest resulting tour wins; ties keep the
// lowest starting-stop index. The call is stateless and safe for concurrent use.
//
// TotalDistanceKm is always haversine-based, whatever metric ranked the tours.
func Optimize(
	ctx context.Context,
	req domain.OptimizationRequest,
	provider ports.CostMatrixProvider,
) (_ *domain.OptimizationResult, err error) {
	defer obs.Time(ctx, "services.Optimize")(&err)

	req, err = req.Normalize()
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	started := time.Now()
	defer func() {
		obs.OptimizeDuration.WithLabelValues(string(req.Metric)).Observe(time.Since(started).Seconds())
	}()
	obs.OptimizeStops.Observe(float64(len(req.Stops)))

	costs, err := EstimateCosts(ctx, req.Stops, req.Metric, req.TravelMode, req.DistanceWeight, req.TimeWeight, provider)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	n := len(req.Stops)
	starts := []int{0}
	if req.TryAllStarts && n > 1 {
		starts = make([]int, n)
		for i := range starts {
			starts[i] = i
		}
	}

	var (
		bestOrder []int
		bestCost  float64
		moves     int
	)
	if n > 0 {
		for _, s := range starts {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("optimize: %w", err)
			}

			constructed := nearestNeighbor(costs, s)
			improved, applied := twoOpt(costs, constructed, req.ReturnToStart)
			moves += applied

			c := tourCost(costs, improved, req.ReturnToStart)
			// Strictly cheaper only; equal tours keep the earlier (lower index) start.
			if bestOrder == nil || c < bestCost-improvementEps {
				bestOrder = improved
				bestCost = c
			}
		}
	}
	obs.TwoOptMoves.Add(float64(moves))

	obs.Logger(ctx).Debug("route optimized",
		zap.Int("stops", n),
		zap.String("metric", string(req.Metric)),
		zap.Int("starts", len(starts)),
		zap.Int("two_opt_moves", moves),
		zap.Float64("cost", bestCost),
	)

	return buildResult(req, costs, bestOrder, bestCost), nil
}

func buildResult(req domain.OptimizationRequest, costs *CostModel, order []int, cost float64) *domain.OptimizationResult {
	res := &domain.OptimizationResult{
		Order:         make([]domain.Stop, 0, len(order)),
		OrderIndices:  make([]int, 0, len(order)),
		Segments:      []domain.Segment{},
		Metric:        req.Metric,
		ReturnToStart: req.ReturnToStart,
		Cost:          cost,
	}

	for _, idx := range order {
		res.Order = append(res.Order, req.Stops[idx])
		res.OrderIndices = append(res.OrderIndices, idx)
	}

	for i := 1; i < len(order); i++ {
		res.Segments = append(res.Segments, domain.Segment{
			FromIndex:  order[i-1],
			ToIndex:    order[i],
			DistanceKm: costs.DistanceKm[order[i-1]][order[i]],
		})
	}
	if req.ReturnToStart && len(order) > 1 {
		last := order[len(order)-1]
		res.Segments = append(res.Segments, domain.Segment{
			FromIndex:  last,
			ToIndex:    order[0],
			DistanceKm: costs.DistanceKm[last][order[0]],
		})
	}

	res.TotalDistanceKm = geo.PathKm(domain.Locations(res.Order), req.ReturnToStart)

	if costs.HasDurations() {
		var duration, inTraffic float64
		for _, s := range res.Segments {
			duration += costs.Duration[s.FromIndex][s.ToIndex]
			inTraffic += costs.DurationInTraffic[s.FromIndex][s.ToIndex]
		}
		res.TotalDurationSeconds = &duration
		res.TotalDurationInTrafficSeconds = &inTraffic
	}

	return res
}
