package services

import (
	"math"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/geo"
	"trip-route-service/internal/platform/obs"
)

const (
	// An optimized first point this close to the live position is the traveler's start.
	StartDetectionMeters = 80.0
	// Maximum distance for mapping an optimized point back onto a caller-owned stop.
	ReconcileToleranceMeters = 250.0
)

// MatchStatus tells how an optimized point was reconciled.
type MatchStatus string

const (
	// Relabeled with the reserved start identity.
	MatchStart MatchStatus = "start"
	// Replaced by the caller's original stop record.
	MatchStable MatchStatus = "stable"
	// No original stop within tolerance; the optimizer-provided point is kept as is.
	MatchMiss MatchStatus = "miss"
)

type ReconciledStop struct {
	domain.Stop
	Status MatchStatus
	// Distance to the matched original stop (or to the live position for MatchStart).
	// +Inf for a miss with an empty pool.
	DistanceMeters float64
}

// Reconcile maps optimizer output back onto the caller's identity-stable stops.
//
// Matching is greedy nearest-first in output order: each point takes the closest
// still-unused original within ReconcileToleranceMeters. This is not a global
// minimum-cost assignment; a later point can lose its best match to an earlier one.
// Originals are never fabricated: a point with no match keeps its own identity.
func Reconcile(order []domain.Stop, originals []domain.Stop, start *domain.LatLng) []ReconciledStop {
	out := make([]ReconciledStop, 0, len(order))

	pool := make([]*domain.Stop, 0, len(originals))
	for i := range originals {
		if originals[i].IsStart() {
			continue
		}
		pool = append(pool, &originals[i])
	}

	for idx, p := range order {
		if idx == 0 && start != nil {
			if d := geo.ApproxMeters(p.Location, *start); d < StartDetectionMeters {
				out = append(out, ReconciledStop{Stop: domain.StartStop(*start), Status: MatchStart, DistanceMeters: d})
				continue
			}
		}
		if p.IsStart() {
			out = append(out, ReconciledStop{Stop: p, Status: MatchStart})
			continue
		}

		best := -1
		bestDist := math.Inf(1)
		for i, cand := range pool {
			if cand == nil {
				continue
			}
			if d := geo.ApproxMeters(p.Location, cand.Location); d < bestDist {
				best = i
				bestDist = d
			}
		}

		if best >= 0 && bestDist <= ReconcileToleranceMeters {
			out = append(out, ReconciledStop{Stop: *pool[best], Status: MatchStable, DistanceMeters: bestDist})
			pool[best] = nil
			continue
		}
		out = append(out, ReconciledStop{Stop: p, Status: MatchMiss, DistanceMeters: bestDist})
	}

	for _, r := range out {
		obs.ReconcileMatches.WithLabelValues(string(r.Status)).Inc()
	}

	return out
}

// Stops strips reconciliation metadata.
func Stops(rs []ReconciledStop) []domain.Stop {
	out := make([]domain.Stop, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Stop)
	}
	return out
}
