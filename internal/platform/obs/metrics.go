package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OptimizeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "route_optimize_duration_seconds",
		Help:    "Time taken by a single optimize call, including the cost estimate",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"metric"})

	OptimizeStops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_optimize_stops",
		Help:    "Number of stops per optimize call",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	})

	TwoOptMoves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "route_two_opt_moves_total",
		Help: "Total number of improving 2-opt moves applied",
	})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_provider_errors_total",
		Help: "Total number of failed external provider calls",
	}, []string{"provider", "op"})

	DistanceCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_distance_cache_lookups_total",
		Help: "Distance cache cell lookups by result",
	}, []string{"result"})

	ReconcileMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_reconcile_points_total",
		Help: "Optimized points by reconciliation outcome",
	}, []string{"status"})

	NavigationSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "navigation_sessions_active",
		Help: "Number of navigation sessions currently active",
	})

	NavigationStepAdvances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "navigation_step_advances_total",
		Help: "Total number of turn-by-turn step advances",
	})

	NavigationWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_warnings_total",
		Help: "Non-fatal navigation warnings by source",
	}, []string{"source"})
)
