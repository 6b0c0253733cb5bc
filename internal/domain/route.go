package domain

import (
	"fmt"
	"math"
)

// Metric selects the cost function used to compare candidate tours.
type Metric string

const (
	MetricHaversine Metric = "haversine"
	MetricExternal  Metric = "external"
	MetricHybrid    Metric = "hybrid"
)

func (m Metric) Valid() bool {
	switch m {
	case MetricHaversine, MetricExternal, MetricHybrid:
		return true
	}
	return false
}

// OptimizeFor is a convenience preset for the hybrid weights.
type OptimizeFor string

const (
	OptimizeForDistance OptimizeFor = "distance"
	OptimizeForTime     OptimizeFor = "time"
	OptimizeForHybrid   OptimizeFor = "hybrid"
)

// DefaultWeights returns distance/time weights; optimizing purely for time doubles the time weight.
func DefaultWeights(f OptimizeFor) (distanceWeight, timeWeight float64) {
	if f == OptimizeForTime {
		return 1, 2
	}
	return 1, 1
}

type TravelMode string

const (
	TravelModeDriving    TravelMode = "DRIVING"
	TravelModeWalking    TravelMode = "WALKING"
	TravelModeBicycling  TravelMode = "BICYCLING"
	TravelModeTwoWheeler TravelMode = "TWO_WHEELER"
	TravelModeTransit    TravelMode = "TRANSIT"
)

func (m TravelMode) Valid() bool {
	switch m {
	case TravelModeDriving, TravelModeWalking, TravelModeBicycling, TravelModeTwoWheeler, TravelModeTransit:
		return true
	}
	return false
}

// Motorized modes receive traffic-aware durations.
func (m TravelMode) TrafficAware() bool {
	return m == TravelModeDriving || m == TravelModeTwoWheeler
}

// Input to the route optimizer.
//
// When Start is set it is prepended to Stops with the reserved start identity,
// and TryAllStarts is ignored (the tour must begin at the traveler).
type OptimizationRequest struct {
	Stops          []Stop
	Start          *LatLng
	ReturnToStart  bool
	TryAllStarts   bool
	Metric         Metric
	TravelMode     TravelMode
	DistanceWeight float64
	TimeWeight     float64
}

// Normalize fills defaults and validates the request.
func (r OptimizationRequest) Normalize() (OptimizationRequest, error) {
	if r.Metric == "" {
		r.Metric = MetricHaversine
	}
	if !r.Metric.Valid() {
		return r, &ValidationError{Field: "metric", Reason: fmt.Sprintf("unknown metric %q", r.Metric)}
	}
	if r.TravelMode == "" {
		r.TravelMode = TravelModeDriving
	}
	if !r.TravelMode.Valid() {
		return r, &ValidationError{Field: "travel_mode", Reason: fmt.Sprintf("unknown travel mode %q", r.TravelMode)}
	}
	if r.DistanceWeight == 0 && r.TimeWeight == 0 {
		r.DistanceWeight, r.TimeWeight = DefaultWeights(OptimizeForHybrid)
	}
	for _, w := range []float64{r.DistanceWeight, r.TimeWeight} {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return r, &ValidationError{Field: "weights", Reason: "weights must be finite and non-negative"}
		}
	}

	if r.Start != nil {
		if err := r.Start.Validate(); err != nil {
			return r, fmt.Errorf("start: %w", err)
		}
		stops := make([]Stop, 0, len(r.Stops)+1)
		stops = append(stops, StartStop(*r.Start))
		for _, s := range r.Stops {
			if s.IsStart() {
				continue
			}
			stops = append(stops, s)
		}
		r.Stops = stops
		r.Start = nil
		r.TryAllStarts = false
	}

	if err := ValidateStops(r.Stops); err != nil {
		return r, err
	}
	return r, nil
}

// One consecutive hop of an optimized tour, indices refer to the request's stop list.
type Segment struct {
	FromIndex  int     `json:"from_index"`
	ToIndex    int     `json:"to_index"`
	DistanceKm float64 `json:"distance_km"`
}

// Output of the route optimizer.
//
// Order is open even when ReturnToStart is set; callers re-append the start for display.
// TotalDistanceKm is always haversine-based. Duration totals are nil unless the metric supplies them.
type OptimizationResult struct {
	Order                         []Stop
	OrderIndices                  []int
	Segments                      []Segment
	Metric                        Metric
	ReturnToStart                 bool
	Cost                          float64
	TotalDistanceKm               float64
	TotalDurationSeconds          *float64
	TotalDurationInTrafficSeconds *float64
}

// DisplayOrder returns Order with the start re-appended when the tour is closed.
func (r *OptimizationResult) DisplayOrder() []Stop {
	out := make([]Stop, 0, len(r.Order)+1)
	out = append(out, r.Order...)
	if r.ReturnToStart && len(r.Order) > 1 {
		out = append(out, r.Order[0])
	}
	return out
}
