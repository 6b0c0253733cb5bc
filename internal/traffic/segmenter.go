// Package traffic classifies a route path into congestion-colored segments.
package traffic

import (
	"trip-route-service/internal/domain"
)

// Level is the display category of a path segment.
type Level string

const (
	FreeFlow   Level = "free_flow"
	Caution    Level = "caution"
	Congestion Level = "congestion"
)

// Leg-ratio thresholds for the fallback classification (live / base duration).
const (
	CautionRatio    = 1.12
	CongestionRatio = 1.35
)

// Color returns the fixed display color of the category.
func (c Level) Color() string {
	switch c {
	case Caution:
		return "#f59e0b"
	case Congestion:
		return "#ef4444"
	default:
		return "#1e3a8a"
	}
}

// Source tells which classification produced the segments.
type Source string

const (
	SourceSpeedBands Source = "speed_bands"
	SourceLegRatio   Source = "leg_ratio"
	SourceNone       Source = "none"
)

type Segment struct {
	LegIndex int
	Points   []domain.LatLng
	Level    Level
}

// LevelForSpeed maps a provider speed label; unknown labels are free flow.
func LevelForSpeed(s domain.SpeedCategory) Level {
	switch s {
	case domain.SpeedSlow:
		return Caution
	case domain.SpeedTrafficJam:
		return Congestion
	default:
		return FreeFlow
	}
}

// LevelForRatio classifies a leg by liveDuration/baseDuration.
// Missing or non-positive durations fall back to free flow.
func LevelForRatio(baseSeconds, liveSeconds float64) Level {
	if baseSeconds <= 0 || liveSeconds <= 0 {
		return FreeFlow
	}
	ratio := liveSeconds / baseSeconds
	switch {
	case ratio <= CautionRatio:
		return FreeFlow
	case ratio <= CongestionRatio:
		return Caution
	default:
		return Congestion
	}
}

// HasSpeedBands reports whether the route carries any native speed interval.
func HasSpeedBands(route *domain.TrafficRoute) bool {
	if route == nil {
		return false
	}
	for _, leg := range route.Legs {
		if len(leg.Intervals) > 0 {
			return true
		}
	}
	return false
}

// FromSpeedBands slices each leg polyline by its speed intervals.
// A leg without intervals becomes one free-flow segment. Interval bounds are clamped
// to the polyline; segments with fewer than two points are dropped.
func FromSpeedBands(route *domain.TrafficRoute) []Segment {
	if route == nil {
		return nil
	}

	var out []Segment
	for li, leg := range route.Legs {
		last := len(leg.Points) - 1
		if last < 1 {
			continue
		}
		if len(leg.Intervals) == 0 {
			out = append(out, Segment{LegIndex: li, Points: leg.Points, Level: FreeFlow})
			continue
		}
		for _, iv := range leg.Intervals {
			start := min(max(iv.StartIndex, 0), last)
			end := min(max(iv.EndIndex, 0), last)
			if end-start < 1 {
				continue
			}
			out = append(out, Segment{
				LegIndex: li,
				Points:   leg.Points[start : end+1],
				Level:    LevelForSpeed(iv.Speed),
			})
		}
	}
	return out
}

// FromLegRatios colors each directions leg by its traffic ratio.
// Modes without a traffic model are always free flow.
func FromLegRatios(legs []domain.DirectionsLeg, mode domain.TravelMode) []Segment {
	var out []Segment
	for li, leg := range legs {
		path := leg.Path()
		if len(path) < 2 {
			continue
		}
		c := FreeFlow
		if mode.TrafficAware() && leg.DurationInTrafficSeconds != nil {
			c = LevelForRatio(leg.DurationSeconds, *leg.DurationInTrafficSeconds)
		}
		out = append(out, Segment{LegIndex: li, Points: path, Level: c})
	}
	return out
}

// Classify prefers provider-native speed bands and falls back to leg ratios only when
// no band is available.
func Classify(route *domain.TrafficRoute, legs []domain.DirectionsLeg, mode domain.TravelMode) ([]Segment, Source) {
	if HasSpeedBands(route) {
		return FromSpeedBands(route), SourceSpeedBands
	}
	if segs := FromLegRatios(legs, mode); len(segs) > 0 {
		return segs, SourceLegRatio
	}
	if segs := FromSpeedBands(route); len(segs) > 0 {
		return segs, SourceSpeedBands
	}
	return nil, SourceNone
}
