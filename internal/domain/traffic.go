package domain

// Provider-native congestion label for a polyline interval.
type SpeedCategory string

const (
	SpeedNormal      SpeedCategory = "NORMAL"
	SpeedSlow        SpeedCategory = "SLOW"
	SpeedTrafficJam  SpeedCategory = "TRAFFIC_JAM"
	SpeedUnspecified SpeedCategory = "SPEED_UNSPECIFIED"
)

// Point-index range [StartIndex, EndIndex] of a leg polyline sharing one speed label.
type SpeedInterval struct {
	StartIndex int           `json:"start_index"`
	EndIndex   int           `json:"end_index"`
	Speed      SpeedCategory `json:"speed"`
}

type TrafficLeg struct {
	Points    []LatLng
	Intervals []SpeedInterval
}

// Traffic-aware route with per-leg speed bands.
// StaticDurationSeconds is the duration without traffic, when reported.
type TrafficRoute struct {
	DurationSeconds       *float64
	StaticDurationSeconds *float64
	DistanceMeters        float64
	Legs                  []TrafficLeg
}
