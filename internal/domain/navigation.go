package domain

import "time"

// Live position sample emitted by a position source.
type Position struct {
	LatLng
	AccuracyMeters float64   `json:"accuracy_meters"`
	Heading        *float64  `json:"heading_degrees,omitempty"`
	At             time.Time `json:"at"`
}

// One turn-by-turn instruction flattened across legs.
type NavStep struct {
	LegIndex        int     `json:"leg_index"`
	StepIndex       int     `json:"step_index"`
	InstructionText string  `json:"instruction_text"`
	Maneuver        string  `json:"maneuver,omitempty"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	EndPoint        *LatLng `json:"end_point,omitempty"`
}

// Ordered stop list plus travel settings for a directions or traffic fetch.
type DirectionsRequest struct {
	Origin        LatLng
	Destination   LatLng
	Intermediates []LatLng
	TravelMode    TravelMode
}

type DirectionsStep struct {
	InstructionText string
	Maneuver        string
	DistanceMeters  float64
	DurationSeconds float64
	EndPoint        *LatLng
	Path            []LatLng
}

// One origin→stopover leg of a directions response.
// DurationInTrafficSeconds is nil when the provider did not compute traffic.
type DirectionsLeg struct {
	DistanceMeters           float64
	DurationSeconds          float64
	DurationInTrafficSeconds *float64
	Steps                    []DirectionsStep
}

// Path returns the concatenated step paths of the leg.
func (l DirectionsLeg) Path() []LatLng {
	var out []LatLng
	for _, s := range l.Steps {
		out = append(out, s.Path...)
	}
	return out
}

type Directions struct {
	Legs []DirectionsLeg
}

// FlattenSteps converts legs into the navigation step list.
func (d *Directions) FlattenSteps() []NavStep {
	if d == nil {
		return nil
	}
	var out []NavStep
	for li, leg := range d.Legs {
		for si, s := range leg.Steps {
			out = append(out, NavStep{
				LegIndex:        li,
				StepIndex:       si,
				InstructionText: s.InstructionText,
				Maneuver:        s.Maneuver,
				DistanceMeters:  s.DistanceMeters,
				DurationSeconds: s.DurationSeconds,
				EndPoint:        s.EndPoint,
			})
		}
	}
	return out
}

// Totals sums leg durations. The traffic total is nil when no leg carried traffic data.
func (d *Directions) Totals() (durationSeconds float64, inTrafficSeconds *float64) {
	if d == nil {
		return 0, nil
	}
	var traffic float64
	hasTraffic := false
	for _, leg := range d.Legs {
		durationSeconds += leg.DurationSeconds
		if leg.DurationInTrafficSeconds != nil {
			traffic += *leg.DurationInTrafficSeconds
			hasTraffic = true
		}
	}
	if hasTraffic {
		return durationSeconds, &traffic
	}
	return durationSeconds, nil
}

// NewDirectionsRequest builds the origin/destination/intermediates triple for an ordered stop list.
// The start stop, when present, is dropped from the waypoints; origin overrides the first point
// (e.g. the live position while navigating).
func NewDirectionsRequest(order []Stop, origin *LatLng, returnToStart bool, mode TravelMode) (DirectionsRequest, bool) {
	stops := make([]Stop, 0, len(order))
	for _, s := range order {
		if !s.IsStart() {
			stops = append(stops, s)
		}
	}

	var from LatLng
	switch {
	case origin != nil:
		from = *origin
	case len(order) > 0:
		from = order[0].Location
	default:
		return DirectionsRequest{}, false
	}
	if len(stops) == 0 {
		return DirectionsRequest{}, false
	}

	req := DirectionsRequest{Origin: from, TravelMode: mode}
	waypoints := stops
	if returnToStart {
		req.Destination = from
	} else {
		req.Destination = stops[len(stops)-1].Location
		waypoints = stops[:len(stops)-1]
	}
	req.Intermediates = Locations(waypoints)
	return req, true
}
