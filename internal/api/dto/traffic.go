package dto

import (
	"trip-route-service/internal/domain"
	"trip-route-service/internal/traffic"
)

type TrafficRouteRequest struct {
	Origin        LatLng   `json:"origin"`
	Destination   LatLng   `json:"destination"`
	Intermediates []LatLng `json:"intermediates"`
	TravelMode    string   `json:"travel_mode"`
}

func (r TrafficRouteRequest) Domain() domain.DirectionsRequest {
	req := domain.DirectionsRequest{
		Origin:      r.Origin.Domain(),
		Destination: r.Destination.Domain(),
		TravelMode:  domain.TravelMode(r.TravelMode),
	}
	if req.TravelMode == "" {
		req.TravelMode = domain.TravelModeDriving
	}
	for _, p := range r.Intermediates {
		req.Intermediates = append(req.Intermediates, p.Domain())
	}
	return req
}

type SpeedInterval struct {
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Speed      string `json:"speed"`
}

type TrafficLeg struct {
	Points         []LatLng        `json:"points"`
	SpeedIntervals []SpeedInterval `json:"speed_intervals"`
}

type TrafficSegment struct {
	LegIndex   int      `json:"leg_index"`
	Points     []LatLng `json:"points"`
	Congestion string   `json:"congestion"`
	Color      string   `json:"color"`
}

type TrafficRouteResponse struct {
	DurationSeconds       *float64         `json:"duration_seconds"`
	StaticDurationSeconds *float64         `json:"static_duration_seconds"`
	DistanceMeters        float64          `json:"distance_meters"`
	Legs                  []TrafficLeg     `json:"legs"`
	Source                string           `json:"source"`
	Segments              []TrafficSegment `json:"segments"`
}

func TrafficSegments(segs []traffic.Segment) []TrafficSegment {
	out := make([]TrafficSegment, 0, len(segs))
	for _, s := range segs {
		ts := TrafficSegment{
			LegIndex:   s.LegIndex,
			Points:     make([]LatLng, 0, len(s.Points)),
			Congestion: string(s.Level),
			Color:      s.Level.Color(),
		}
		for _, p := range s.Points {
			ts.Points = append(ts.Points, FromLatLng(p))
		}
		out = append(out, ts)
	}
	return out
}

func FromTrafficRoute(route *domain.TrafficRoute, segs []traffic.Segment, source traffic.Source) TrafficRouteResponse {
	out := TrafficRouteResponse{
		Legs:     []TrafficLeg{},
		Source:   string(source),
		Segments: TrafficSegments(segs),
	}
	if route == nil {
		return out
	}
	out.DurationSeconds = route.DurationSeconds
	out.StaticDurationSeconds = route.StaticDurationSeconds
	out.DistanceMeters = route.DistanceMeters
	for _, leg := range route.Legs {
		tl := TrafficLeg{
			Points:         make([]LatLng, 0, len(leg.Points)),
			SpeedIntervals: make([]SpeedInterval, 0, len(leg.Intervals)),
		}
		for _, p := range leg.Points {
			tl.Points = append(tl.Points, FromLatLng(p))
		}
		for _, iv := range leg.Intervals {
			tl.SpeedIntervals = append(tl.SpeedIntervals, SpeedInterval{StartIndex: iv.StartIndex, EndIndex: iv.EndIndex, Speed: string(iv.Speed)})
		}
		out.Legs = append(out.Legs, tl)
	}
	return out
}
