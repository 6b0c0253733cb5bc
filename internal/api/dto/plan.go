package dto

import (
	"math"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/itinerary"
)

type OptimizeRequest struct {
	Itinerary     []Destination `json:"itinerary"`
	Start         *LatLng       `json:"start"`
	ReturnToStart bool          `json:"return_to_start"`
	// Defaults to true.
	TryAllStarts   *bool    `json:"try_all_starts"`
	Metric         string   `json:"metric"`
	TravelMode     string   `json:"travel_mode"`
	OptimizeFor    string   `json:"optimize_for"`
	DistanceWeight *float64 `json:"distance_weight"`
	TimeWeight     *float64 `json:"time_weight"`
}

// Domain converts the request, applying the optimize_for weight preset to weights
// the caller left out.
func (r OptimizeRequest) Domain() domain.OptimizationRequest {
	dw, tw := weights(r.OptimizeFor, r.DistanceWeight, r.TimeWeight)
	req := domain.OptimizationRequest{
		Stops:          StopsFromDestinations(r.Itinerary),
		ReturnToStart:  r.ReturnToStart,
		TryAllStarts:   r.TryAllStarts == nil || *r.TryAllStarts,
		Metric:         domain.Metric(r.Metric),
		TravelMode:     domain.TravelMode(r.TravelMode),
		DistanceWeight: dw,
		TimeWeight:     tw,
	}
	if r.Start != nil {
		start := r.Start.Domain()
		req.Start = &start
	}
	return req
}

// Response builds the reply with indices into the caller's itinerary array. With a start,
// the optimizer works on the start followed by the caller's stops; the start maps to -1.
func (r OptimizeRequest) Response(res *domain.OptimizationResult) OptimizeResponse {
	out := FromResult(res)
	if r.Start == nil {
		return out
	}

	toCaller := []int{-1}
	for i, d := range r.Itinerary {
		if d.ID != domain.StartStopID {
			toCaller = append(toCaller, i)
		}
	}
	remap := func(i int) int {
		if i < 0 || i >= len(toCaller) {
			return i
		}
		return toCaller[i]
	}

	order := make([]int, len(out.OptimizedOrder))
	for i, idx := range out.OptimizedOrder {
		order[i] = remap(idx)
	}
	out.OptimizedOrder = order
	for i, s := range out.Segments {
		out.Segments[i].FromIndex, out.Segments[i].ToIndex = remap(s.FromIndex), remap(s.ToIndex)
	}
	return out
}

func weights(optimizeFor string, distanceWeight, timeWeight *float64) (float64, float64) {
	dw, tw := domain.DefaultWeights(domain.OptimizeFor(optimizeFor))
	if distanceWeight != nil {
		dw = *distanceWeight
	}
	if timeWeight != nil {
		tw = *timeWeight
	}
	return dw, tw
}

type Segment struct {
	FromIndex  int     `json:"from_index"`
	ToIndex    int     `json:"to_index"`
	DistanceKm float64 `json:"distance_km"`
}

type OptimizeResponse struct {
	OptimizedOrder                []int         `json:"optimized_order"`
	TotalDistanceKm               float64       `json:"total_distance_km"`
	OptimizedItinerary            []Destination `json:"optimized_itinerary"`
	Segments                      []Segment     `json:"segments"`
	Metric                        string        `json:"metric"`
	Cost                          float64       `json:"cost"`
	TotalDurationSeconds          *float64      `json:"total_duration_seconds,omitempty"`
	TotalDurationInTrafficSeconds *float64      `json:"total_duration_in_traffic_seconds,omitempty"`
}

func FromResult(res *domain.OptimizationResult) OptimizeResponse {
	out := OptimizeResponse{
		OptimizedOrder:                res.OrderIndices,
		TotalDistanceKm:               res.TotalDistanceKm,
		OptimizedItinerary:            DestinationsFromStops(res.Order),
		Segments:                      make([]Segment, 0, len(res.Segments)),
		Metric:                        string(res.Metric),
		Cost:                          res.Cost,
		TotalDurationSeconds:          res.TotalDurationSeconds,
		TotalDurationInTrafficSeconds: res.TotalDurationInTrafficSeconds,
	}
	if out.OptimizedOrder == nil {
		out.OptimizedOrder = []int{}
	}
	for _, s := range res.Segments {
		out.Segments = append(out.Segments, Segment(s))
	}
	return out
}

type PlanStopResponse struct {
	Destination
	Match string `json:"match"`
	// Omitted when no original stop was in range at all.
	MatchDistanceMeters *float64 `json:"match_distance_meters,omitempty"`
}

type PlanResponse struct {
	Version       uint64             `json:"version"`
	ReturnToStart bool               `json:"return_to_start"`
	Stops         []PlanStopResponse `json:"stops"`
	Result        OptimizeResponse   `json:"result"`
}

func FromPlan(p *itinerary.Plan) *PlanResponse {
	if p == nil {
		return nil
	}
	out := &PlanResponse{
		Version:       p.Version,
		ReturnToStart: p.Result.ReturnToStart,
		Stops:         make([]PlanStopResponse, 0, len(p.Stops)),
		Result:        FromResult(p.Result),
	}
	for _, s := range p.Stops {
		ps := PlanStopResponse{Destination: FromStop(s.Stop), Match: string(s.Status)}
		if !math.IsInf(s.DistanceMeters, 0) && !math.IsNaN(s.DistanceMeters) {
			d := s.DistanceMeters
			ps.MatchDistanceMeters = &d
		}
		out.Stops = append(out.Stops, ps)
	}
	return out
}
