package dto

import (
	"trip-route-service/internal/domain"
	"trip-route-service/internal/itinerary"
)

type CreateItineraryRequest struct {
	Stops []Destination `json:"stops"`
}

type ReorderRequest struct {
	IDs []string `json:"ids"`
}

type MoveRequest struct {
	Delta int `json:"delta"`
}

type VisitedRequest struct {
	Visited bool `json:"visited"`
}

type ItineraryOptimizeRequest struct {
	Start          *LatLng  `json:"start"`
	ReturnToStart  bool     `json:"return_to_start"`
	TryAllStarts   *bool    `json:"try_all_starts"`
	Metric         string   `json:"metric"`
	TravelMode     string   `json:"travel_mode"`
	OptimizeFor    string   `json:"optimize_for"`
	DistanceWeight *float64 `json:"distance_weight"`
	TimeWeight     *float64 `json:"time_weight"`
}

func (r ItineraryOptimizeRequest) Options() itinerary.Options {
	dw, tw := weights(r.OptimizeFor, r.DistanceWeight, r.TimeWeight)
	opts := itinerary.Options{
		ReturnToStart:  r.ReturnToStart,
		TryAllStarts:   r.TryAllStarts == nil || *r.TryAllStarts,
		Metric:         domain.Metric(r.Metric),
		TravelMode:     domain.TravelMode(r.TravelMode),
		DistanceWeight: dw,
		TimeWeight:     tw,
	}
	if opts.TravelMode == "" {
		opts.TravelMode = domain.TravelModeDriving
	}
	if r.Start != nil {
		start := r.Start.Domain()
		opts.Start = &start
	}
	return opts
}

type ItineraryResponse struct {
	ID      string                  `json:"id"`
	Version uint64                  `json:"version"`
	Stops   []ItineraryStopResponse `json:"stops"`
	Plan    *PlanResponse           `json:"plan"`
}

func FromItinerary(id string, it *itinerary.Itinerary) ItineraryResponse {
	stops := it.Stops()
	out := ItineraryResponse{
		ID:      id,
		Version: it.Version(),
		Stops:   make([]ItineraryStopResponse, 0, len(stops)),
		Plan:    FromPlan(it.Plan()),
	}
	for _, s := range stops {
		out.Stops = append(out.Stops, ItineraryStopResponse{Destination: FromStop(s), Visited: it.Visited(s.ID)})
	}
	return out
}
