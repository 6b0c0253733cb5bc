package dto

import "trip-route-service/internal/domain"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l LatLng) Domain() domain.LatLng { return domain.LatLng{Lat: l.Lat, Lng: l.Lng} }

func FromLatLng(p domain.LatLng) LatLng { return LatLng{Lat: p.Lat, Lng: p.Lng} }

// Destination is the wire shape of a stop.
type Destination struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Location    LatLng  `json:"location"`
	Description *string `json:"description"`
}

func (d Destination) Domain() domain.Stop {
	s := domain.Stop{ID: d.ID, Name: d.Name, Location: d.Location.Domain()}
	if d.Description != nil {
		s.Description = *d.Description
	}
	return s
}

func FromStop(s domain.Stop) Destination {
	d := Destination{ID: s.ID, Name: s.Name, Location: FromLatLng(s.Location)}
	if s.Description != "" {
		desc := s.Description
		d.Description = &desc
	}
	return d
}

func StopsFromDestinations(ds []Destination) []domain.Stop {
	out := make([]domain.Stop, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Domain())
	}
	return out
}

func DestinationsFromStops(stops []domain.Stop) []Destination {
	out := make([]Destination, 0, len(stops))
	for _, s := range stops {
		out = append(out, FromStop(s))
	}
	return out
}

type ItineraryStopResponse struct {
	Destination
	Visited bool `json:"visited"`
}
