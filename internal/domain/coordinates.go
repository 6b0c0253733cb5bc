package domain

import (
	"fmt"
	"math"
)

// Immutable geographic coordinates in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Return coordinates as [lng, lat] for GeoJSON / polyline compatibility.
func (c LatLng) CoordsToList() []float64 { return []float64{c.Lng, c.Lat} }

// Validate rejects non-finite or out-of-range coordinates.
func (c LatLng) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return &ValidationError{Field: "location", Reason: "coordinate must be finite"}
	}
	if c.Lat < -90 || c.Lat > 90 {
		return &ValidationError{Field: "location.lat", Reason: fmt.Sprintf("latitude %v out of range [-90, 90]", c.Lat)}
	}
	if c.Lng < -180 || c.Lng > 180 {
		return &ValidationError{Field: "location.lng", Reason: fmt.Sprintf("longitude %v out of range [-180, 180]", c.Lng)}
	}
	return nil
}

func (c LatLng) String() string {
	return fmt.Sprintf("%g,%g", c.Lat, c.Lng)
}
