package domain

import (
	"fmt"
	"strings"
)

// Reserved identity for the traveler's live location when it is pinned as the tour start.
const (
	StartStopID   = "start-user-location"
	StartStopName = "Your location"
)

// Represents a named geographic point the traveler intends to visit.
// The ID is opaque and assigned by the caller; it must be unique within an itinerary.
type Stop struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Location    LatLng `json:"location"`
	Description string `json:"description,omitempty"`
}

// IsStart reports whether the stop carries the reserved start identity.
func (s Stop) IsStart() bool { return s.ID == StartStopID }

// StartStop builds the reserved start stop for a live position.
func StartStop(at LatLng) Stop {
	return Stop{
		ID:          StartStopID,
		Name:        StartStopName,
		Location:    at,
		Description: "Starting point (from live position)",
	}
}

// Validate checks a single stop record.
func (s Stop) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return &ValidationError{Field: "id", Reason: "stop id must be non-empty"}
	}
	if err := s.Location.Validate(); err != nil {
		return fmt.Errorf("stop %q: %w", s.ID, err)
	}
	return nil
}

// ValidateStops checks every stop and enforces id uniqueness.
func ValidateStops(stops []Stop) error {
	seen := make(map[string]struct{}, len(stops))
	for i, s := range stops {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("validate stops: index %d: %w", i, err)
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("validate stops: index %d: %w", i, &ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate stop id %q", s.ID)})
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Locations returns the coordinates of the stops in order.
func Locations(stops []Stop) []LatLng {
	out := make([]LatLng, 0, len(stops))
	for _, s := range stops {
		out = append(out, s.Location)
	}
	return out
}
