package google

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"

	"github.com/twpayne/go-polyline"
)

type directionsLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type directionsStep struct {
	HTMLInstructions string           `json:"html_instructions"`
	Maneuver         string           `json:"maneuver"`
	Distance         matrixValue      `json:"distance"`
	Duration         matrixValue      `json:"duration"`
	EndLocation      directionsLatLng `json:"end_location"`
	Polyline         struct {
		Points string `json:"points"`
	} `json:"polyline"`
}

type directionsLeg struct {
	Distance          matrixValue      `json:"distance"`
	Duration          matrixValue      `json:"duration"`
	DurationInTraffic *matrixValue     `json:"duration_in_traffic"`
	Steps             []directionsStep `json:"steps"`
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []directionsLeg `json:"legs"`
	} `json:"routes"`
}

var _ ports.DirectionsProvider = (*Client)(nil)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// GetDirections fetches turn-by-turn directions through the intermediates, one leg per
// stopover. Transit routing cannot pass through intermediate stops.
func (c *Client) GetDirections(ctx context.Context, req domain.DirectionsRequest) (_ *domain.Directions, err error) {
	defer obs.Time(ctx, "google.GetDirections")(&err)

	const op = "directions"

	if req.TravelMode == domain.TravelModeTransit && len(req.Intermediates) > 0 {
		return nil, &domain.ValidationError{Field: "travel_mode", Reason: "transit routing does not support intermediate stops"}
	}

	params := url.Values{}
	params.Set("origin", pointParam(req.Origin))
	params.Set("destination", pointParam(req.Destination))
	if len(req.Intermediates) > 0 {
		params.Set("waypoints", joinPoints(req.Intermediates))
	}
	params.Set("mode", legacyMode(req.TravelMode))
	params.Set("units", "metric")
	params.Set("departure_time", "now")
	params.Set("key", c.apiKey)

	endpoint := c.mapsBaseURL + "/maps/api/directions/json?" + params.Encode()

	var dr directionsResponse
	if err := c.getJSON(ctx, endpoint, &dr); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fail(op, "", fmt.Errorf("directions request failed: %w", err))
	}
	if dr.Status != "OK" {
		return nil, fail(op, dr.Status, statusError(dr.ErrorMessage))
	}
	if len(dr.Routes) == 0 {
		return nil, fail(op, "", fmt.Errorf("no route returned"))
	}

	out := &domain.Directions{}
	for li, leg := range dr.Routes[0].Legs {
		dl := domain.DirectionsLeg{
			DistanceMeters:  leg.Distance.Value,
			DurationSeconds: leg.Duration.Value,
		}
		if leg.DurationInTraffic != nil {
			v := leg.DurationInTraffic.Value
			dl.DurationInTrafficSeconds = &v
		}
		for si, st := range leg.Steps {
			path, err := decodePolyline(st.Polyline.Points)
			if err != nil {
				return nil, fail(op, "", fmt.Errorf("leg %d step %d: %w", li, si, err))
			}
			end := domain.LatLng{Lat: st.EndLocation.Lat, Lng: st.EndLocation.Lng}
			dl.Steps = append(dl.Steps, domain.DirectionsStep{
				InstructionText: plainText(st.HTMLInstructions),
				Maneuver:        st.Maneuver,
				DistanceMeters:  st.Distance.Value,
				DurationSeconds: st.Duration.Value,
				EndPoint:        &end,
				Path:            path,
			})
		}
		out.Legs = append(out.Legs, dl)
	}
	return out, nil
}

func decodePolyline(encoded string) ([]domain.LatLng, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	out := make([]domain.LatLng, len(coords))
	for i, c := range coords {
		out[i] = domain.LatLng{Lat: c[0], Lng: c[1]}
	}
	return out, nil
}

func plainText(html string) string {
	return strings.Join(strings.Fields(htmlTag.ReplaceAllString(html, " ")), " ")
}
