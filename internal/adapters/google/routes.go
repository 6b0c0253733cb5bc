package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"
)

const routesFieldMask = "routes.duration,routes.staticDuration,routes.distanceMeters," +
	"routes.legs.polyline.encodedPolyline," +
	"routes.legs.travelAdvisory.speedReadingIntervals"

type routesLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type routesWaypoint struct {
	Location struct {
		LatLng routesLatLng `json:"latLng"`
	} `json:"location"`
}

type computeRoutesRequest struct {
	Origin            routesWaypoint   `json:"origin"`
	Destination       routesWaypoint   `json:"destination"`
	Intermediates     []routesWaypoint `json:"intermediates,omitempty"`
	TravelMode        string           `json:"travelMode"`
	RoutingPreference string           `json:"routingPreference,omitempty"`
	ExtraComputations []string         `json:"extraComputations,omitempty"`
	PolylineQuality   string           `json:"polylineQuality"`
	PolylineEncoding  string           `json:"polylineEncoding"`
	DepartureTime     string           `json:"departureTime,omitempty"`
}

type computeRoutesResponse struct {
	Routes []struct {
		Duration       string  `json:"duration"`
		StaticDuration string  `json:"staticDuration"`
		DistanceMeters float64 `json:"distanceMeters"`
		Legs           []struct {
			Polyline struct {
				EncodedPolyline string `json:"encodedPolyline"`
			} `json:"polyline"`
			TravelAdvisory struct {
				SpeedReadingIntervals []struct {
					StartPolylinePointIndex int    `json:"startPolylinePointIndex"`
					EndPolylinePointIndex   int    `json:"endPolylinePointIndex"`
					Speed                   string `json:"speed"`
				} `json:"speedReadingIntervals"`
			} `json:"travelAdvisory"`
		} `json:"legs"`
	} `json:"routes"`
}

var _ ports.TrafficRouteProvider = (*Client)(nil)

// ComputeTrafficRoute asks the Routes API for a route with speed-banded leg polylines.
// Traffic computation is only requested for motorized modes.
func (c *Client) ComputeTrafficRoute(ctx context.Context, req domain.DirectionsRequest) (_ *domain.TrafficRoute, err error) {
	defer obs.Time(ctx, "google.ComputeTrafficRoute")(&err)

	const op = "compute routes"

	body := computeRoutesRequest{
		Origin:           waypoint(req.Origin),
		Destination:      waypoint(req.Destination),
		TravelMode:       routesMode(req.TravelMode),
		PolylineQuality:  "HIGH_QUALITY",
		PolylineEncoding: "ENCODED_POLYLINE",
	}
	for _, p := range req.Intermediates {
		body.Intermediates = append(body.Intermediates, waypoint(p))
	}
	if req.TravelMode.TrafficAware() {
		body.RoutingPreference = "TRAFFIC_AWARE_OPTIMAL"
		body.ExtraComputations = []string{"TRAFFIC_ON_POLYLINE"}
		body.DepartureTime = c.now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal routes request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.routesBaseURL+"/directions/v2:computeRoutes", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", routesFieldMask)

	resp, err := c.do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fail(op, "", fmt.Errorf("routes request failed: %w", err))
	}
	defer resp.Body.Close()

	var rr computeRoutesResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fail(op, "", fmt.Errorf("decode routes response: %w", err))
	}
	if len(rr.Routes) == 0 {
		return nil, fail(op, "", fmt.Errorf("no route returned"))
	}

	r0 := rr.Routes[0]
	out := &domain.TrafficRoute{
		DurationSeconds:       parseDuration(r0.Duration),
		StaticDurationSeconds: parseDuration(r0.StaticDuration),
		DistanceMeters:        r0.DistanceMeters,
	}
	for li, leg := range r0.Legs {
		points, err := decodePolyline(leg.Polyline.EncodedPolyline)
		if err != nil {
			return nil, fail(op, "", fmt.Errorf("leg %d: %w", li, err))
		}
		tl := domain.TrafficLeg{Points: points}
		for _, iv := range leg.TravelAdvisory.SpeedReadingIntervals {
			speed := domain.SpeedCategory(iv.Speed)
			if speed == "" {
				speed = domain.SpeedUnspecified
			}
			tl.Intervals = append(tl.Intervals, domain.SpeedInterval{
				StartIndex: iv.StartPolylinePointIndex,
				EndIndex:   iv.EndPolylinePointIndex,
				Speed:      speed,
			})
		}
		out.Legs = append(out.Legs, tl)
	}
	return out, nil
}

func waypoint(p domain.LatLng) routesWaypoint {
	var w routesWaypoint
	w.Location.LatLng = routesLatLng{Latitude: p.Lat, Longitude: p.Lng}
	return w
}

// parseDuration reads protobuf JSON durations such as "754s" or "12.5s".
func parseDuration(s string) *float64 {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil
	}
	v := d.Seconds()
	return &v
}
