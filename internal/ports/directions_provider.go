package ports

import (
	"context"
	"trip-route-service/internal/domain"
)

// Contract for turn-by-turn directions over an ordered stop list.
type DirectionsProvider interface {
	GetDirections(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error)
}

// Contract for traffic-aware routes with native speed bands on the polyline.
type TrafficRouteProvider interface {
	ComputeTrafficRoute(ctx context.Context, req domain.DirectionsRequest) (*domain.TrafficRoute, error)
}
