package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"trip-route-service/internal/api/dto"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"
	"trip-route-service/internal/traffic"

	"go.uber.org/zap"
)

// TrafficHandler returns a traffic-aware route with congestion segments.
type TrafficHandler struct {
	Traffic ports.TrafficRouteProvider
}

func (h *TrafficHandler) Route(w http.ResponseWriter, r *http.Request) {
	if h.Traffic == nil {
		writeServiceError(w, r, &domain.ProviderError{Provider: "traffic", Op: "compute route", Err: errors.New("no traffic provider configured")})
		return
	}

	var req dto.TrafficRouteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dreq := req.Domain()
	if !dreq.TravelMode.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown travel_mode")
		return
	}
	for _, p := range append([]domain.LatLng{dreq.Origin, dreq.Destination}, dreq.Intermediates...) {
		if err := p.Validate(); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	route, err := h.Traffic.ComputeTrafficRoute(r.Context(), dreq)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	segments, source := traffic.Classify(route, nil, dreq.TravelMode)

	if r.URL.Query().Get("format") == "geojson" {
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(traffic.ToFeatureCollection(segments)); err != nil {
			obs.Logger(r.Context()).Warn("encode failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
		return
	}

	writeJSON(w, r, http.StatusOK, dto.FromTrafficRoute(route, segments, source))
}
