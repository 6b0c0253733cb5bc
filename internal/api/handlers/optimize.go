package handlers

import (
	"net/http"
	"trip-route-service/internal/api/dto"
	"trip-route-service/internal/itinerary"
)

// OptimizeHandler serves the stateless optimize endpoint.
type OptimizeHandler struct {
	Optimizer itinerary.OptimizeFunc
}

func (h *OptimizeHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req dto.OptimizeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Optimizer(r.Context(), req.Domain())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, req.Response(res))
}
