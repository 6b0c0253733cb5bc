package handlers

import (
	"net/http"
	"trip-route-service/internal/api/dto"
	"trip-route-service/internal/platform/obs"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ItineraryHandler exposes the editable itinerary of each session.
type ItineraryHandler struct {
	Sessions *Sessions
}

func (h *ItineraryHandler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *ItineraryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateItineraryRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.Sessions.Create(dto.StopsFromDestinations(req.Stops))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	obs.Logger(r.Context()).Info("itinerary created", zap.String("itinerary_id", s.ID), zap.Int("stops", len(req.Stops)))
	writeJSON(w, r, http.StatusCreated, dto.FromItinerary(s.ID, s.Itinerary))
}

func (h *ItineraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromItinerary(s.ID, s.Itinerary))
}

func (h *ItineraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItineraryHandler) AddStop(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dto.Destination
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Itinerary.Add(req.Domain()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, dto.FromItinerary(s.ID, s.Itinerary))
}

func (h *ItineraryHandler) RemoveStop(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Itinerary.Remove(chi.URLParam(r, "stopID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromItinerary(s.ID, s.Itinerary))
}

func (h *ItineraryHandler) MoveStop(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dto.MoveRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Itinerary.Move(chi.URLParam(r, "stopID"), req.Delta); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromItinerary(s.ID, s.Itinerary))
}

func (h *ItineraryHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dto.ReorderRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Itinerary.Reorder(req.IDs); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromItinerary(s.ID, s.Itinerary))
}

func (h *ItineraryHandler) SetVisited(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dto.VisitedRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Itinerary.SetVisited(chi.URLParam(r, "stopID"), req.Visited); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromItinerary(s.ID, s.Itinerary))
}

// Optimize plans the remaining stops. An active navigation session follows the new plan.
func (h *ItineraryHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dto.ItineraryOptimizeRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	opts := req.Options()
	plan, err := s.Itinerary.Optimize(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.retarget(r.Context(), plan, opts); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.FromPlan(plan))
}
