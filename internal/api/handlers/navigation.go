package handlers

import (
	"errors"
	"net/http"
	"trip-route-service/internal/api/dto"
	"trip-route-service/internal/domain"
)

var errNoPlan = errors.New("itinerary has no optimized plan")

// NavigationHandler drives the navigation tracker of a session.
type NavigationHandler struct {
	Sessions *Sessions
}

func (h *NavigationHandler) respond(w http.ResponseWriter, r *http.Request, s *Session) {
	var camera *domain.LatLng
	if p, ok := s.Tracker.CameraTarget(); ok {
		camera = &p
	}
	writeJSON(w, r, http.StatusOK, dto.FromSnapshot(s.Tracker.Snapshot(), camera))
}

func (h *NavigationHandler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	return (&ItineraryHandler{Sessions: h.Sessions}).session(w, r)
}

func (h *NavigationHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, r, s)
}

// Start begins navigating the current plan.
func (h *NavigationHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.startNavigation(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, s)
}

func (h *NavigationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Tracker.Stop(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, s)
}

func (h *NavigationHandler) Pan(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Tracker.Pan(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, s)
}

func (h *NavigationHandler) Recenter(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Tracker.Recenter(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, s)
}

var positionErrorCodes = map[string]domain.PositionErrorCode{
	"denied":      domain.PositionDenied,
	"unavailable": domain.PositionUnavailable,
	"timeout":     domain.PositionTimeout,
}

// Position accepts a live sample (or sensor failure) pushed by the client.
// The tracker consumes it asynchronously.
func (h *NavigationHandler) Position(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dto.PositionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.Error != "" {
		code, known := positionErrorCodes[req.Error]
		if !known {
			writeError(w, r, http.StatusBadRequest, "error must be one of denied, unavailable, timeout")
			return
		}
		s.Feed.PublishError(code, req.Message)
	} else if err := s.Feed.Publish(req.Position()); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}
