package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/itinerary"
	"trip-route-service/internal/navigation"
	"trip-route-service/internal/platform/obs"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errUnknownSession = errors.New("unknown itinerary")

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obs.Logger(r.Context()).Warn("encode failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads exactly one JSON object with no unknown fields.
// An empty body leaves dst untouched when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid json body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON object")
	}
	return nil
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, r, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrInvalidStop):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, errUnknownSession), errors.Is(err, itinerary.ErrUnknownStop):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, itinerary.ErrStaleResult),
		errors.Is(err, itinerary.ErrNothingToOptimize),
		errors.Is(err, itinerary.ErrClosed),
		errors.Is(err, errNoPlan),
		errors.Is(err, navigation.ErrNotActive),
		errors.Is(err, navigation.ErrAlreadyActive):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		obs.Logger(r.Context()).Warn("provider failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "upstream timed out")
	default:
		obs.Logger(r.Context()).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
