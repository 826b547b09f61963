package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hackgods/tarot-booking/internal/checkout"
	"github.com/hackgods/tarot-booking/internal/payment"
	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decodeJSON rejects unknown fields and trailing data. An empty body is
// accepted when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", scheduling.ErrInvalidFormat, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", scheduling.ErrInvalidFormat)
	}
	return nil
}

// handleError maps domain errors to HTTP responses. Anything unrecognized is
// logged and reported without internals.
func handleError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, "invalid_format", err.Error())
	case errors.Is(err, checkout.ErrUnknownService):
		writeError(w, http.StatusBadRequest, "unknown_service", err.Error())
	case errors.Is(err, checkout.ErrNotBookable):
		writeError(w, http.StatusBadRequest, "not_bookable", err.Error())
	case errors.Is(err, scheduling.ErrDuplicateOverlap):
		writeError(w, http.StatusConflict, "duplicate_overlap", err.Error())
	case errors.Is(err, scheduling.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, scheduling.ErrOutsideAvailability):
		writeError(w, http.StatusUnprocessableEntity, "outside_availability", err.Error())
	case errors.Is(err, scheduling.ErrHasActiveBookings):
		writeError(w, http.StatusConflict, "has_active_bookings", err.Error())
	case scheduling.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, scheduling.ErrPartitionBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "partition_busy", "availability is being changed, please retry shortly")
	case errors.Is(err, payment.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, "payment_declined", err.Error())
	default:
		logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path, "request_id", GetRequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
