package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondDomainError maps domain sentinels to HTTP statuses. Inventory and
// version conflicts are 409 so clients can retry with different rooms or
// dates; anything unmapped is a plain 500.
func respondDomainError(w http.ResponseWriter, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, model.ErrBookingNotFound):
		status = http.StatusNotFound
		code = "booking_not_found"
	case errors.Is(err, model.ErrRoomUnavailable):
		status = http.StatusConflict
		code = "room_unavailable"
	case errors.Is(err, model.ErrBuyoutConflict):
		status = http.StatusConflict
		code = "buyout_conflict"
	case errors.Is(err, model.ErrCapacityExceeded):
		status = http.StatusConflict
		code = "capacity_exceeded"
	case errors.Is(err, model.ErrBlackoutConflict):
		status = http.StatusConflict
		code = "blackout_conflict"
	case errors.Is(err, model.ErrConcurrencyConflict):
		status = http.StatusConflict
		code = "concurrency_conflict"
	case errors.Is(err, model.ErrIllegalTransition):
		status = http.StatusConflict
		code = "illegal_transition"
	case errors.Is(err, model.ErrInvalidDateRange):
		status = http.StatusUnprocessableEntity
		code = "invalid_date_range"
	case errors.Is(err, model.ErrNoPricingRule):
		status = http.StatusUnprocessableEntity
		code = "no_pricing_rule"
	case errors.Is(err, model.ErrNoDefaultSeason):
		status = http.StatusUnprocessableEntity
		code = "no_default_season"
	case errors.Is(err, model.ErrPaymentNotFound):
		status = http.StatusPaymentRequired
		code = "payment_not_found"
	default:
		log.Printf("unhandled error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, status, code, err.Error())
}
