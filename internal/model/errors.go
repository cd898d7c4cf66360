package model

import "errors"

// Engine error taxonomy. Claim conflicts are typed so callers can distinguish
// a genuinely taken resource from a lost optimistic write; only the latter is
// worth an automatic retry.
var (
	ErrInvalidDateRange    = errors.New("checkin date must be before checkout date")
	ErrNoPricingRule       = errors.New("no pricing rule matches the stay")
	ErrBlackoutConflict    = errors.New("property is blacked out for the requested dates")
	ErrRoomUnavailable     = errors.New("room is not available for the requested dates")
	ErrBuyoutConflict      = errors.New("buyout conflicts with existing occupancy")
	ErrCapacityExceeded    = errors.New("day capacity exceeded")
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrIllegalTransition   = errors.New("illegal booking status transition")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrNoDefaultSeason     = errors.New("property has no default season")
)
