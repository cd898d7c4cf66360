package model

// Property identifies one of the managed locations.
type Property string

const (
	PropertyLodge  Property = "lodge"
	PropertyCabins Property = "cabins"
)

// Properties lists every managed location.
var Properties = []Property{PropertyLodge, PropertyCabins}

// Valid reports whether p is a known property.
func (p Property) Valid() bool {
	for _, known := range Properties {
		if p == known {
			return true
		}
	}
	return false
}

func (p Property) String() string {
	return string(p)
}

// BookingMode describes what a booking reserves.
type BookingMode string

const (
	// BookingModeRoom reserves one or more rooms overnight.
	BookingModeRoom BookingMode = "room"
	// BookingModeDay reserves daytime capacity without a room.
	BookingModeDay BookingMode = "day"
	// BookingModeBuyout reserves an entire property exclusively.
	BookingModeBuyout BookingMode = "buyout"
)

// Valid reports whether m is a known booking mode.
func (m BookingMode) Valid() bool {
	switch m {
	case BookingModeRoom, BookingModeDay, BookingModeBuyout:
		return true
	}
	return false
}

func (m BookingMode) String() string {
	return string(m)
}

// PriceUnit is the charging unit of a pricing rule.
type PriceUnit string

const (
	PriceUnitPerPersonPerNight PriceUnit = "per_person_per_night"
	PriceUnitPerGuestPerDay    PriceUnit = "per_guest_per_day"
	PriceUnitBuyoutFixed       PriceUnit = "buyout_fixed"
)

// PriceUnitFor returns the charging unit that applies to a booking mode.
func PriceUnitFor(mode BookingMode) PriceUnit {
	switch mode {
	case BookingModeDay:
		return PriceUnitPerGuestPerDay
	case BookingModeBuyout:
		return PriceUnitBuyoutFixed
	default:
		return PriceUnitPerPersonPerNight
	}
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusDraft    BookingStatus = "draft"
	BookingStatusHold     BookingStatus = "hold"
	BookingStatusComplete BookingStatus = "complete"
	BookingStatusRefunded BookingStatus = "refunded"
	BookingStatusCanceled BookingStatus = "canceled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusRefunded || s == BookingStatusCanceled
}

func (s BookingStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusDraft:
		return next == BookingStatusHold || next == BookingStatusCanceled
	case BookingStatusHold:
		return next == BookingStatusComplete || next == BookingStatusCanceled
	case BookingStatusComplete:
		return next == BookingStatusRefunded || next == BookingStatusCanceled
	default:
		return false
	}
}

// ClaimTag distinguishes provisional holds from confirmed occupancy in the
// inventory ledger.
type ClaimTag string

const (
	ClaimTagHold   ClaimTag = "hold"
	ClaimTagBooked ClaimTag = "booked"
)
