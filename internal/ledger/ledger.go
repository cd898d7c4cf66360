// Package ledger tracks per-day occupancy of rooms and properties. It is the
// only shared mutable state of the engine; every mutation is an optimistic
// compare-and-swap so correctness does not depend on which worker runs it.
package ledger

import (
	"context"
	"time"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

// Ledger claims and releases time-sliced inventory. Claims spanning several
// days or rooms are atomic: on any conflict nothing is persisted. Releases
// are idempotent so crash recovery and the expiry sweep can retry freely.
//
// Room and buyout claims walk the half-open range [checkin, checkout); the
// checkout day stays free for same-day turnover. Day-use capacity runs on
// the closed range [start, end] and on independent counters.
//
// All methods return nil on success or one of the typed conflicts:
// model.ErrRoomUnavailable, model.ErrBuyoutConflict,
// model.ErrCapacityExceeded, model.ErrConcurrencyConflict. The return value
// is authoritative; success never implies no other caller tried the same
// resource.
type Ledger interface {
	ClaimRooms(ctx context.Context, bookingID int64, property model.Property, roomIDs []int64, checkin, checkout time.Time, tag model.ClaimTag) error
	ConfirmRooms(ctx context.Context, bookingID int64, roomIDs []int64, checkin, checkout time.Time) error
	ReleaseRooms(ctx context.Context, bookingID int64, roomIDs []int64, checkin, checkout time.Time) error

	ClaimBuyout(ctx context.Context, bookingID int64, property model.Property, checkin, checkout time.Time, tag model.ClaimTag) error
	ConfirmBuyout(ctx context.Context, bookingID int64, property model.Property, checkin, checkout time.Time) error
	ReleaseBuyout(ctx context.Context, bookingID int64, property model.Property, checkin, checkout time.Time) error

	ClaimDayCapacity(ctx context.Context, bookingID int64, property model.Property, start, end time.Time, guests int, tag model.ClaimTag) error
	ConfirmDayCapacity(ctx context.Context, bookingID int64, property model.Property) error
	ReleaseDayCapacity(ctx context.Context, bookingID int64, property model.Property) error

	// RoomsFree reports, per candidate room, whether no day in
	// [checkin, checkout) is held or booked. Read-only: a later claim can
	// still lose the race and must re-validate.
	RoomsFree(ctx context.Context, roomIDs []int64, checkin, checkout time.Time) (map[int64]bool, error)
}

// Capacities is the fixed day-use headcount per property, used when a
// property/day row is created lazily.
type Capacities map[model.Property]int

// CapacityFor returns the configured day capacity, zero when unset.
func (c Capacities) CapacityFor(p model.Property) int {
	return c[p]
}
