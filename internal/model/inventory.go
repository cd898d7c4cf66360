package model

import "time"

// RoomInventory is the per-room, per-day occupancy row. Rows are created
// lazily the first time a day is touched and are never deleted afterwards;
// release resets the flags so the row stays a stable target for the
// optimistic version check.
type RoomInventory struct {
	ID       int64     `db:"id"`
	RoomID   int64     `db:"room_id"`
	Day      time.Time `db:"day"`
	Held     bool      `db:"held"`
	Booked   bool      `db:"booked"`
	HeldBy   *int64    `db:"held_by"`
	BookedBy *int64    `db:"booked_by"`
	Version  int64     `db:"version"`
}

// Claimed reports whether any booking occupies the row.
func (r RoomInventory) Claimed() bool {
	return r.Held || r.Booked
}

// ClaimedBy reports whether the given booking occupies the row.
func (r RoomInventory) ClaimedBy(bookingID int64) bool {
	return (r.Held && r.HeldBy != nil && *r.HeldBy == bookingID) ||
		(r.Booked && r.BookedBy != nil && *r.BookedBy == bookingID)
}

// PropertyInventory aggregates whole-property state for one day: day-use
// headcount against a fixed capacity, plus the buyout exclusivity flags.
type PropertyInventory struct {
	ID             int64     `db:"id"`
	Property       Property  `db:"property"`
	Day            time.Time `db:"day"`
	CapacityTotal  int       `db:"capacity_total"`
	CapacityHeld   int       `db:"capacity_held"`
	CapacityBooked int       `db:"capacity_booked"`
	BuyoutHeld     bool      `db:"buyout_held"`
	BuyoutBooked   bool      `db:"buyout_booked"`
	BuyoutBy       *int64    `db:"buyout_by"`
	Version        int64     `db:"version"`
}

// BuyoutClaimed reports whether any booking holds the property exclusively.
func (p PropertyInventory) BuyoutClaimed() bool {
	return p.BuyoutHeld || p.BuyoutBooked
}

// CapacityLeft returns the remaining day-use headroom.
func (p PropertyInventory) CapacityLeft() int {
	return p.CapacityTotal - p.CapacityHeld - p.CapacityBooked
}
