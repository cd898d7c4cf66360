package model

import "time"

// RoomCategory groups rooms for pricing purposes ("single", "family", ...).
type RoomCategory struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Room is a bookable room inside one property.
type Room struct {
	ID                  int64     `db:"id"`
	Property            Property  `db:"property"`
	RoomCategoryID      *int64    `db:"room_category_id"`
	Name                string    `db:"name"`
	CapacityMax         int       `db:"capacity_max"`
	MinBillableOccupancy int      `db:"min_billable_occupancy"`
	IsSingleBed         bool      `db:"is_single_bed"`
	SingleBeds          int       `db:"single_beds"`
	DoubleBeds          int       `db:"double_beds"`
	BunkBeds            int       `db:"bunk_beds"`
	IsActive            bool      `db:"is_active"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// BillableGuests applies the room's billable-occupancy floor to a headcount.
func (r Room) BillableGuests(guests int) int {
	if guests < r.MinBillableOccupancy {
		return r.MinBillableOccupancy
	}
	return guests
}

// Blackout closes a property for new reservations over a date range.
// Unlike room occupancy, both endpoints are part of the closed period.
type Blackout struct {
	ID        int64     `db:"id"`
	Property  Property  `db:"property"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

// Blocks reports whether the blackout intersects the closed interval
// [checkin, checkout]. A range that only abuts the blackout boundary still
// blocks, because blackout days are unavailable in full.
func (b Blackout) Blocks(checkin, checkout time.Time) bool {
	return !checkout.Before(b.StartDate) && !checkin.After(b.EndDate)
}
