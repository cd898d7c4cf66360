package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

type roomDay struct {
	roomID int64
	day    string
}

type propDay struct {
	property model.Property
	day      string
}

type dayClaim struct {
	property model.Property
	day      string
	guests   int
	tag      model.ClaimTag
}

// Memory implements Ledger with mutex-guarded maps. It backs local runs and
// the concurrency tests; the semantics mirror the Postgres implementation.
type Memory struct {
	mu         sync.Mutex
	rooms      map[roomDay]*model.RoomInventory
	props      map[propDay]*model.PropertyInventory
	roomClaims map[propDay]int // room-level claims per property/day, for buyout exclusion
	roomProps  map[int64]model.Property
	dayClaims  map[int64][]dayClaim
	capacities Capacities
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(capacities Capacities) *Memory {
	return &Memory{
		rooms:      make(map[roomDay]*model.RoomInventory),
		props:      make(map[propDay]*model.PropertyInventory),
		roomClaims: make(map[propDay]int),
		roomProps:  make(map[int64]model.Property),
		dayClaims:  make(map[int64][]dayClaim),
		capacities: capacities,
	}
}

func (m *Memory) roomRow(roomID int64, day time.Time) *model.RoomInventory {
	key := roomDay{roomID, model.Date(day).Format(model.DateLayout)}
	row, ok := m.rooms[key]
	if !ok {
		row = &model.RoomInventory{RoomID: roomID, Day: model.Date(day)}
		m.rooms[key] = row
	}
	return row
}

func (m *Memory) propRow(property model.Property, day time.Time) *model.PropertyInventory {
	key := propDay{property, model.Date(day).Format(model.DateLayout)}
	row, ok := m.props[key]
	if !ok {
		row = &model.PropertyInventory{
			Property:      property,
			Day:           model.Date(day),
			CapacityTotal: m.capacities.CapacityFor(property),
		}
		m.props[key] = row
	}
	return row
}

// ClaimRooms marks every night of the stay for every room, all-or-nothing.
func (m *Memory) ClaimRooms(_ context.Context, bookingID int64, property model.Property, roomIDs []int64, checkin, checkout time.Time, tag model.ClaimTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nights := model.NightsOf(checkin, checkout)

	// First pass: validate before touching anything, so a conflict leaves no
	// partial claim behind.
	for _, day := range nights {
		if m.propRow(property, day).BuyoutClaimed() {
			return fmt.Errorf("property %s on %s: %w", property, day.Format(model.DateLayout), model.ErrBuyoutConflict)
		}
		for _, roomID := range roomIDs {
			if row := m.roomRow(roomID, day); row.Claimed() && !row.ClaimedBy(bookingID) {
				return fmt.Errorf("room %d on %s: %w", roomID, day.Format(model.DateLayout), model.ErrRoomUnavailable)
			}
		}
	}

	for _, day := range nights {
		prop := m.propRow(property, day)
		prop.Version++
		for _, roomID := range roomIDs {
			m.roomProps[roomID] = property
			row := m.roomRow(roomID, day)
			if !row.Claimed() {
				m.roomClaims[propDay{property, model.Date(day).Format(model.DateLayout)}]++
			}
			id := bookingID
			switch tag {
			case model.ClaimTagBooked:
				row.Booked = true
				row.BookedBy = &id
			default:
				row.Held = true
				row.HeldBy = &id
			}
			row.Version++
		}
	}
	return nil
}

// ConfirmRooms retags the booking's held nights to booked in place.
func (m *Memory) ConfirmRooms(_ context.Context, bookingID int64, roomIDs []int64, checkin, checkout time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, day := range model.NightsOf(checkin, checkout) {
		for _, roomID := range roomIDs {
			row := m.roomRow(roomID, day)
			if row.Held && row.HeldBy != nil && *row.HeldBy == bookingID {
				id := bookingID
				row.Held = false
				row.HeldBy = nil
				row.Booked = true
				row.BookedBy = &id
				row.Version++
			}
		}
	}
	return nil
}

// ReleaseRooms resets the booking's claims. Already-released rows are left
// alone, so the sweep can retry after a crash.
func (m *Memory) ReleaseRooms(_ context.Context, bookingID int64, roomIDs []int64, checkin, checkout time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, day := range model.NightsOf(checkin, checkout) {
		for _, roomID := range roomIDs {
			row := m.roomRow(roomID, day)
			if !row.ClaimedBy(bookingID) {
				continue
			}
			row.Held = false
			row.HeldBy = nil
			row.Booked = false
			row.BookedBy = nil
			row.Version++
			key := propDay{m.roomProps[roomID], model.Date(day).Format(model.DateLayout)}
			if m.roomClaims[key] > 0 {
				m.roomClaims[key]--
			}
		}
	}
	return nil
}

// ClaimBuyout takes the whole property for every night, rejecting when any
// room-level claim exists on a night in range.
func (m *Memory) ClaimBuyout(_ context.Context, bookingID int64, property model.Property, checkin, checkout time.Time, tag model.ClaimTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nights := model.NightsOf(checkin, checkout)

	for _, day := range nights {
		key := propDay{property, model.Date(day).Format(model.DateLayout)}
		prop := m.propRow(property, day)
		if prop.BuyoutClaimed() && (prop.BuyoutBy == nil || *prop.BuyoutBy != bookingID) {
			return fmt.Errorf("property %s on %s: %w", property, day.Format(model.DateLayout), model.ErrBuyoutConflict)
		}
		if m.roomClaims[key] > 0 {
			return fmt.Errorf("property %s on %s has room claims: %w", property, day.Format(model.DateLayout), model.ErrBuyoutConflict)
		}
	}

	for _, day := range nights {
		prop := m.propRow(property, day)
		id := bookingID
		switch tag {
		case model.ClaimTagBooked:
			prop.BuyoutBooked = true
		default:
			prop.BuyoutHeld = true
		}
		prop.BuyoutBy = &id
		prop.Version++
	}
	return nil
}

// ConfirmBuyout retags a held buyout to booked.
func (m *Memory) ConfirmBuyout(_ context.Context, bookingID int64, property model.Property, checkin, checkout time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, day := range model.NightsOf(checkin, checkout) {
		prop := m.propRow(property, day)
		if prop.BuyoutHeld && prop.BuyoutBy != nil && *prop.BuyoutBy == bookingID {
			prop.BuyoutHeld = false
			prop.BuyoutBooked = true
			prop.Version++
		}
	}
	return nil
}

// ReleaseBuyout clears the booking's buyout flags, idempotently.
func (m *Memory) ReleaseBuyout(_ context.Context, bookingID int64, property model.Property, checkin, checkout time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, day := range model.NightsOf(checkin, checkout) {
		prop := m.propRow(property, day)
		if prop.BuyoutBy == nil || *prop.BuyoutBy != bookingID {
			continue
		}
		prop.BuyoutHeld = false
		prop.BuyoutBooked = false
		prop.BuyoutBy = nil
		prop.Version++
	}
	return nil
}

// ClaimDayCapacity reserves guest headcount on every day of the closed range
// [start, end], bounded by each day's capacity total.
func (m *Memory) ClaimDayCapacity(_ context.Context, bookingID int64, property model.Property, start, end time.Time, guests int, tag model.ClaimTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	days := model.DaysOf(start, end)

	for _, day := range days {
		prop := m.propRow(property, day)
		if prop.CapacityLeft() < guests {
			return fmt.Errorf("property %s on %s: %w", property, day.Format(model.DateLayout), model.ErrCapacityExceeded)
		}
	}

	claims := make([]dayClaim, 0, len(days))
	for _, day := range days {
		prop := m.propRow(property, day)
		switch tag {
		case model.ClaimTagBooked:
			prop.CapacityBooked += guests
		default:
			prop.CapacityHeld += guests
		}
		prop.Version++
		claims = append(claims, dayClaim{property, model.Date(day).Format(model.DateLayout), guests, tag})
	}
	m.dayClaims[bookingID] = append(m.dayClaims[bookingID], claims...)
	return nil
}

// ConfirmDayCapacity moves the booking's held headcount to booked.
func (m *Memory) ConfirmDayCapacity(_ context.Context, bookingID int64, property model.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	claims := m.dayClaims[bookingID]
	for i := range claims {
		if claims[i].property != property || claims[i].tag != model.ClaimTagHold {
			continue
		}
		day, _ := time.Parse(model.DateLayout, claims[i].day)
		prop := m.propRow(property, day)
		prop.CapacityHeld -= claims[i].guests
		prop.CapacityBooked += claims[i].guests
		prop.Version++
		claims[i].tag = model.ClaimTagBooked
	}
	m.dayClaims[bookingID] = claims
	return nil
}

// ReleaseDayCapacity returns all of the booking's headcount. The claim
// records double as the idempotency guard: a second release finds none.
func (m *Memory) ReleaseDayCapacity(_ context.Context, bookingID int64, property model.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	claims := m.dayClaims[bookingID]
	remaining := claims[:0]
	for _, c := range claims {
		if c.property != property {
			remaining = append(remaining, c)
			continue
		}
		day, _ := time.Parse(model.DateLayout, c.day)
		prop := m.propRow(property, day)
		if c.tag == model.ClaimTagBooked {
			prop.CapacityBooked -= c.guests
		} else {
			prop.CapacityHeld -= c.guests
		}
		prop.Version++
	}
	if len(remaining) == 0 {
		delete(m.dayClaims, bookingID)
	} else {
		m.dayClaims[bookingID] = remaining
	}
	return nil
}

// RoomsFree evaluates each candidate room against the stay, read-only.
func (m *Memory) RoomsFree(_ context.Context, roomIDs []int64, checkin, checkout time.Time) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int64]bool, len(roomIDs))
	for _, roomID := range roomIDs {
		free := true
		for _, day := range model.NightsOf(checkin, checkout) {
			key := roomDay{roomID, model.Date(day).Format(model.DateLayout)}
			if row, ok := m.rooms[key]; ok && row.Claimed() {
				free = false
				break
			}
		}
		out[roomID] = free
	}
	return out, nil
}

var _ Ledger = (*Memory)(nil)
