package service

import (
	"context"
	"time"

	"github.com/ridgeline-stays/booking-engine/internal/ledger"
	"github.com/ridgeline-stays/booking-engine/internal/model"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
)

// Overlaps reports whether the half-open intervals [aIn, aOut) and
// [bIn, bOut) share at least one day. Touching boundaries do not overlap,
// which is what makes same-day turnover legal.
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return model.Date(aIn).Before(model.Date(bOut)) && model.Date(bIn).Before(model.Date(aOut))
}

// Availability answers read-only occupancy questions ahead of a claim
// attempt. Answers are advisory: the ledger claim is the only authority.
type Availability struct {
	catalog repository.CatalogRepository
	ledger  ledger.Ledger
}

func NewAvailability(catalog repository.CatalogRepository, l ledger.Ledger) *Availability {
	return &Availability{catalog: catalog, ledger: l}
}

// RoomAvailable reports whether no night of the stay is held or booked.
func (a *Availability) RoomAvailable(ctx context.Context, roomID int64, checkin, checkout time.Time) (bool, error) {
	free, err := a.ledger.RoomsFree(ctx, []int64{roomID}, checkin, checkout)
	if err != nil {
		return false, err
	}
	return free[roomID], nil
}

// BatchCheckRooms filters candidate rooms down to those free for the whole
// range. Each room is evaluated independently.
func (a *Availability) BatchCheckRooms(ctx context.Context, roomIDs []int64, property model.Property, checkin, checkout time.Time) ([]int64, error) {
	rooms, err := a.catalog.RoomsByIDs(ctx, roomIDs)
	if err != nil {
		return nil, err
	}

	candidates := make([]int64, 0, len(rooms))
	for _, room := range rooms {
		if room.Property == property && room.IsActive {
			candidates = append(candidates, room.ID)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	free, err := a.ledger.RoomsFree(ctx, candidates, checkin, checkout)
	if err != nil {
		return nil, err
	}

	var available []int64
	for _, id := range candidates {
		if free[id] {
			available = append(available, id)
		}
	}
	return available, nil
}

// HasBlackout reports whether any blackout touches the requested range.
// Blackouts block the full closed interval, unlike room occupancy.
func (a *Availability) HasBlackout(ctx context.Context, property model.Property, checkin, checkout time.Time) (bool, error) {
	blackouts, err := a.catalog.BlackoutsOverlapping(ctx, property, checkin, checkout)
	if err != nil {
		return false, err
	}
	return len(blackouts) > 0, nil
}
