package httpapi

import (
	"context"
	"time"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

// fakeBookingRepo is an in-memory repository.BookingRepository for wiring the
// real service stack under httptest.
type fakeBookingRepo struct {
	bookings map[int64]*model.Booking
	byRef    map[string]int64
	rooms    map[int64][]int64
	guests   map[int64][]model.BookingGuest
	nextID   int64
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		bookings: make(map[int64]*model.Booking),
		byRef:    make(map[string]int64),
		rooms:    make(map[int64][]int64),
		guests:   make(map[int64][]model.BookingGuest),
	}
}

func (f *fakeBookingRepo) Create(_ context.Context, b *model.Booking, roomIDs []int64, guests []model.BookingGuest) error {
	f.nextID++
	b.ID = f.nextID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	clone := *b
	f.bookings[b.ID] = &clone
	f.byRef[b.ReferenceCode] = b.ID
	f.rooms[b.ID] = append([]int64(nil), roomIDs...)
	f.guests[b.ID] = append([]model.BookingGuest(nil), guests...)
	return nil
}

func (f *fakeBookingRepo) GetByReference(_ context.Context, ref string) (*model.Booking, error) {
	id, ok := f.byRef[ref]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	clone := *f.bookings[id]
	return &clone, nil
}

func (f *fakeBookingRepo) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	clone := *b
	return &clone, nil
}

func (f *fakeBookingRepo) RoomIDs(_ context.Context, bookingID int64) ([]int64, error) {
	return append([]int64(nil), f.rooms[bookingID]...), nil
}

func (f *fakeBookingRepo) Guests(_ context.Context, bookingID int64) ([]model.BookingGuest, error) {
	return append([]model.BookingGuest(nil), f.guests[bookingID]...), nil
}

func (f *fakeBookingRepo) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if b.HoldExpired(now) && len(out) < limit {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) PlaceHold(_ context.Context, id int64, expiresAt time.Time, _ *model.OutboxEvent) (bool, error) {
	b, ok := f.bookings[id]
	if !ok || b.Status != model.BookingStatusDraft {
		return false, nil
	}
	b.Status = model.BookingStatusHold
	at := expiresAt
	b.HoldExpiresAt = &at
	return true, nil
}

func (f *fakeBookingRepo) Complete(_ context.Context, id int64, _ *model.OutboxEvent) (bool, error) {
	b, ok := f.bookings[id]
	if !ok || b.Status != model.BookingStatusHold {
		return false, nil
	}
	b.Status = model.BookingStatusComplete
	b.HoldExpiresAt = nil
	return true, nil
}

func (f *fakeBookingRepo) CancelFrom(_ context.Context, id int64, from model.BookingStatus, _ *model.OutboxEvent) (bool, error) {
	b, ok := f.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = model.BookingStatusCanceled
	b.HoldExpiresAt = nil
	return true, nil
}

func (f *fakeBookingRepo) MarkRefunded(_ context.Context, id int64, amount int64, ruleID *int64, _ *model.OutboxEvent) (bool, error) {
	b, ok := f.bookings[id]
	if !ok || b.Status != model.BookingStatusComplete {
		return false, nil
	}
	b.Status = model.BookingStatusRefunded
	b.RefundAmount = &amount
	b.RefundRuleID = ruleID
	return true, nil
}

func (f *fakeBookingRepo) MarkCheckedIn(_ context.Context, id int64) (bool, error) {
	b, ok := f.bookings[id]
	if !ok || b.Status != model.BookingStatusComplete || b.CheckedIn {
		return false, nil
	}
	b.CheckedIn = true
	return true, nil
}

// fakeCatalog serves fixtures for repository.CatalogRepository.
type fakeCatalog struct {
	seasons   []model.Season
	rooms     map[int64]model.Room
	rules     []model.PricingRule
	blackouts []model.Blackout
	policy    *model.RefundPolicy
}

func (f *fakeCatalog) SeasonsByProperty(_ context.Context, property model.Property) ([]model.Season, error) {
	var out []model.Season
	for _, s := range f.seasons {
		if s.Property == property {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeCatalog) RoomByID(_ context.Context, id int64) (*model.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, model.ErrRoomUnavailable
	}
	return &room, nil
}

func (f *fakeCatalog) RoomsByIDs(_ context.Context, ids []int64) ([]model.Room, error) {
	var out []model.Room
	for _, id := range ids {
		if room, ok := f.rooms[id]; ok {
			out = append(out, room)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ActiveRooms(_ context.Context, property model.Property) ([]model.Room, error) {
	var out []model.Room
	for _, room := range f.rooms {
		if room.Property == property && room.IsActive {
			out = append(out, room)
		}
	}
	return out, nil
}

func (f *fakeCatalog) PricingRules(_ context.Context, property model.Property, mode model.BookingMode, unit model.PriceUnit) ([]model.PricingRule, error) {
	var out []model.PricingRule
	for _, r := range f.rules {
		if r.BookingMode != mode || r.PriceUnit != unit {
			continue
		}
		if r.Property != nil && *r.Property != property {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeCatalog) BlackoutsOverlapping(_ context.Context, property model.Property, checkin, checkout time.Time) ([]model.Blackout, error) {
	var out []model.Blackout
	for _, b := range f.blackouts {
		if b.Property == property && b.Blocks(model.Date(checkin), model.Date(checkout)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ActiveRefundPolicy(_ context.Context, property model.Property, mode model.BookingMode) (*model.RefundPolicy, error) {
	if f.policy == nil || f.policy.Property != property || f.policy.BookingMode != mode {
		return nil, nil
	}
	return f.policy, nil
}

// fakePayments answers the payment lookup. Nil payment means unpaid.
type fakePayments struct {
	payment *model.Payment
}

func (f *fakePayments) GetBookingPayment(_ context.Context, _ string) (*model.Payment, error) {
	if f.payment == nil {
		return nil, model.ErrPaymentNotFound
	}
	return f.payment, nil
}
