package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ridgeline-stays/booking-engine/internal/ledger"
	"github.com/ridgeline-stays/booking-engine/internal/model"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
)

const (
	// DefaultHoldTTL bounds how long an unpaid hold keeps inventory.
	DefaultHoldTTL = 15 * time.Minute

	// claimAttempts bounds the automatic retry on a lost optimistic write.
	// Genuine unavailability is never retried.
	claimAttempts = 3
)

// Bookings drives the reservation state machine:
// draft -> hold -> {complete, canceled}, complete -> refunded.
// No inventory is touched before hold.
type Bookings struct {
	repo         repository.BookingRepository
	ledger       ledger.Ledger
	pricer       *Pricer
	availability *Availability
	seasons      *SeasonCatalog
	refunds      *RefundCalculator
	payments     PaymentGateway
	holdTTL      time.Duration
	now          func() time.Time
}

// NewBookings wires the state machine. holdTTL <= 0 selects the default.
func NewBookings(
	repo repository.BookingRepository,
	l ledger.Ledger,
	pricer *Pricer,
	availability *Availability,
	seasons *SeasonCatalog,
	refunds *RefundCalculator,
	payments PaymentGateway,
	holdTTL time.Duration,
) *Bookings {
	if holdTTL <= 0 {
		holdTTL = DefaultHoldTTL
	}
	return &Bookings{
		repo:         repo,
		ledger:       l,
		pricer:       pricer,
		availability: availability,
		seasons:      seasons,
		refunds:      refunds,
		payments:     payments,
		holdTTL:      holdTTL,
		now:          time.Now,
	}
}

// CreateInput describes a new reservation request.
type CreateInput struct {
	Property      model.Property
	BookingMode   model.BookingMode
	Checkin       time.Time
	Checkout      time.Time
	GuestsCount   int
	ChildrenCount int
	RoomIDs       []int64
	Guests        []model.BookingGuest
}

// Create validates the request, prices the stay and persists a draft. The
// draft claims no inventory; that happens at PlaceHold.
func (s *Bookings) Create(ctx context.Context, input CreateInput) (*model.Booking, error) {
	if !input.Property.Valid() || !input.BookingMode.Valid() {
		return nil, fmt.Errorf("unknown property or booking mode: %w", model.ErrInvalidDateRange)
	}
	if !model.Date(input.Checkin).Before(model.Date(input.Checkout)) {
		return nil, model.ErrInvalidDateRange
	}
	if err := s.validateSeasonLimits(ctx, input); err != nil {
		return nil, err
	}

	blocked, err := s.availability.HasBlackout(ctx, input.Property, input.Checkin, input.Checkout)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, model.ErrBlackoutConflict
	}

	breakdown, err := s.pricer.Quote(ctx, QuoteInput{
		Property:    input.Property,
		BookingMode: input.BookingMode,
		Checkin:     input.Checkin,
		Checkout:    input.Checkout,
		GuestsCount: input.GuestsCount,
		RoomIDs:     input.RoomIDs,
	})
	if err != nil {
		return nil, err
	}

	items, err := json.Marshal(breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pricing items: %w", err)
	}

	booking := &model.Booking{
		ReferenceCode: model.NewReferenceCode(),
		Property:      input.Property,
		BookingMode:   input.BookingMode,
		Status:        model.BookingStatusDraft,
		CheckinDate:   model.Date(input.Checkin),
		CheckoutDate:  model.Date(input.Checkout),
		GuestsCount:   input.GuestsCount,
		ChildrenCount: input.ChildrenCount,
		TotalPrice:    breakdown.Total,
		Currency:      breakdown.Currency,
		PricingItems:  items,
	}
	if err := s.repo.Create(ctx, booking, input.RoomIDs, input.Guests); err != nil {
		return nil, err
	}
	return booking, nil
}

// validateSeasonLimits enforces the per-season advance-booking window and
// maximum stay length when configured.
func (s *Bookings) validateSeasonLimits(ctx context.Context, input CreateInput) error {
	season, err := s.seasons.Resolve(ctx, input.Property, input.Checkin)
	if err != nil {
		return err
	}
	if season.MaxNights != nil && model.Nights(input.Checkin, input.Checkout) > *season.MaxNights {
		return fmt.Errorf("stay exceeds %d nights: %w", *season.MaxNights, model.ErrInvalidDateRange)
	}
	if season.AdvanceBookingDays != nil && model.DaysUntil(s.now(), input.Checkin) > *season.AdvanceBookingDays {
		return fmt.Errorf("checkin beyond %d-day advance window: %w", *season.AdvanceBookingDays, model.ErrInvalidDateRange)
	}
	return nil
}

// PlaceHold claims inventory for a draft booking and starts the TTL clock.
// A lost optimistic write is retried a bounded number of times after
// re-checking availability; a genuinely taken resource surfaces immediately.
func (s *Bookings) PlaceHold(ctx context.Context, ref string) (*model.Booking, error) {
	booking, err := s.repo.GetByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingStatusDraft {
		return nil, fmt.Errorf("booking %s is %s: %w", ref, booking.Status, model.ErrIllegalTransition)
	}

	roomIDs, err := s.repo.RoomIDs(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < claimAttempts; attempt++ {
		lastErr = s.claim(ctx, booking, roomIDs, model.ClaimTagHold)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, model.ErrConcurrencyConflict) {
			return nil, lastErr
		}
		log.Printf("claim attempt %d for booking %s lost a concurrent write, retrying", attempt+1, ref)
	}
	if lastErr != nil {
		// Retries exhausted: surface as plain unavailability.
		return nil, fmt.Errorf("booking %s: %w", ref, conflictFor(booking.BookingMode))
	}

	expiresAt := s.now().Add(s.holdTTL)
	event := s.event(model.OutboxEventBookingHeld, *booking, model.BookingStatusHold)
	ok, err := s.repo.PlaceHold(ctx, booking.ID, expiresAt, event)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another worker moved the booking; give the claim back.
		if err := s.release(ctx, booking, roomIDs); err != nil {
			log.Printf("failed to release claims for booking %d: %v", booking.ID, err)
		}
		return nil, fmt.Errorf("booking %s: %w", ref, model.ErrIllegalTransition)
	}

	booking.Status = model.BookingStatusHold
	booking.HoldExpiresAt = &expiresAt
	return booking, nil
}

func conflictFor(mode model.BookingMode) error {
	switch mode {
	case model.BookingModeBuyout:
		return model.ErrBuyoutConflict
	case model.BookingModeDay:
		return model.ErrCapacityExceeded
	default:
		return model.ErrRoomUnavailable
	}
}

// claim runs the availability pre-check and the mode's ledger claim.
func (s *Bookings) claim(ctx context.Context, b *model.Booking, roomIDs []int64, tag model.ClaimTag) error {
	switch b.BookingMode {
	case model.BookingModeBuyout:
		return s.ledger.ClaimBuyout(ctx, b.ID, b.Property, b.CheckinDate, b.CheckoutDate, tag)
	case model.BookingModeDay:
		return s.ledger.ClaimDayCapacity(ctx, b.ID, b.Property, b.CheckinDate, b.CheckoutDate, b.GuestsCount, tag)
	default:
		available, err := s.availability.BatchCheckRooms(ctx, roomIDs, b.Property, b.CheckinDate, b.CheckoutDate)
		if err != nil {
			return err
		}
		if len(available) != len(roomIDs) {
			return fmt.Errorf("booking %d: %w", b.ID, model.ErrRoomUnavailable)
		}
		return s.ledger.ClaimRooms(ctx, b.ID, b.Property, roomIDs, b.CheckinDate, b.CheckoutDate, tag)
	}
}

// release gives back whatever the booking claimed. Safe on already-released
// claims: every release is ownership-checked and matches nothing the second
// time.
func (s *Bookings) release(ctx context.Context, b *model.Booking, roomIDs []int64) error {
	switch b.BookingMode {
	case model.BookingModeBuyout:
		return s.ledger.ReleaseBuyout(ctx, b.ID, b.Property, b.CheckinDate, b.CheckoutDate)
	case model.BookingModeDay:
		return s.ledger.ReleaseDayCapacity(ctx, b.ID, b.Property)
	default:
		return s.ledger.ReleaseRooms(ctx, b.ID, roomIDs, b.CheckinDate, b.CheckoutDate)
	}
}

// Confirm moves a paid hold to complete. The held ledger rows are retagged
// in place; no new date-range walk happens.
func (s *Bookings) Confirm(ctx context.Context, ref string) (*model.Booking, error) {
	booking, err := s.repo.GetByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingStatusHold {
		return nil, fmt.Errorf("booking %s is %s: %w", ref, booking.Status, model.ErrIllegalTransition)
	}
	// An expired hold belongs to the sweep; confirming it would race the
	// release of its own inventory.
	if booking.HoldExpired(s.now()) {
		return nil, fmt.Errorf("booking %s hold has expired: %w", ref, model.ErrIllegalTransition)
	}

	if _, err := s.payments.GetBookingPayment(ctx, ref); err != nil {
		return nil, err
	}

	// Retag before the status flip. If the process dies in between, the
	// booking is still a hold and the expiry sweep releases its rows, booked
	// tag included.
	if err := s.retag(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to confirm claims for booking %s: %w", ref, err)
	}

	event := s.event(model.OutboxEventBookingConfirmed, *booking, model.BookingStatusComplete)
	ok, err := s.repo.Complete(ctx, booking.ID, event)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The sweep won the race; its release already covered the retagged
		// rows or will no-op against rows it cleared first.
		return nil, fmt.Errorf("booking %s: %w", ref, model.ErrIllegalTransition)
	}

	booking.Status = model.BookingStatusComplete
	booking.HoldExpiresAt = nil
	return booking, nil
}

func (s *Bookings) retag(ctx context.Context, b *model.Booking) error {
	switch b.BookingMode {
	case model.BookingModeBuyout:
		return s.ledger.ConfirmBuyout(ctx, b.ID, b.Property, b.CheckinDate, b.CheckoutDate)
	case model.BookingModeDay:
		return s.ledger.ConfirmDayCapacity(ctx, b.ID, b.Property)
	default:
		roomIDs, err := s.repo.RoomIDs(ctx, b.ID)
		if err != nil {
			return err
		}
		return s.ledger.ConfirmRooms(ctx, b.ID, roomIDs, b.CheckinDate, b.CheckoutDate)
	}
}

// Cancel ends a booking. Holds give their inventory back; completed stays
// keep their booked rows as history and may earn a refund per policy.
func (s *Bookings) Cancel(ctx context.Context, ref string) (*model.Booking, error) {
	booking, err := s.repo.GetByReference(ctx, ref)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case model.BookingStatusDraft:
		ok, err := s.repo.CancelFrom(ctx, booking.ID, model.BookingStatusDraft, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("booking %s: %w", ref, model.ErrIllegalTransition)
		}
		booking.Status = model.BookingStatusCanceled
		return booking, nil

	case model.BookingStatusHold:
		roomIDs, err := s.repo.RoomIDs(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		// Release before the status flip. If the process dies in between,
		// the booking is still a hold and the expiry sweep finishes the
		// cancellation; a second release matches nothing.
		if err := s.release(ctx, booking, roomIDs); err != nil {
			return nil, fmt.Errorf("failed to release claims for booking %s: %w", ref, err)
		}
		event := s.event(model.OutboxEventBookingCanceled, *booking, model.BookingStatusCanceled)
		ok, err := s.repo.CancelFrom(ctx, booking.ID, model.BookingStatusHold, event)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("booking %s: %w", ref, model.ErrIllegalTransition)
		}
		booking.Status = model.BookingStatusCanceled
		return booking, nil

	case model.BookingStatusComplete:
		return s.cancelComplete(ctx, booking)

	default:
		return nil, fmt.Errorf("booking %s is %s: %w", ref, booking.Status, model.ErrIllegalTransition)
	}
}

// cancelComplete applies the refund policy. With a matching rule the booking
// becomes refunded; otherwise it is canceled and left for manual review.
func (s *Bookings) cancelComplete(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	decision, err := s.refunds.Calculate(ctx, booking, s.now())
	if err != nil {
		return nil, err
	}

	if decision == nil {
		event := s.event(model.OutboxEventBookingCanceled, *booking, model.BookingStatusCanceled)
		ok, err := s.repo.CancelFrom(ctx, booking.ID, model.BookingStatusComplete, event)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("booking %s: %w", booking.ReferenceCode, model.ErrIllegalTransition)
		}
		booking.Status = model.BookingStatusCanceled
		return booking, nil
	}

	ruleID := decision.Rule.ID
	event := s.event(model.OutboxEventBookingRefunded, *booking, model.BookingStatusRefunded)
	ok, err := s.repo.MarkRefunded(ctx, booking.ID, decision.Amount, &ruleID, event)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", booking.ReferenceCode, model.ErrIllegalTransition)
	}
	booking.Status = model.BookingStatusRefunded
	booking.RefundAmount = &decision.Amount
	booking.RefundRuleID = &ruleID
	return booking, nil
}

// ExpireHold releases an expired hold's claims and transitions it to
// canceled. The release runs before the status flip: a crash in between
// leaves the booking a hold, so the next sweep tick lists it again and
// retries, and the repeated release matches nothing. Safe when several sweep
// instances race because releases are ownership-checked and only one
// conditional update lands.
func (s *Bookings) ExpireHold(ctx context.Context, booking *model.Booking) (bool, error) {
	if !booking.HoldExpired(s.now()) {
		return false, nil
	}

	roomIDs, err := s.repo.RoomIDs(ctx, booking.ID)
	if err != nil {
		return false, err
	}
	if err := s.release(ctx, booking, roomIDs); err != nil {
		return false, err
	}

	event := s.event(model.OutboxEventBookingExpired, *booking, model.BookingStatusCanceled)
	ok, err := s.repo.CancelFrom(ctx, booking.ID, model.BookingStatusHold, event)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// MarkCheckedIn records guest arrival on a completed booking.
func (s *Bookings) MarkCheckedIn(ctx context.Context, ref string) error {
	booking, err := s.repo.GetByReference(ctx, ref)
	if err != nil {
		return err
	}
	ok, err := s.repo.MarkCheckedIn(ctx, booking.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("booking %s is %s: %w", ref, booking.Status, model.ErrIllegalTransition)
	}
	return nil
}

// Get loads a booking by reference.
func (s *Bookings) Get(ctx context.Context, ref string) (*model.Booking, error) {
	return s.repo.GetByReference(ctx, ref)
}

// event builds an outbox event for the state the booking is moving into.
// Event construction failures are logged, not fatal: the transition matters
// more than its announcement.
func (s *Bookings) event(eventType model.OutboxEventType, b model.Booking, next model.BookingStatus) *model.OutboxEvent {
	b.Status = next
	event, err := model.NewBookingEvent(eventType, b)
	if err != nil {
		log.Printf("failed to build %s event for booking %d: %v", eventType, b.ID, err)
		return nil
	}
	return &event
}
