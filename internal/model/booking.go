package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Booking is a reservation in one of the managed properties.
type Booking struct {
	ID            int64           `db:"id"`
	ReferenceCode string          `db:"reference_code"`
	Property      Property        `db:"property"`
	BookingMode   BookingMode     `db:"booking_mode"`
	Status        BookingStatus   `db:"status"`
	CheckinDate   time.Time       `db:"checkin_date"`
	CheckoutDate  time.Time       `db:"checkout_date"`
	GuestsCount   int             `db:"guests_count"`
	ChildrenCount int             `db:"children_count"`
	TotalPrice    int64           `db:"total_price"`
	Currency      string          `db:"currency"`
	PricingItems  json.RawMessage `db:"pricing_items"`
	HoldExpiresAt *time.Time      `db:"hold_expires_at"`
	CheckedIn     bool            `db:"checked_in"`
	RefundAmount  *int64          `db:"refund_amount"`
	RefundRuleID  *int64          `db:"refund_rule_id"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// NewReferenceCode generates the short, human-readable code handed to guests
// and external systems. It is distinct from the internal row identifier.
func NewReferenceCode() string {
	return fmt.Sprintf("BK-%s", strings.ToUpper(uuid.New().String()[:8]))
}

// Breakdown decodes the persisted pricing items.
func (b Booking) Breakdown() (PriceBreakdown, error) {
	var bd PriceBreakdown
	if len(b.PricingItems) == 0 {
		return bd, nil
	}
	if err := json.Unmarshal(b.PricingItems, &bd); err != nil {
		return bd, fmt.Errorf("failed to decode pricing items: %w", err)
	}
	return bd, nil
}

// HoldExpired reports whether a hold has passed its TTL at the given instant.
func (b Booking) HoldExpired(now time.Time) bool {
	return b.Status == BookingStatusHold && b.HoldExpiresAt != nil && b.HoldExpiresAt.Before(now)
}

// BookingRoom joins a booking to one of its rooms.
type BookingRoom struct {
	ID        int64 `db:"id"`
	BookingID int64 `db:"booking_id"`
	RoomID    int64 `db:"room_id"`
}

// BookingGuest is one entry of the ordered guest roster.
type BookingGuest struct {
	ID            int64  `db:"id"`
	BookingID     int64  `db:"booking_id"`
	Name          string `db:"name"`
	IsChild       bool   `db:"is_child"`
	IsBookingUser bool   `db:"is_booking_user"`
	OrderIndex    int    `db:"order_index"`
}
