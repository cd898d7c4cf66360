package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutboxEventType classifies booking lifecycle events published to Kafka.
type OutboxEventType string

const (
	OutboxEventBookingHeld      OutboxEventType = "booking.held"
	OutboxEventBookingConfirmed OutboxEventType = "booking.confirmed"
	OutboxEventBookingCanceled  OutboxEventType = "booking.canceled"
	OutboxEventBookingRefunded  OutboxEventType = "booking.refunded"
	OutboxEventBookingExpired   OutboxEventType = "booking.expired"
)

// OutboxEvent is written in the same transaction as the state change it
// describes and published asynchronously, at-least-once.
type OutboxEvent struct {
	ID          int64           `db:"id"`
	EventType   OutboxEventType `db:"event_type"`
	BookingID   int64           `db:"booking_id"`
	Payload     json.RawMessage `db:"payload"`
	CreatedAt   time.Time       `db:"created_at"`
	ProcessedAt *time.Time      `db:"processed_at"`
}

// NewBookingEvent builds an outbox event snapshotting the booking's state.
func NewBookingEvent(eventType OutboxEventType, b Booking) (OutboxEvent, error) {
	payload, err := json.Marshal(map[string]any{
		"reference_code": b.ReferenceCode,
		"property":       b.Property,
		"booking_mode":   b.BookingMode,
		"status":         b.Status,
		"checkin_date":   Date(b.CheckinDate).Format(DateLayout),
		"checkout_date":  Date(b.CheckoutDate).Format(DateLayout),
		"guests_count":   b.GuestsCount,
		"total_price":    b.TotalPrice,
		"currency":       b.Currency,
	})
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("failed to marshal booking event: %w", err)
	}
	return OutboxEvent{
		EventType: eventType,
		BookingID: b.ID,
		Payload:   payload,
	}, nil
}
