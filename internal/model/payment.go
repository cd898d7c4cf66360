package model

import "time"

// Payment is the settled payment record attached to a booking. Rows are
// written by the payments integration; the engine only reads them to gate
// confirmation.
type Payment struct {
	ID               int64     `db:"id"`
	PaymentRef       string    `db:"payment_ref"`
	BookingReference string    `db:"booking_reference"`
	Amount           int64     `db:"amount"`
	Currency         string    `db:"currency"`
	CompletedAt      time.Time `db:"completed_at"`
}
