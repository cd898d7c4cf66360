package service

import (
	"context"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

// PaymentGateway is the engine's view of the payments integration.
// Confirming a hold requires a completed payment; implementations return
// model.ErrPaymentNotFound when none exists.
type PaymentGateway interface {
	GetBookingPayment(ctx context.Context, bookingRef string) (*model.Payment, error)
}
