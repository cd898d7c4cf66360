package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

// PaymentRepository reads settled payments written by the payments
// integration.
type PaymentRepository interface {
	GetBookingPayment(ctx context.Context, bookingRef string) (*model.Payment, error)
}

type PaymentRepositoryImpl struct {
	db *DB
}

func NewPaymentRepository(db *DB) *PaymentRepositoryImpl {
	return &PaymentRepositoryImpl{db: db}
}

// GetBookingPayment returns the completed payment for a booking reference,
// or model.ErrPaymentNotFound when the booking has not been paid.
func (r *PaymentRepositoryImpl) GetBookingPayment(ctx context.Context, bookingRef string) (*model.Payment, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "PaymentRepository.GetBookingPayment")
	defer seg.Close(nil)

	var payment model.Payment
	query := `
		SELECT id, payment_ref, booking_reference, amount, currency, completed_at
		FROM payments
		WHERE booking_reference = $1 AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &payment, query, bookingRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", bookingRef, model.ErrPaymentNotFound)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}
