package service

import (
	"context"
	"time"

	"github.com/ridgeline-stays/booking-engine/internal/model"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
)

// RefundDecision is the outcome of a refund calculation. A nil decision
// means no active policy or no rule matched; the cancellation then goes to
// manual review instead of an automatic refund.
type RefundDecision struct {
	Amount int64
	Rule   model.RefundPolicyRule
}

// RefundCalculator determines how much of a booking's total is returned on
// cancellation.
type RefundCalculator struct {
	catalog repository.CatalogRepository
}

func NewRefundCalculator(catalog repository.CatalogRepository) *RefundCalculator {
	return &RefundCalculator{catalog: catalog}
}

// Calculate looks up the active policy for the booking's property and mode
// and applies the tightest rule whose threshold is not exceeded. Cancelling
// on or after checkin matches only a zero-threshold rule; cancelling after
// checkin matches nothing.
func (r *RefundCalculator) Calculate(ctx context.Context, booking *model.Booking, cancellationDate time.Time) (*RefundDecision, error) {
	policy, err := r.catalog.ActiveRefundPolicy(ctx, booking.Property, booking.BookingMode)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, nil
	}

	daysBefore := model.DaysUntil(cancellationDate, booking.CheckinDate)
	rule := policy.MatchRule(daysBefore)
	if rule == nil {
		return nil, nil
	}

	return &RefundDecision{
		Amount: rule.RefundAmount(booking.TotalPrice),
		Rule:   *rule,
	}, nil
}
