package model

import "time"

// RefundPolicy scopes a set of cancellation rules to one property and booking
// mode. At most one policy per scope is active.
type RefundPolicy struct {
	ID          int64       `db:"id"`
	Property    Property    `db:"property"`
	BookingMode BookingMode `db:"booking_mode"`
	IsActive    bool        `db:"is_active"`
	CreatedAt   time.Time   `db:"created_at"`
	Rules       []RefundPolicyRule
}

// RefundPolicyRule grants a percentage back when the cancellation happens at
// least DaysBeforeCheckin days ahead of arrival.
type RefundPolicyRule struct {
	ID               int64 `db:"id"`
	RefundPolicyID   int64 `db:"refund_policy_id"`
	DaysBeforeCheckin int  `db:"days_before_checkin"`
	RefundPercentage int   `db:"refund_percentage"`
	Priority         int   `db:"priority"`
}

// MatchRule selects the rule with the largest threshold not exceeding the
// actual days-before-checkin, breaking ties by lowest priority value. Returns
// nil when no rule's threshold is met, including any negative daysBefore
// (cancellation after checkin).
func (p RefundPolicy) MatchRule(daysBefore int) *RefundPolicyRule {
	if daysBefore < 0 {
		return nil
	}
	var best *RefundPolicyRule
	for i := range p.Rules {
		r := &p.Rules[i]
		if r.DaysBeforeCheckin > daysBefore {
			continue
		}
		if best == nil ||
			r.DaysBeforeCheckin > best.DaysBeforeCheckin ||
			(r.DaysBeforeCheckin == best.DaysBeforeCheckin && r.Priority < best.Priority) {
			best = r
		}
	}
	return best
}

// RefundAmount applies the rule's percentage to a total, rounding half-up to
// the currency's minor unit.
func (r RefundPolicyRule) RefundAmount(total int64) int64 {
	return (total*int64(r.RefundPercentage) + 50) / 100
}
