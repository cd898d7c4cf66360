package model

import "time"

// PricingRule prices one charging unit within an optional scope. The scope
// columns are nullable; the most specific rule matching a stay wins.
type PricingRule struct {
	ID             int64       `db:"id"`
	Amount         int64       `db:"amount"` // minor units
	Currency       string      `db:"currency"`
	BookingMode    BookingMode `db:"booking_mode"`
	PriceUnit      PriceUnit   `db:"price_unit"`
	Property       *Property   `db:"property"`
	SeasonID       *int64      `db:"season_id"`
	RoomCategoryID *int64      `db:"room_category_id"`
	RoomID         *int64      `db:"room_id"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

// Rule specificity, highest first: exact room, then room category, then
// property+season, then property-only.
const (
	specificityRoom           = 4
	specificityRoomCategory   = 3
	specificityPropertySeason = 2
	specificityProperty       = 1
)

// MatchScore returns the rule's specificity against a concrete night, or 0
// when the rule does not apply. The room argument may be nil for day and
// buyout pricing, which carry no room scope.
func (r PricingRule) MatchScore(property Property, seasonID int64, room *Room) int {
	if r.Property != nil && *r.Property != property {
		return 0
	}
	if r.SeasonID != nil && *r.SeasonID != seasonID {
		return 0
	}
	if r.RoomID != nil {
		if room == nil || *r.RoomID != room.ID {
			return 0
		}
		return specificityRoom
	}
	if r.RoomCategoryID != nil {
		if room == nil || room.RoomCategoryID == nil || *r.RoomCategoryID != *room.RoomCategoryID {
			return 0
		}
		return specificityRoomCategory
	}
	if r.Property == nil {
		return 0
	}
	if r.SeasonID != nil {
		return specificityPropertySeason
	}
	return specificityProperty
}

// BestRule picks the most specific applicable rule for a night. Returns nil
// when no rule matches at all.
func BestRule(rules []PricingRule, property Property, seasonID int64, room *Room) *PricingRule {
	var best *PricingRule
	bestScore := 0
	for i := range rules {
		score := rules[i].MatchScore(property, seasonID, room)
		if score > bestScore {
			best = &rules[i]
			bestScore = score
		}
	}
	return best
}

// PriceLine is one dated entry of a quote breakdown. The breakdown is
// persisted verbatim on the booking so the quoted numbers survive later rule
// edits.
type PriceLine struct {
	Date       string `json:"date"`
	RuleID     int64  `json:"rule_id"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
	LineTotal  int64  `json:"line_total"`
}

// PriceBreakdown is an ordered per-night (or per-day) price decomposition.
type PriceBreakdown struct {
	Currency string      `json:"currency"`
	Lines    []PriceLine `json:"lines"`
	Total    int64       `json:"total"`
}
