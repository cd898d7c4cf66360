package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ridgeline-stays/booking-engine/internal/cache"
	"github.com/ridgeline-stays/booking-engine/internal/model"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
)

// QuoteInput describes a stay to price.
type QuoteInput struct {
	Property    model.Property
	BookingMode model.BookingMode
	Checkin     time.Time
	Checkout    time.Time
	GuestsCount int
	RoomIDs     []int64
}

func (q QuoteInput) cacheKey() string {
	ids := make([]string, len(q.RoomIDs))
	for i, id := range q.RoomIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s:%s:%s:%s:%d:%s",
		q.Property, q.BookingMode,
		model.Date(q.Checkin).Format(model.DateLayout),
		model.Date(q.Checkout).Format(model.DateLayout),
		q.GuestsCount, strings.Join(ids, ","))
}

// Pricer computes stay totals with a per-night breakdown. A quote never
// silently prices a night at zero: a night without an applicable rule fails
// the whole quote.
type Pricer struct {
	catalog repository.CatalogRepository
	seasons *SeasonCatalog
	quotes  cache.QuoteCache
}

// NewPricer creates a pricer. quotes may be nil to disable caching.
func NewPricer(catalog repository.CatalogRepository, seasons *SeasonCatalog, quotes cache.QuoteCache) *Pricer {
	return &Pricer{catalog: catalog, seasons: seasons, quotes: quotes}
}

// Quote prices the stay described by input.
func (p *Pricer) Quote(ctx context.Context, input QuoteInput) (model.PriceBreakdown, error) {
	if !model.Date(input.Checkin).Before(model.Date(input.Checkout)) {
		return model.PriceBreakdown{}, model.ErrInvalidDateRange
	}

	if p.quotes != nil {
		if cached, err := p.quotes.Get(ctx, input.cacheKey()); err == nil {
			return *cached, nil
		}
	}

	var (
		breakdown model.PriceBreakdown
		err       error
	)
	switch input.BookingMode {
	case model.BookingModeBuyout:
		breakdown, err = p.quoteBuyout(ctx, input)
	case model.BookingModeDay:
		breakdown, err = p.quoteDay(ctx, input)
	default:
		breakdown, err = p.quoteRooms(ctx, input)
	}
	if err != nil {
		return model.PriceBreakdown{}, err
	}

	if p.quotes != nil {
		if err := p.quotes.Set(ctx, input.cacheKey(), &breakdown); err != nil {
			log.Printf("failed to cache quote: %v", err)
		}
	}
	return breakdown, nil
}

// quoteBuyout charges one flat amount per night, independent of guests.
func (p *Pricer) quoteBuyout(ctx context.Context, input QuoteInput) (model.PriceBreakdown, error) {
	rules, err := p.catalog.PricingRules(ctx, input.Property, model.BookingModeBuyout, model.PriceUnitBuyoutFixed)
	if err != nil {
		return model.PriceBreakdown{}, err
	}

	var breakdown model.PriceBreakdown
	for _, night := range model.NightsOf(input.Checkin, input.Checkout) {
		season, err := p.seasons.Resolve(ctx, input.Property, night)
		if err != nil {
			return model.PriceBreakdown{}, err
		}
		rule := model.BestRule(rules, input.Property, season.ID, nil)
		if rule == nil {
			return model.PriceBreakdown{}, fmt.Errorf("no buyout rule for %s on %s: %w",
				input.Property, night.Format(model.DateLayout), model.ErrNoPricingRule)
		}
		appendLine(&breakdown, night, *rule, 1)
	}
	return breakdown, nil
}

// quoteDay charges per calendar day of the visit, including the last one,
// times the guest count. Day pricing carries no room scope.
func (p *Pricer) quoteDay(ctx context.Context, input QuoteInput) (model.PriceBreakdown, error) {
	rules, err := p.catalog.PricingRules(ctx, input.Property, model.BookingModeDay, model.PriceUnitPerGuestPerDay)
	if err != nil {
		return model.PriceBreakdown{}, err
	}

	var breakdown model.PriceBreakdown
	for _, day := range model.DaysOf(input.Checkin, input.Checkout) {
		season, err := p.seasons.Resolve(ctx, input.Property, day)
		if err != nil {
			return model.PriceBreakdown{}, err
		}
		rule := model.BestRule(rules, input.Property, season.ID, nil)
		if rule == nil {
			return model.PriceBreakdown{}, fmt.Errorf("no day rule for %s on %s: %w",
				input.Property, day.Format(model.DateLayout), model.ErrNoPricingRule)
		}
		appendLine(&breakdown, day, *rule, input.GuestsCount)
	}
	return breakdown, nil
}

// quoteRooms charges per person per night, applying each room's billable
// occupancy floor. With several rooms, guests are split evenly before the
// floor applies.
func (p *Pricer) quoteRooms(ctx context.Context, input QuoteInput) (model.PriceBreakdown, error) {
	if len(input.RoomIDs) == 0 {
		return model.PriceBreakdown{}, fmt.Errorf("room booking without rooms: %w", model.ErrNoPricingRule)
	}

	rooms, err := p.catalog.RoomsByIDs(ctx, input.RoomIDs)
	if err != nil {
		return model.PriceBreakdown{}, err
	}
	if len(rooms) != len(input.RoomIDs) {
		return model.PriceBreakdown{}, fmt.Errorf("unknown room in %v: %w", input.RoomIDs, model.ErrRoomUnavailable)
	}

	rules, err := p.catalog.PricingRules(ctx, input.Property, model.BookingModeRoom, model.PriceUnitPerPersonPerNight)
	if err != nil {
		return model.PriceBreakdown{}, err
	}

	perRoom := guestsPerRoom(input.GuestsCount, len(rooms))

	var breakdown model.PriceBreakdown
	for _, night := range model.NightsOf(input.Checkin, input.Checkout) {
		season, err := p.seasons.Resolve(ctx, input.Property, night)
		if err != nil {
			return model.PriceBreakdown{}, err
		}
		for i := range rooms {
			rule := model.BestRule(rules, input.Property, season.ID, &rooms[i])
			if rule == nil {
				return model.PriceBreakdown{}, fmt.Errorf("no rule for room %d on %s: %w",
					rooms[i].ID, night.Format(model.DateLayout), model.ErrNoPricingRule)
			}
			billable := rooms[i].BillableGuests(perRoom[i])
			appendLine(&breakdown, night, *rule, billable)
		}
	}
	return breakdown, nil
}

// guestsPerRoom splits a headcount across rooms, front-loading remainders.
func guestsPerRoom(guests, rooms int) []int {
	out := make([]int, rooms)
	for i := range out {
		out[i] = guests / rooms
		if i < guests%rooms {
			out[i]++
		}
	}
	return out
}

func appendLine(b *model.PriceBreakdown, date time.Time, rule model.PricingRule, quantity int) {
	line := model.PriceLine{
		Date:       model.Date(date).Format(model.DateLayout),
		RuleID:     rule.ID,
		UnitAmount: rule.Amount,
		Quantity:   quantity,
		LineTotal:  rule.Amount * int64(quantity),
	}
	b.Lines = append(b.Lines, line)
	b.Total += line.LineTotal
	if b.Currency == "" {
		b.Currency = rule.Currency
	}
}
