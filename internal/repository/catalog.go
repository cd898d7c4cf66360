package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/lib/pq"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

// CatalogRepository reads the admin-managed configuration: seasons, rooms,
// pricing rules, blackouts and refund policies. All of it is long-lived and
// rarely mutated, so reads are plain queries without versioning.
type CatalogRepository interface {
	SeasonsByProperty(ctx context.Context, property model.Property) ([]model.Season, error)
	RoomByID(ctx context.Context, id int64) (*model.Room, error)
	RoomsByIDs(ctx context.Context, ids []int64) ([]model.Room, error)
	ActiveRooms(ctx context.Context, property model.Property) ([]model.Room, error)
	PricingRules(ctx context.Context, property model.Property, mode model.BookingMode, unit model.PriceUnit) ([]model.PricingRule, error)
	BlackoutsOverlapping(ctx context.Context, property model.Property, checkin, checkout time.Time) ([]model.Blackout, error)
	ActiveRefundPolicy(ctx context.Context, property model.Property, mode model.BookingMode) (*model.RefundPolicy, error)
}

type CatalogRepositoryImpl struct {
	db *DB
}

func NewCatalogRepository(db *DB) *CatalogRepositoryImpl {
	return &CatalogRepositoryImpl{db: db}
}

// SeasonsByProperty returns every season configured for the property.
func (r *CatalogRepositoryImpl) SeasonsByProperty(ctx context.Context, property model.Property) ([]model.Season, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CatalogRepository.SeasonsByProperty")
	defer seg.Close(nil)

	var seasons []model.Season
	query := `
		SELECT id, property, name, start_month, start_day, end_month, end_day,
		       is_default, advance_booking_days, max_nights, created_at, updated_at
		FROM seasons
		WHERE property = $1
		ORDER BY id ASC
	`
	if err := r.db.SelectContext(ctx, &seasons, query, property); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get seasons for %s: %w", property, err)
	}
	return seasons, nil
}

const roomColumns = `
	id, property, room_category_id, name, capacity_max, min_billable_occupancy,
	is_single_bed, single_beds, double_beds, bunk_beds, is_active, created_at, updated_at
`

// RoomByID loads one room.
func (r *CatalogRepositoryImpl) RoomByID(ctx context.Context, id int64) (*model.Room, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CatalogRepository.RoomByID")
	defer seg.Close(nil)

	var room model.Room
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %d: %w", id, model.ErrRoomUnavailable)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get room %d: %w", id, err)
	}
	return &room, nil
}

// RoomsByIDs loads a set of rooms in one round trip.
func (r *CatalogRepositoryImpl) RoomsByIDs(ctx context.Context, ids []int64) ([]model.Room, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CatalogRepository.RoomsByIDs")
	defer seg.Close(nil)

	var rooms []model.Room
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ANY($1) ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &rooms, query, pq.Array(ids)); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get rooms: %w", err)
	}
	return rooms, nil
}

// ActiveRooms returns the bookable rooms of a property.
func (r *CatalogRepositoryImpl) ActiveRooms(ctx context.Context, property model.Property) ([]model.Room, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CatalogRepository.ActiveRooms")
	defer seg.Close(nil)

	var rooms []model.Room
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE property = $1 AND is_active = TRUE ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &rooms, query, property); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get active rooms for %s: %w", property, err)
	}
	return rooms, nil
}

// PricingRules returns the candidate rules for a mode and unit. Specificity
// resolution happens in the pricer, per night, against this candidate set.
func (r *CatalogRepositoryImpl) PricingRules(ctx context.Context, property model.Property, mode model.BookingMode, unit model.PriceUnit) ([]model.PricingRule, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CatalogRepository.PricingRules")
	defer seg.Close(nil)

	var rules []model.PricingRule
	query := `
		SELECT id, amount, currency, booking_mode, price_unit, property,
		       season_id, room_category_id, room_id, created_at, updated_at
		FROM pricing_rules
		WHERE booking_mode = $1 AND price_unit = $2
		  AND (property IS NULL OR property = $3)
		ORDER BY id ASC
	`
	if err := r.db.SelectContext(ctx, &rules, query, mode, unit, property); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get pricing rules: %w", err)
	}
	return rules, nil
}

// BlackoutsOverlapping returns blackouts intersecting the closed interval
// [checkin, checkout].
func (r *CatalogRepositoryImpl) BlackoutsOverlapping(ctx context.Context, property model.Property, checkin, checkout time.Time) ([]model.Blackout, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CatalogRepository.BlackoutsOverlapping")
	defer seg.Close(nil)

	var blackouts []model.Blackout
	query := `
		SELECT id, property, start_date, end_date, reason, created_at
		FROM blackouts
		WHERE property = $1 AND start_date <= $3 AND end_date >= $2
		ORDER BY start_date ASC
	`
	if err := r.db.SelectContext(ctx, &blackouts, query, property, model.Date(checkin), model.Date(checkout)); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get blackouts: %w", err)
	}
	return blackouts, nil
}

// ActiveRefundPolicy returns the single active policy for the scope, with its
// rules attached, or nil when none is configured.
func (r *CatalogRepositoryImpl) ActiveRefundPolicy(ctx context.Context, property model.Property, mode model.BookingMode) (*model.RefundPolicy, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CatalogRepository.ActiveRefundPolicy")
	defer seg.Close(nil)

	var policy model.RefundPolicy
	query := `
		SELECT id, property, booking_mode, is_active, created_at
		FROM refund_policies
		WHERE property = $1 AND booking_mode = $2 AND is_active = TRUE
	`
	if err := r.db.GetContext(ctx, &policy, query, property, mode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get refund policy: %w", err)
	}

	rulesQuery := `
		SELECT id, refund_policy_id, days_before_checkin, refund_percentage, priority
		FROM refund_policy_rules
		WHERE refund_policy_id = $1
		ORDER BY days_before_checkin DESC, priority ASC
	`
	if err := r.db.SelectContext(ctx, &policy.Rules, rulesQuery, policy.ID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get refund policy rules: %w", err)
	}
	return &policy, nil
}
