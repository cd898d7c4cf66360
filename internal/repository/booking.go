package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

// BookingRepository persists bookings and their guarded status transitions.
// Transition methods return false, nil when another worker already moved the
// booking out of the expected state; callers treat that as a benign no-op.
type BookingRepository interface {
	Create(ctx context.Context, b *model.Booking, roomIDs []int64, guests []model.BookingGuest) error
	GetByReference(ctx context.Context, ref string) (*model.Booking, error)
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	RoomIDs(ctx context.Context, bookingID int64) ([]int64, error)
	Guests(ctx context.Context, bookingID int64) ([]model.BookingGuest, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)

	PlaceHold(ctx context.Context, id int64, expiresAt time.Time, event *model.OutboxEvent) (bool, error)
	Complete(ctx context.Context, id int64, event *model.OutboxEvent) (bool, error)
	CancelFrom(ctx context.Context, id int64, from model.BookingStatus, event *model.OutboxEvent) (bool, error)
	MarkRefunded(ctx context.Context, id int64, amount int64, ruleID *int64, event *model.OutboxEvent) (bool, error)
	MarkCheckedIn(ctx context.Context, id int64) (bool, error)
}

type BookingRepositoryImpl struct {
	db *DB
}

func NewBookingRepository(db *DB) *BookingRepositoryImpl {
	return &BookingRepositoryImpl{db: db}
}

const bookingColumns = `
	id, reference_code, property, booking_mode, status, checkin_date,
	checkout_date, guests_count, children_count, total_price, currency,
	pricing_items, hold_expires_at, checked_in, refund_amount, refund_rule_id,
	created_at, updated_at
`

// Create inserts the booking together with its rooms and guest roster.
func (r *BookingRepositoryImpl) Create(ctx context.Context, b *model.Booking, roomIDs []int64, guests []model.BookingGuest) error {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.Create")
	defer seg.Close(nil)

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackTx(tx)

	query := `
		INSERT INTO bookings (
			reference_code, property, booking_mode, status, checkin_date,
			checkout_date, guests_count, children_count, total_price, currency,
			pricing_items, checked_in, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, NOW(), NOW()
		)
		RETURNING id, created_at, updated_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		b.ReferenceCode,
		b.Property,
		b.BookingMode,
		b.Status,
		model.Date(b.CheckinDate),
		model.Date(b.CheckoutDate),
		b.GuestsCount,
		b.ChildrenCount,
		b.TotalPrice,
		b.Currency,
		b.PricingItems,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	for _, roomID := range roomIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO booking_rooms (booking_id, room_id) VALUES ($1, $2)`,
			b.ID, roomID); err != nil {
			seg.Close(err)
			return fmt.Errorf("failed to insert booking room: %w", err)
		}
	}

	for _, g := range guests {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO booking_guests (booking_id, name, is_child, is_booking_user, order_index)
			VALUES ($1, $2, $3, $4, $5)
		`, b.ID, g.Name, g.IsChild, g.IsBookingUser, g.OrderIndex); err != nil {
			seg.Close(err)
			return fmt.Errorf("failed to insert booking guest: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

// GetByReference loads a booking by its external reference code.
func (r *BookingRepositoryImpl) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.GetByReference")
	defer seg.Close(nil)

	var b model.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE reference_code = $1`
	if err := r.db.GetContext(ctx, &b, query, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrBookingNotFound
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get booking %s: %w", ref, err)
	}
	return &b, nil
}

// GetByID loads a booking by internal identifier.
func (r *BookingRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.GetByID")
	defer seg.Close(nil)

	var b model.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrBookingNotFound
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get booking %d: %w", id, err)
	}
	return &b, nil
}

// RoomIDs returns the rooms joined to a booking.
func (r *BookingRepositoryImpl) RoomIDs(ctx context.Context, bookingID int64) ([]int64, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.RoomIDs")
	defer seg.Close(nil)

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids,
		`SELECT room_id FROM booking_rooms WHERE booking_id = $1 ORDER BY room_id`, bookingID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get booking rooms: %w", err)
	}
	return ids, nil
}

// Guests returns the ordered guest roster.
func (r *BookingRepositoryImpl) Guests(ctx context.Context, bookingID int64) ([]model.BookingGuest, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.Guests")
	defer seg.Close(nil)

	var guests []model.BookingGuest
	query := `
		SELECT id, booking_id, name, is_child, is_booking_user, order_index
		FROM booking_guests
		WHERE booking_id = $1
		ORDER BY order_index ASC
	`
	if err := r.db.SelectContext(ctx, &guests, query, bookingID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get booking guests: %w", err)
	}
	return guests, nil
}

// ListExpiredHolds returns holds whose TTL has passed, oldest first. The
// sweep processes them in batches.
func (r *BookingRepositoryImpl) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.ListExpiredHolds")
	defer seg.Close(nil)

	var bookings []model.Booking
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND hold_expires_at < $2
		ORDER BY hold_expires_at ASC
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &bookings, query, model.BookingStatusHold, now, limit); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}
	return bookings, nil
}

// transition runs a guarded status update plus an optional outbox event in
// one transaction. rowsAffected == 0 means another worker got there first.
func (r *BookingRepositoryImpl) transition(ctx context.Context, name, query string, event *model.OutboxEvent, args ...interface{}) (bool, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository."+name)
	defer seg.Close(nil)

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackTx(tx)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if event != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_events (event_type, booking_id, payload, created_at)
			VALUES ($1, $2, $3, NOW())
		`, event.EventType, event.BookingID, event.Payload); err != nil {
			seg.Close(err)
			return false, fmt.Errorf("failed to insert outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to commit transition: %w", err)
	}
	return true, nil
}

// PlaceHold moves draft to hold and stamps the expiry.
func (r *BookingRepositoryImpl) PlaceHold(ctx context.Context, id int64, expiresAt time.Time, event *model.OutboxEvent) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, hold_expires_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	return r.transition(ctx, "PlaceHold", query, event,
		model.BookingStatusHold, expiresAt, id, model.BookingStatusDraft)
}

// Complete moves hold to complete and clears the expiry.
func (r *BookingRepositoryImpl) Complete(ctx context.Context, id int64, event *model.OutboxEvent) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, hold_expires_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	return r.transition(ctx, "Complete", query, event,
		model.BookingStatusComplete, id, model.BookingStatusHold)
}

// CancelFrom moves the booking to canceled, but only from the expected state.
func (r *BookingRepositoryImpl) CancelFrom(ctx context.Context, id int64, from model.BookingStatus, event *model.OutboxEvent) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, hold_expires_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	return r.transition(ctx, "CancelFrom", query, event,
		model.BookingStatusCanceled, id, from)
}

// MarkRefunded moves complete to refunded and records the refund decision.
func (r *BookingRepositoryImpl) MarkRefunded(ctx context.Context, id int64, amount int64, ruleID *int64, event *model.OutboxEvent) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, refund_amount = $2, refund_rule_id = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`
	return r.transition(ctx, "MarkRefunded", query, event,
		model.BookingStatusRefunded, amount, ruleID, id, model.BookingStatusComplete)
}

// MarkCheckedIn flags arrival on a completed booking.
func (r *BookingRepositoryImpl) MarkCheckedIn(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE bookings
		SET checked_in = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND checked_in = FALSE
	`
	return r.transition(ctx, "MarkCheckedIn", query, nil, id, model.BookingStatusComplete)
}

func rollbackTx(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Printf("rollback failed: %v", err)
	}
}
