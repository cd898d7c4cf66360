package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ridgeline-stays/booking-engine/internal/model"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
)

// Postgres implements Ledger on top of versioned inventory rows. Every claim
// runs in a single transaction; a failed compare-and-swap aborts the whole
// claim so partial holds never persist.
type Postgres struct {
	db         *repository.DB
	capacities Capacities
}

// NewPostgres creates a ledger backed by the given database.
func NewPostgres(db *repository.DB, capacities Capacities) *Postgres {
	return &Postgres{db: db, capacities: capacities}
}

func rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Printf("rollback failed: %v", err)
	}
}

// ensurePropertyRow lazily creates the property/day row. Rows are immortal
// once created; they are the unit of conflict detection.
func (l *Postgres) ensurePropertyRow(ctx context.Context, tx *sqlx.Tx, property model.Property, day time.Time) error {
	query := `
		INSERT INTO property_inventory (property, day, capacity_total)
		VALUES ($1, $2, $3)
		ON CONFLICT (property, day) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, property, model.Date(day), l.capacities.CapacityFor(property)); err != nil {
		return fmt.Errorf("failed to ensure property inventory row: %w", err)
	}
	return nil
}

func (l *Postgres) ensureRoomRow(ctx context.Context, tx *sqlx.Tx, roomID int64, day time.Time) error {
	query := `
		INSERT INTO room_inventory (room_id, day)
		VALUES ($1, $2)
		ON CONFLICT (room_id, day) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, roomID, model.Date(day)); err != nil {
		return fmt.Errorf("failed to ensure room inventory row: %w", err)
	}
	return nil
}

func (l *Postgres) getPropertyRow(ctx context.Context, tx *sqlx.Tx, property model.Property, day time.Time) (model.PropertyInventory, error) {
	var row model.PropertyInventory
	query := `
		SELECT id, property, day, capacity_total, capacity_held, capacity_booked,
		       buyout_held, buyout_booked, buyout_by, version
		FROM property_inventory
		WHERE property = $1 AND day = $2
	`
	if err := tx.GetContext(ctx, &row, query, property, model.Date(day)); err != nil {
		return row, fmt.Errorf("failed to read property inventory: %w", err)
	}
	return row, nil
}

func (l *Postgres) getRoomRow(ctx context.Context, tx *sqlx.Tx, roomID int64, day time.Time) (model.RoomInventory, error) {
	var row model.RoomInventory
	query := `
		SELECT id, room_id, day, held, booked, held_by, booked_by, version
		FROM room_inventory
		WHERE room_id = $1 AND day = $2
	`
	if err := tx.GetContext(ctx, &row, query, roomID, model.Date(day)); err != nil {
		return row, fmt.Errorf("failed to read room inventory: %w", err)
	}
	return row, nil
}

// bumpPropertyVersion advances the property row version, requiring the buyout
// flags to still be clear. Room claims go through this so that a concurrent
// buyout claim of the same day loses its own version check.
func (l *Postgres) bumpPropertyVersion(ctx context.Context, tx *sqlx.Tx, row model.PropertyInventory) error {
	query := `
		UPDATE property_inventory
		SET version = version + 1
		WHERE property = $1 AND day = $2 AND version = $3
		  AND buyout_held = FALSE AND buyout_booked = FALSE
	`
	result, err := tx.ExecContext(ctx, query, row.Property, model.Date(row.Day), row.Version)
	if err != nil {
		return fmt.Errorf("failed to bump property inventory version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		current, err := l.getPropertyRow(ctx, tx, row.Property, row.Day)
		if err != nil {
			return err
		}
		if current.BuyoutClaimed() {
			return fmt.Errorf("property %s on %s: %w", row.Property, model.Date(row.Day).Format(model.DateLayout), model.ErrBuyoutConflict)
		}
		return fmt.Errorf("property %s on %s: %w", row.Property, model.Date(row.Day).Format(model.DateLayout), model.ErrConcurrencyConflict)
	}
	return nil
}

// ClaimRooms marks every night for every room inside one transaction.
func (l *Postgres) ClaimRooms(ctx context.Context, bookingID int64, property model.Property, roomIDs []int64, checkin, checkout time.Time, tag model.ClaimTag) error {
	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	for _, day := range model.NightsOf(checkin, checkout) {
		if err := l.ensurePropertyRow(ctx, tx, property, day); err != nil {
			return err
		}
		prop, err := l.getPropertyRow(ctx, tx, property, day)
		if err != nil {
			return err
		}
		if prop.BuyoutClaimed() {
			return fmt.Errorf("property %s on %s: %w", property, day.Format(model.DateLayout), model.ErrBuyoutConflict)
		}
		if err := l.bumpPropertyVersion(ctx, tx, prop); err != nil {
			return err
		}

		for _, roomID := range roomIDs {
			if err := l.claimRoomDay(ctx, tx, bookingID, roomID, day, tag); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit room claim: %w", err)
	}
	return nil
}

func (l *Postgres) claimRoomDay(ctx context.Context, tx *sqlx.Tx, bookingID, roomID int64, day time.Time, tag model.ClaimTag) error {
	if err := l.ensureRoomRow(ctx, tx, roomID, day); err != nil {
		return err
	}
	row, err := l.getRoomRow(ctx, tx, roomID, day)
	if err != nil {
		return err
	}
	if row.Claimed() && !row.ClaimedBy(bookingID) {
		return fmt.Errorf("room %d on %s: %w", roomID, day.Format(model.DateLayout), model.ErrRoomUnavailable)
	}

	var query string
	switch tag {
	case model.ClaimTagBooked:
		query = `
			UPDATE room_inventory
			SET booked = TRUE, booked_by = $1, version = version + 1
			WHERE room_id = $2 AND day = $3 AND version = $4
			  AND (booked = FALSE OR booked_by = $1)
		`
	default:
		query = `
			UPDATE room_inventory
			SET held = TRUE, held_by = $1, version = version + 1
			WHERE room_id = $2 AND day = $3 AND version = $4
			  AND (held = FALSE OR held_by = $1)
		`
	}

	result, err := tx.ExecContext(ctx, query, bookingID, roomID, model.Date(day), row.Version)
	if err != nil {
		return fmt.Errorf("failed to claim room %d: %w", roomID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		current, err := l.getRoomRow(ctx, tx, roomID, day)
		if err != nil {
			return err
		}
		if current.Claimed() && !current.ClaimedBy(bookingID) {
			return fmt.Errorf("room %d on %s: %w", roomID, day.Format(model.DateLayout), model.ErrRoomUnavailable)
		}
		return fmt.Errorf("room %d on %s: %w", roomID, day.Format(model.DateLayout), model.ErrConcurrencyConflict)
	}
	return nil
}

// ConfirmRooms retags held nights to booked. No date-range walk is repeated
// beyond the same rows the hold already touched.
func (l *Postgres) ConfirmRooms(ctx context.Context, bookingID int64, roomIDs []int64, checkin, checkout time.Time) error {
	query := `
		UPDATE room_inventory
		SET held = FALSE, held_by = NULL, booked = TRUE, booked_by = $1, version = version + 1
		WHERE room_id = ANY($2) AND day >= $3 AND day < $4 AND held_by = $1
	`
	if _, err := l.db.ExecContext(ctx, query, bookingID, pq.Array(roomIDs), model.Date(checkin), model.Date(checkout)); err != nil {
		return fmt.Errorf("failed to confirm room claims: %w", err)
	}
	return nil
}

// ReleaseRooms resets the booking's rows. Releasing an already-released range
// matches nothing and is a no-op.
func (l *Postgres) ReleaseRooms(ctx context.Context, bookingID int64, roomIDs []int64, checkin, checkout time.Time) error {
	query := `
		UPDATE room_inventory
		SET held = FALSE, held_by = NULL, booked = FALSE, booked_by = NULL, version = version + 1
		WHERE room_id = ANY($2) AND day >= $3 AND day < $4
		  AND (held_by = $1 OR booked_by = $1)
	`
	if _, err := l.db.ExecContext(ctx, query, bookingID, pq.Array(roomIDs), model.Date(checkin), model.Date(checkout)); err != nil {
		return fmt.Errorf("failed to release room claims: %w", err)
	}
	return nil
}

// ClaimBuyout takes the whole property for every night. A buyout excludes,
// and is excluded by, any room-level claim on the same property and day.
func (l *Postgres) ClaimBuyout(ctx context.Context, bookingID int64, property model.Property, checkin, checkout time.Time, tag model.ClaimTag) error {
	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	for _, day := range model.NightsOf(checkin, checkout) {
		if err := l.ensurePropertyRow(ctx, tx, property, day); err != nil {
			return err
		}
		prop, err := l.getPropertyRow(ctx, tx, property, day)
		if err != nil {
			return err
		}
		if prop.BuyoutClaimed() && (prop.BuyoutBy == nil || *prop.BuyoutBy != bookingID) {
			return fmt.Errorf("property %s on %s: %w", property, day.Format(model.DateLayout), model.ErrBuyoutConflict)
		}

		var hasRoomClaims bool
		existsQuery := `
			SELECT EXISTS (
				SELECT 1
				FROM room_inventory ri
				JOIN rooms r ON r.id = ri.room_id
				WHERE r.property = $1 AND ri.day = $2 AND (ri.held OR ri.booked)
			)
		`
		if err := tx.GetContext(ctx, &hasRoomClaims, existsQuery, property, model.Date(day)); err != nil {
			return fmt.Errorf("failed to check room claims: %w", err)
		}
		if hasRoomClaims {
			return fmt.Errorf("property %s on %s has room claims: %w", property, day.Format(model.DateLayout), model.ErrBuyoutConflict)
		}

		var query string
		switch tag {
		case model.ClaimTagBooked:
			query = `
				UPDATE property_inventory
				SET buyout_booked = TRUE, buyout_by = $1, version = version + 1
				WHERE property = $2 AND day = $3 AND version = $4
			`
		default:
			query = `
				UPDATE property_inventory
				SET buyout_held = TRUE, buyout_by = $1, version = version + 1
				WHERE property = $2 AND day = $3 AND version = $4
			`
		}
		result, err := tx.ExecContext(ctx, query, bookingID, property, model.Date(day), prop.Version)
		if err != nil {
			return fmt.Errorf("failed to claim buyout: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("property %s on %s: %w", property, day.Format(model.DateLayout), model.ErrConcurrencyConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit buyout claim: %w", err)
	}
	return nil
}

// ConfirmBuyout retags a held buyout to booked.
func (l *Postgres) ConfirmBuyout(ctx context.Context, bookingID int64, property model.Property, checkin, checkout time.Time) error {
	query := `
		UPDATE property_inventory
		SET buyout_held = FALSE, buyout_booked = TRUE, version = version + 1
		WHERE property = $2 AND day >= $3 AND day < $4 AND buyout_held = TRUE AND buyout_by = $1
	`
	if _, err := l.db.ExecContext(ctx, query, bookingID, property, model.Date(checkin), model.Date(checkout)); err != nil {
		return fmt.Errorf("failed to confirm buyout claim: %w", err)
	}
	return nil
}

// ReleaseBuyout clears the booking's buyout flags, idempotently.
func (l *Postgres) ReleaseBuyout(ctx context.Context, bookingID int64, property model.Property, checkin, checkout time.Time) error {
	query := `
		UPDATE property_inventory
		SET buyout_held = FALSE, buyout_booked = FALSE, buyout_by = NULL, version = version + 1
		WHERE property = $2 AND day >= $3 AND day < $4 AND buyout_by = $1
	`
	if _, err := l.db.ExecContext(ctx, query, bookingID, property, model.Date(checkin), model.Date(checkout)); err != nil {
		return fmt.Errorf("failed to release buyout claim: %w", err)
	}
	return nil
}

// ClaimDayCapacity reserves guest headcount on every day of the closed range
// [start, end]. A claim record per day doubles as the release idempotency
// guard.
func (l *Postgres) ClaimDayCapacity(ctx context.Context, bookingID int64, property model.Property, start, end time.Time, guests int, tag model.ClaimTag) error {
	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	column := "capacity_held"
	if tag == model.ClaimTagBooked {
		column = "capacity_booked"
	}

	for _, day := range model.DaysOf(start, end) {
		if err := l.ensurePropertyRow(ctx, tx, property, day); err != nil {
			return err
		}

		// The bounded increment is race-free on its own: the row lock
		// serializes writers and the WHERE clause re-checks the bound.
		query := fmt.Sprintf(`
			UPDATE property_inventory
			SET %s = %s + $1, version = version + 1
			WHERE property = $2 AND day = $3
			  AND capacity_held + capacity_booked + $1 <= capacity_total
		`, column, column)
		result, err := tx.ExecContext(ctx, query, guests, property, model.Date(day))
		if err != nil {
			return fmt.Errorf("failed to claim day capacity: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("property %s on %s: %w", property, day.Format(model.DateLayout), model.ErrCapacityExceeded)
		}

		insertClaim := `
			INSERT INTO day_claims (booking_id, property, day, guests, tag)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, insertClaim, bookingID, property, model.Date(day), guests, tag); err != nil {
			return fmt.Errorf("failed to record day claim: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit day capacity claim: %w", err)
	}
	return nil
}

// ConfirmDayCapacity moves the booking's held headcount to booked.
func (l *Postgres) ConfirmDayCapacity(ctx context.Context, bookingID int64, property model.Property) error {
	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	rows, err := tx.QueryxContext(ctx, `
		SELECT day, guests FROM day_claims
		WHERE booking_id = $1 AND property = $2 AND tag = $3
		FOR UPDATE
	`, bookingID, property, model.ClaimTagHold)
	if err != nil {
		return fmt.Errorf("failed to read day claims: %w", err)
	}
	type claim struct {
		Day    time.Time `db:"day"`
		Guests int       `db:"guests"`
	}
	var claims []claim
	for rows.Next() {
		var c claim
		if err := rows.StructScan(&c); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan day claim: %w", err)
		}
		claims = append(claims, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating day claims: %w", err)
	}

	for _, c := range claims {
		if _, err := tx.ExecContext(ctx, `
			UPDATE property_inventory
			SET capacity_held = capacity_held - $1, capacity_booked = capacity_booked + $1, version = version + 1
			WHERE property = $2 AND day = $3
		`, c.Guests, property, model.Date(c.Day)); err != nil {
			return fmt.Errorf("failed to confirm day capacity: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE day_claims SET tag = $1 WHERE booking_id = $2 AND property = $3 AND tag = $4
	`, model.ClaimTagBooked, bookingID, property, model.ClaimTagHold); err != nil {
		return fmt.Errorf("failed to retag day claims: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit day capacity confirm: %w", err)
	}
	return nil
}

// ReleaseDayCapacity returns all of the booking's headcount for the property.
// Deleting the claim records makes a second release a no-op.
func (l *Postgres) ReleaseDayCapacity(ctx context.Context, bookingID int64, property model.Property) error {
	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	rows, err := tx.QueryxContext(ctx, `
		DELETE FROM day_claims
		WHERE booking_id = $1 AND property = $2
		RETURNING day, guests, tag
	`, bookingID, property)
	if err != nil {
		return fmt.Errorf("failed to delete day claims: %w", err)
	}
	type claim struct {
		Day    time.Time      `db:"day"`
		Guests int            `db:"guests"`
		Tag    model.ClaimTag `db:"tag"`
	}
	var claims []claim
	for rows.Next() {
		var c claim
		if err := rows.StructScan(&c); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan released claim: %w", err)
		}
		claims = append(claims, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating released claims: %w", err)
	}

	for _, c := range claims {
		column := "capacity_held"
		if c.Tag == model.ClaimTagBooked {
			column = "capacity_booked"
		}
		query := fmt.Sprintf(`
			UPDATE property_inventory
			SET %s = GREATEST(%s - $1, 0), version = version + 1
			WHERE property = $2 AND day = $3
		`, column, column)
		if _, err := tx.ExecContext(ctx, query, c.Guests, property, model.Date(c.Day)); err != nil {
			return fmt.Errorf("failed to release day capacity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit day capacity release: %w", err)
	}
	return nil
}

// RoomsFree evaluates each candidate room against the stay, read-only.
func (l *Postgres) RoomsFree(ctx context.Context, roomIDs []int64, checkin, checkout time.Time) (map[int64]bool, error) {
	out := make(map[int64]bool, len(roomIDs))
	for _, id := range roomIDs {
		out[id] = true
	}

	rows, err := l.db.QueryxContext(ctx, `
		SELECT DISTINCT room_id
		FROM room_inventory
		WHERE room_id = ANY($1) AND day >= $2 AND day < $3 AND (held OR booked)
	`, pq.Array(roomIDs), model.Date(checkin), model.Date(checkout))
	if err != nil {
		return nil, fmt.Errorf("failed to query room availability: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan busy room: %w", err)
		}
		out[id] = false
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating busy rooms: %w", err)
	}
	return out, nil
}

var _ Ledger = (*Postgres)(nil)
