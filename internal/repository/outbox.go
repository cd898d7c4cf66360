package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

// OutboxRepository reads and acknowledges pending booking events. Events are
// inserted by BookingRepository inside the owning state transition.
type OutboxRepository interface {
	GetUnprocessed(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id int64) error
}

type OutboxRepositoryImpl struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

// GetUnprocessed returns up to limit unpublished events, oldest first.
func (r *OutboxRepositoryImpl) GetUnprocessed(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "OutboxRepository.GetUnprocessed")
	defer seg.Close(nil)

	var events []model.OutboxEvent
	query := `
		SELECT id, event_type, booking_id, payload, created_at, processed_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id ASC
		LIMIT $1
	`
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get unprocessed events: %w", err)
	}
	return events, nil
}

// MarkProcessed acknowledges a published event.
func (r *OutboxRepositoryImpl) MarkProcessed(ctx context.Context, id int64) error {
	ctx, seg := xray.BeginSubsegment(ctx, "OutboxRepository.MarkProcessed")
	defer seg.Close(nil)

	result, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1 AND processed_at IS NULL`, id)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	if _, err := result.RowsAffected(); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	return nil
}
