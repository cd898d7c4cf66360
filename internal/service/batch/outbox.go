package batch

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/segmentio/kafka-go"

	"github.com/ridgeline-stays/booking-engine/internal/config"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
	"github.com/ridgeline-stays/booking-engine/internal/utils"
)

// EventWriter abstracts the Kafka producer for tests.
type EventWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPublishService drains unpublished booking events to Kafka. Events are
// acknowledged one at a time after a successful write, so a crash mid-batch
// only re-delivers, never drops.
type OutboxPublishService struct {
	db        *repository.DB
	outbox    repository.OutboxRepository
	writer    EventWriter
	closeFunc func() error
	cfg       *config.Config
}

// NewOutboxPublishService wires the publisher against live storage and the
// configured brokers.
func NewOutboxPublishService(cfg *config.Config) (*OutboxPublishService, error) {
	db, err := repository.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}

	return &OutboxPublishService{
		db:        db,
		outbox:    repository.NewOutboxRepository(db),
		writer:    writer,
		closeFunc: writer.Close,
		cfg:       cfg,
	}, nil
}

// Close releases the producer and the database connection.
func (s *OutboxPublishService) Close() error {
	if s.closeFunc != nil {
		if err := s.closeFunc(); err != nil {
			log.Printf("Failed to close Kafka writer: %v", err)
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run executes one publish tick.
func (s *OutboxPublishService) Run(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "OutboxPublishService.Run")
	defer seg.Close(nil)

	startTime := time.Now()

	published, err := s.publishPending(ctx)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to publish pending events: %w", err))
	}

	duration := time.Since(startTime)
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		log.Printf("Failed to add duration metadata: %v", err)
	}

	log.Printf("Outbox publish completed successfully. Published %d events. Duration: %v", published, duration)
	return nil
}

// publishPending writes each pending event and acknowledges it. A failed
// write leaves the event unprocessed for the next tick; later events are
// still attempted so one poison message cannot stall the stream.
func (s *OutboxPublishService) publishPending(ctx context.Context) (int, error) {
	events, err := s.outbox.GetUnprocessed(ctx, s.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list unprocessed events: %w", err)
	}

	log.Printf("Found %d unprocessed events", len(events))

	published := 0
	for _, event := range events {
		msg := kafka.Message{
			Key:   []byte(strconv.FormatInt(event.BookingID, 10)),
			Value: event.Payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
			},
		}
		if err := s.writer.WriteMessages(ctx, msg); err != nil {
			log.Printf("Failed to publish event %d (%s): %v", event.ID, event.EventType, err)
			continue
		}
		if err := s.outbox.MarkProcessed(ctx, event.ID); err != nil {
			log.Printf("Failed to mark event %d processed: %v", event.ID, err)
			continue
		}
		published++
	}
	return published, nil
}
