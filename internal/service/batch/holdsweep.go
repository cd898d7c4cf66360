// Package batch holds the scheduled jobs: the hold-expiry sweep and the
// outbox publisher. Both are stateless over persisted rows, so a crashed run
// is simply caught up by the next tick, and several instances may run at
// once.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/ridgeline-stays/booking-engine/internal/config"
	"github.com/ridgeline-stays/booking-engine/internal/ledger"
	"github.com/ridgeline-stays/booking-engine/internal/model"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
	"github.com/ridgeline-stays/booking-engine/internal/service"
	"github.com/ridgeline-stays/booking-engine/internal/utils"
)

// HoldExpirer is the slice of the booking service the sweep needs.
type HoldExpirer interface {
	ExpireHold(ctx context.Context, booking *model.Booking) (bool, error)
}

// HoldLister pages through holds whose TTL has passed.
type HoldLister interface {
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)
}

// HoldSweepService cancels holds whose TTL has passed and releases their
// inventory. Each booking is handled independently; one failure never stops
// the sweep.
type HoldSweepService struct {
	db          *repository.DB
	bookingRepo HoldLister
	expirer     HoldExpirer
	sfnClient   *sfn.Client
	cfg         *config.Config
}

// NewHoldSweepService wires the sweep against live storage.
func NewHoldSweepService(cfg *config.Config, sfnClient *sfn.Client) (*HoldSweepService, error) {
	db, err := repository.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	bookingRepo := repository.NewBookingRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	pgLedger := ledger.NewPostgres(db, cfg.DayCapacities)
	seasons := service.NewSeasonCatalog(catalogRepo)
	pricer := service.NewPricer(catalogRepo, seasons, nil)
	availability := service.NewAvailability(catalogRepo, pgLedger)
	refunds := service.NewRefundCalculator(catalogRepo)

	// The sweep never confirms payments, so no gateway is wired.
	bookings := service.NewBookings(bookingRepo, pgLedger, pricer, availability, seasons, refunds, nil, cfg.HoldTTL)

	return &HoldSweepService{
		db:          db,
		bookingRepo: bookingRepo,
		expirer:     bookings,
		sfnClient:   sfnClient,
		cfg:         cfg,
	}, nil
}

// Close releases the database connection.
func (s *HoldSweepService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run executes one sweep tick.
func (s *HoldSweepService) Run(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "HoldSweepService.Run")
	defer seg.Close(nil)

	startTime := time.Now()

	expired, err := s.sweepExpiredHolds(ctx)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to sweep expired holds: %w", err))
	}

	if err := s.sendTaskSuccess(ctx, expired); err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	duration := time.Since(startTime)
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		log.Printf("Failed to add duration metadata: %v", err)
	}

	log.Printf("Hold sweep completed successfully. Expired %d holds. Duration: %v", len(expired), duration)
	return nil
}

// sweepExpiredHolds transitions each expired hold and collects the reference
// codes of the bookings this instance actually canceled. A hold already
// handled by a concurrent sweep reports false and is skipped silently.
func (s *HoldSweepService) sweepExpiredHolds(ctx context.Context) ([]string, error) {
	holds, err := s.bookingRepo.ListExpiredHolds(ctx, time.Now(), s.cfg.SweepBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}

	log.Printf("Found %d expired holds", len(holds))

	var expired []string
	for i := range holds {
		transitioned, err := s.expirer.ExpireHold(ctx, &holds[i])
		if err != nil {
			log.Printf("Failed to expire hold %s: %v", holds[i].ReferenceCode, err)
			continue
		}
		if transitioned {
			expired = append(expired, holds[i].ReferenceCode)
		}
	}
	return expired, nil
}

// sendTaskSuccess reports the sweep outcome to Step Functions.
func (s *HoldSweepService) sendTaskSuccess(ctx context.Context, expired []string) error {
	if os.Getenv("ENV") == "LOCAL" || s.sfnClient == nil {
		log.Printf("Local environment detected. Skipping Step Functions task success notification")
		return nil
	}

	output, err := json.Marshal(map[string]any{
		"expired_bookings": expired,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sweep output: %w", err)
	}

	taskToken := s.cfg.SFN.TaskToken
	if taskToken == "" {
		return fmt.Errorf("SFN task token is not set in config")
	}

	input := &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(taskToken),
		Output:    aws.String(string(output)),
	}

	if _, err := s.sfnClient.SendTaskSuccess(ctx, input); err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}

	log.Printf("Successfully sent task success with output: %s", string(output))
	return nil
}
