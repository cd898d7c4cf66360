package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-stays/booking-engine/internal/config"
	"github.com/ridgeline-stays/booking-engine/internal/model"
)

type fakeHoldLister struct {
	holds []model.Booking
	err   error
}

func (f *fakeHoldLister) ListExpiredHolds(_ context.Context, _ time.Time, limit int) ([]model.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.holds) > limit {
		return f.holds[:limit], nil
	}
	return f.holds, nil
}

type fakeExpirer struct {
	expired []string
	failRef string
	skipRef string
}

func (f *fakeExpirer) ExpireHold(_ context.Context, booking *model.Booking) (bool, error) {
	switch booking.ReferenceCode {
	case f.failRef:
		return false, errors.New("transition failed")
	case f.skipRef:
		// A concurrent sweep already handled this one.
		return false, nil
	}
	f.expired = append(f.expired, booking.ReferenceCode)
	return true, nil
}

func expiredHold(ref string) model.Booking {
	past := time.Now().Add(-time.Hour)
	return model.Booking{
		ReferenceCode: ref,
		Status:        model.BookingStatusHold,
		HoldExpiresAt: &past,
	}
}

func sweepConfig() *config.Config {
	return &config.Config{SweepBatch: 100}
}

func TestSweepExpiredHolds(t *testing.T) {
	expirer := &fakeExpirer{}
	s := &HoldSweepService{
		bookingRepo: &fakeHoldLister{holds: []model.Booking{expiredHold("BK-AAA"), expiredHold("BK-BBB")}},
		expirer:     expirer,
		cfg:         sweepConfig(),
	}

	expired, err := s.sweepExpiredHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BK-AAA", "BK-BBB"}, expired)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	expirer := &fakeExpirer{failRef: "BK-BAD"}
	s := &HoldSweepService{
		bookingRepo: &fakeHoldLister{holds: []model.Booking{expiredHold("BK-AAA"), expiredHold("BK-BAD"), expiredHold("BK-CCC")}},
		expirer:     expirer,
		cfg:         sweepConfig(),
	}

	expired, err := s.sweepExpiredHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BK-AAA", "BK-CCC"}, expired, "one failing hold must not stop the sweep")
}

func TestSweepSkipsAlreadyHandled(t *testing.T) {
	expirer := &fakeExpirer{skipRef: "BK-RACED"}
	s := &HoldSweepService{
		bookingRepo: &fakeHoldLister{holds: []model.Booking{expiredHold("BK-RACED"), expiredHold("BK-AAA")}},
		expirer:     expirer,
		cfg:         sweepConfig(),
	}

	expired, err := s.sweepExpiredHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BK-AAA"}, expired)
}

func TestSweepListFailure(t *testing.T) {
	s := &HoldSweepService{
		bookingRepo: &fakeHoldLister{err: errors.New("db down")},
		cfg:         sweepConfig(),
	}

	_, err := s.sweepExpiredHolds(context.Background())
	assert.Error(t, err)
}

func TestSweepEmptyBatch(t *testing.T) {
	s := &HoldSweepService{
		bookingRepo: &fakeHoldLister{},
		expirer:     &fakeExpirer{},
		cfg:         sweepConfig(),
	}

	expired, err := s.sweepExpiredHolds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, expired)
}
