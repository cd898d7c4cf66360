package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-stays/booking-engine/internal/model"
)

func testCapacities() Capacities {
	return Capacities{
		model.PropertyLodge:  10,
		model.PropertyCabins: 5,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClaimRoomsConflict(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	err := l.ClaimRooms(ctx, 1, model.PropertyLodge, []int64{101}, day(2026, 8, 10), day(2026, 8, 13), model.ClaimTagHold)
	require.NoError(t, err)

	err = l.ClaimRooms(ctx, 2, model.PropertyLodge, []int64{101}, day(2026, 8, 11), day(2026, 8, 12), model.ClaimTagHold)
	assert.ErrorIs(t, err, model.ErrRoomUnavailable)
}

func TestClaimRoomsSameDayTurnover(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	require.NoError(t, l.ClaimRooms(ctx, 1, model.PropertyLodge, []int64{101}, day(2026, 8, 10), day(2026, 8, 13), model.ClaimTagHold))

	// A stay starting on the previous guest's checkout day does not collide.
	require.NoError(t, l.ClaimRooms(ctx, 2, model.PropertyLodge, []int64{101}, day(2026, 8, 13), day(2026, 8, 15), model.ClaimTagHold))
}

func TestClaimRoomsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	require.NoError(t, l.ClaimRooms(ctx, 1, model.PropertyLodge, []int64{102}, day(2026, 8, 12), day(2026, 8, 13), model.ClaimTagHold))

	// Room 101 is free but 102 is taken on the last night; nothing may stick.
	err := l.ClaimRooms(ctx, 2, model.PropertyLodge, []int64{101, 102}, day(2026, 8, 10), day(2026, 8, 13), model.ClaimTagHold)
	require.ErrorIs(t, err, model.ErrRoomUnavailable)

	free, err := l.RoomsFree(ctx, []int64{101}, day(2026, 8, 10), day(2026, 8, 13))
	require.NoError(t, err)
	assert.True(t, free[101], "room 101 should remain free after the failed claim")
}

func TestReleaseRoomsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	require.NoError(t, l.ClaimRooms(ctx, 1, model.PropertyLodge, []int64{101}, day(2026, 8, 10), day(2026, 8, 12), model.ClaimTagHold))
	require.NoError(t, l.ReleaseRooms(ctx, 1, []int64{101}, day(2026, 8, 10), day(2026, 8, 12)))
	require.NoError(t, l.ReleaseRooms(ctx, 1, []int64{101}, day(2026, 8, 10), day(2026, 8, 12)))

	require.NoError(t, l.ClaimRooms(ctx, 2, model.PropertyLodge, []int64{101}, day(2026, 8, 10), day(2026, 8, 12), model.ClaimTagHold))
}

func TestReleaseRoomsOnlyOwner(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	require.NoError(t, l.ClaimRooms(ctx, 1, model.PropertyLodge, []int64{101}, day(2026, 8, 10), day(2026, 8, 12), model.ClaimTagHold))

	// A release by a different booking must not free the claim.
	require.NoError(t, l.ReleaseRooms(ctx, 2, []int64{101}, day(2026, 8, 10), day(2026, 8, 12)))

	free, err := l.RoomsFree(ctx, []int64{101}, day(2026, 8, 10), day(2026, 8, 12))
	require.NoError(t, err)
	assert.False(t, free[101])
}

func TestConfirmRoomsKeepsOccupancy(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	require.NoError(t, l.ClaimRooms(ctx, 1, model.PropertyLodge, []int64{101}, day(2026, 8, 10), day(2026, 8, 12), model.ClaimTagHold))
	require.NoError(t, l.ConfirmRooms(ctx, 1, []int64{101}, day(2026, 8, 10), day(2026, 8, 12)))

	free, err := l.RoomsFree(ctx, []int64{101}, day(2026, 8, 10), day(2026, 8, 12))
	require.NoError(t, err)
	assert.False(t, free[101], "confirmed room must stay occupied")

	err = l.ClaimRooms(ctx, 2, model.PropertyLodge, []int64{101}, day(2026, 8, 10), day(2026, 8, 12), model.ClaimTagHold)
	assert.ErrorIs(t, err, model.ErrRoomUnavailable)
}

func TestBuyoutExcludesRooms(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	require.NoError(t, l.ClaimBuyout(ctx, 1, model.PropertyLodge, day(2026, 8, 10), day(2026, 8, 13), model.ClaimTagHold))

	err := l.ClaimRooms(ctx, 2, model.PropertyLodge, []int64{101}, day(2026, 8, 12), day(2026, 8, 14), model.ClaimTagHold)
	assert.ErrorIs(t, err, model.ErrBuyoutConflict)

	// The other property is unaffected.
	require.NoError(t, l.ClaimRooms(ctx, 3, model.PropertyCabins, []int64{201}, day(2026, 8, 12), day(2026, 8, 14), model.ClaimTagHold))
}

func TestRoomsExcludeBuyout(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	require.NoError(t, l.ClaimRooms(ctx, 1, model.PropertyLodge, []int64{101}, day(2026, 8, 12), day(2026, 8, 14), model.ClaimTagHold))

	err := l.ClaimBuyout(ctx, 2, model.PropertyLodge, day(2026, 8, 10), day(2026, 8, 13), model.ClaimTagHold)
	assert.ErrorIs(t, err, model.ErrBuyoutConflict)

	// A buyout outside the claimed nights is fine.
	require.NoError(t, l.ClaimBuyout(ctx, 3, model.PropertyLodge, day(2026, 8, 14), day(2026, 8, 16), model.ClaimTagHold))
}

func TestBuyoutReleaseFreesProperty(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	require.NoError(t, l.ClaimBuyout(ctx, 1, model.PropertyLodge, day(2026, 8, 10), day(2026, 8, 13), model.ClaimTagHold))
	require.NoError(t, l.ReleaseBuyout(ctx, 1, model.PropertyLodge, day(2026, 8, 10), day(2026, 8, 13)))

	require.NoError(t, l.ClaimRooms(ctx, 2, model.PropertyLodge, []int64{101}, day(2026, 8, 10), day(2026, 8, 13), model.ClaimTagHold))
}

func TestDayCapacityBound(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities()) // cabins: 5

	require.NoError(t, l.ClaimDayCapacity(ctx, 1, model.PropertyCabins, day(2026, 8, 10), day(2026, 8, 10), 3, model.ClaimTagHold))
	require.NoError(t, l.ClaimDayCapacity(ctx, 2, model.PropertyCabins, day(2026, 8, 10), day(2026, 8, 10), 2, model.ClaimTagHold))

	err := l.ClaimDayCapacity(ctx, 3, model.PropertyCabins, day(2026, 8, 10), day(2026, 8, 10), 1, model.ClaimTagHold)
	assert.ErrorIs(t, err, model.ErrCapacityExceeded)
}

func TestDayCapacityClosedRange(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities()) // cabins: 5

	// A visit over [10, 12] consumes headcount on the end day too.
	require.NoError(t, l.ClaimDayCapacity(ctx, 1, model.PropertyCabins, day(2026, 8, 10), day(2026, 8, 12), 5, model.ClaimTagHold))

	err := l.ClaimDayCapacity(ctx, 2, model.PropertyCabins, day(2026, 8, 12), day(2026, 8, 12), 1, model.ClaimTagHold)
	assert.ErrorIs(t, err, model.ErrCapacityExceeded)
}

func TestDayCapacityReleaseIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities()) // cabins: 5

	require.NoError(t, l.ClaimDayCapacity(ctx, 1, model.PropertyCabins, day(2026, 8, 10), day(2026, 8, 10), 5, model.ClaimTagHold))
	require.NoError(t, l.ReleaseDayCapacity(ctx, 1, model.PropertyCabins))
	require.NoError(t, l.ReleaseDayCapacity(ctx, 1, model.PropertyCabins))

	// All five seats are back exactly once.
	require.NoError(t, l.ClaimDayCapacity(ctx, 2, model.PropertyCabins, day(2026, 8, 10), day(2026, 8, 10), 5, model.ClaimTagHold))
}

func TestDayCapacityConfirmThenRelease(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities()) // cabins: 5

	require.NoError(t, l.ClaimDayCapacity(ctx, 1, model.PropertyCabins, day(2026, 8, 10), day(2026, 8, 10), 4, model.ClaimTagHold))
	require.NoError(t, l.ConfirmDayCapacity(ctx, 1, model.PropertyCabins))

	// Confirmed headcount still counts against the bound.
	err := l.ClaimDayCapacity(ctx, 2, model.PropertyCabins, day(2026, 8, 10), day(2026, 8, 10), 2, model.ClaimTagHold)
	assert.ErrorIs(t, err, model.ErrCapacityExceeded)

	require.NoError(t, l.ReleaseDayCapacity(ctx, 1, model.PropertyCabins))
	require.NoError(t, l.ClaimDayCapacity(ctx, 2, model.PropertyCabins, day(2026, 8, 10), day(2026, 8, 10), 5, model.ClaimTagHold))
}

func TestConcurrentRoomClaimSingleWinner(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(testCapacities())

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.ClaimRooms(ctx, int64(i+1), model.PropertyLodge, []int64{101}, day(2026, 8, 10), day(2026, 8, 12), model.ClaimTagHold)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, model.ErrRoomUnavailable)
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent claim may win")
}
