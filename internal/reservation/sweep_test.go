package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatflow/internal/models"
	"seatflow/internal/store"
)

func TestSweepReclaimsUnconfirmedReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.engine.Claim(ctx, "F1-A-01", "u1", "Alice", time.Hour)
	require.NoError(t, err)

	// Inside the grace window nothing happens.
	env.advance(GracePeriod)
	reclaimed, err := env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)

	// One second past the window the seat goes back.
	env.advance(time.Second)
	reclaimed, err = env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1-A-01"}, reclaimed)

	seat, err := env.registry.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	assert.Equal(t, models.SeatAvailable, seat.Status)
	assert.False(t, seat.HasClaim())

	b, err := env.ledger.Get(ctx, "u1", result.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingExpired, b.Status)

	// The user is free to claim again.
	_, err = env.engine.Claim(ctx, "F1-A-02", "u1", "Alice", time.Hour)
	assert.NoError(t, err)
}

func TestSweepHoldsAdvanceBookingUntilStart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := env.now.Add(2 * time.Hour)
	b, err := env.engine.AdminAssignSeat(ctx, "F1-A-01", "u1", "Alice", start, start.Add(time.Hour), "admin")
	require.NoError(t, err)

	// Long after the claim but before the scheduled start: held.
	env.advance(time.Hour)
	reclaimed, err := env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)

	// Past start plus grace: the booking becomes a no-show.
	env.now = start.Add(GracePeriod + time.Second)
	reclaimed, err = env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1-A-01"}, reclaimed)

	got, err := env.ledger.Get(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingNoShow, got.Status)
}

func TestSweepCompletesOverstayedOccupancy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.engine.Claim(ctx, "F1-A-01", "u1", "Alice", time.Hour)
	require.NoError(t, err)

	p, err := models.DecodeQR(result.QR)
	require.NoError(t, err)
	require.NoError(t, env.engine.ConfirmCheckIn(ctx, p))

	seat, err := env.registry.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	deadline := *seat.OccupancyDeadline

	// Still within the occupancy window.
	env.now = deadline
	reclaimed, err := env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)

	// The occupant overstayed: booking completes with the deadline as
	// the exit time, not the sweep time.
	env.now = deadline.Add(10 * time.Minute)
	reclaimed, err = env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1-A-01"}, reclaimed)

	b, err := env.ledger.Get(ctx, "u1", result.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, b.Status)
	require.NotNil(t, b.ExitTime)
	assert.Equal(t, deadline, *b.ExitTime)

	seat, err = env.registry.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	assert.Equal(t, models.SeatAvailable, seat.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Claim(ctx, "F1-A-01", "u1", "Alice", time.Hour)
	require.NoError(t, err)

	env.advance(GracePeriod + time.Second)

	reclaimed, err := env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Len(t, reclaimed, 1)

	reclaimed, err = env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)
}

func TestConcurrentSweepsReclaimOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Claim(ctx, "F1-A-01", "u1", "Alice", time.Hour)
	require.NoError(t, err)
	_, err = env.engine.Claim(ctx, "F1-A-02", "u2", "Bob", time.Hour)
	require.NoError(t, err)

	env.advance(GracePeriod + time.Second)

	const sweepers = 4
	var wg sync.WaitGroup
	results := make([][]string, sweepers)
	for i := 0; i < sweepers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = env.engine.SweepExpired(ctx)
		}(i)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	assert.Equal(t, 2, total, "each seat reclaimed exactly once across all sweepers")
}

func TestSweepRepairsMalformedQuadruple(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Corrupt a seat: reserved with only part of the quadruple set.
	claimedAt := env.now
	entry, err := env.store.Read(ctx, "seats/F1-A-01")
	require.NoError(t, err)
	seat := models.Seat{ID: "F1-A-01", Floor: "Ground floor", Section: "A",
		Status: models.SeatReserved, ClaimedBy: "u1", ClaimedAt: &claimedAt,
		Version: entry.Version}
	pair, err := env.registry.Pair(&seat)
	require.NoError(t, err)
	require.NoError(t, env.store.AtomicWrite(ctx, []store.Pair{pair}))

	reclaimed, err := env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1-A-01"}, reclaimed)

	got, err := env.registry.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	assert.Equal(t, models.SeatAvailable, got.Status)
	assert.False(t, got.PartialClaim())
}

func TestSweepAppliesCeilingWhenDeadlineMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Occupied seat with the deadline lost but the claim time intact.
	claimedAt := env.now
	entry, err := env.store.Read(ctx, "seats/F1-A-01")
	require.NoError(t, err)
	seat := models.Seat{ID: "F1-A-01", Floor: "Ground floor", Section: "A",
		Status: models.SeatOccupied, ClaimedBy: "u1", ClaimedAt: &claimedAt,
		BookingID: "ghost", Version: entry.Version}
	pair, err := env.registry.Pair(&seat)
	require.NoError(t, err)
	require.NoError(t, env.store.AtomicWrite(ctx, []store.Pair{pair}))

	// Before the ceiling nothing happens.
	env.advance(23 * time.Hour)
	reclaimed, err := env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)

	// Past claim time plus the ceiling the seat is released.
	env.advance(2 * time.Hour)
	reclaimed, err = env.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1-A-01"}, reclaimed)
}
