package registry

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatflow/internal/models"
	"seatflow/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := zerolog.New(io.Discard)
	return New(store.NewMemory(), &logger)
}

func seedSeats(t *testing.T, r *Registry) {
	t.Helper()
	_, err := r.EnsureSeats(context.Background(), []models.Seat{
		{ID: "F1-A-01", Floor: "Ground floor", Section: "A"},
		{ID: "F1-A-02", Floor: "Ground floor", Section: "A"},
		{ID: "F2-B-01", Floor: "Second floor", Section: "B"},
	})
	require.NoError(t, err)
}

func TestEnsureSeatsIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	seats := []models.Seat{{ID: "F1-A-01", Floor: "Ground floor", Section: "A"}}

	created, err := r.EnsureSeats(ctx, seats)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// A claim survives a repeated setup run.
	seat, err := r.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	now := time.Now()
	seat.Status = models.SeatReserved
	seat.SetClaim("u1", now, "b1", now.Add(time.Hour))
	pair, err := r.Pair(seat)
	require.NoError(t, err)
	require.NoError(t, r.store.AtomicWrite(ctx, []store.Pair{pair}))

	created, err = r.EnsureSeats(ctx, seats)
	require.NoError(t, err)
	assert.Zero(t, created)

	seat, err = r.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	assert.Equal(t, models.SeatReserved, seat.Status)
	assert.Equal(t, "u1", seat.ClaimedBy)
}

func TestGetUnknownSeat(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSeatNotFound)
}

func TestListFilters(t *testing.T) {
	r := newTestRegistry(t)
	seedSeats(t, r)
	ctx := context.Background()

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ground, err := r.ListFloor(ctx, "Ground floor")
	require.NoError(t, err)
	assert.Len(t, ground, 2)

	sectionB, err := r.ListSection(ctx, "B")
	require.NoError(t, err)
	require.Len(t, sectionB, 1)
	assert.Equal(t, "F2-B-01", sectionB[0].ID)
}

func TestSetMaintenance(t *testing.T) {
	r := newTestRegistry(t)
	seedSeats(t, r)
	ctx := context.Background()

	rec := models.Maintenance{Reason: "broken desk lamp", ReportedBy: "admin"}
	require.NoError(t, r.SetMaintenance(ctx, "F1-A-01", models.SeatMaintenance, rec))

	seat, err := r.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	assert.Equal(t, models.SeatMaintenance, seat.Status)
	require.NotNil(t, seat.Maintenance)
	assert.Equal(t, "broken desk lamp", seat.Maintenance.Reason)

	require.NoError(t, r.ClearMaintenance(ctx, "F1-A-01"))
	seat, err = r.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	assert.Equal(t, models.SeatAvailable, seat.Status)
	assert.Nil(t, seat.Maintenance)
}

func TestSetMaintenanceRejectsClaimedSeat(t *testing.T) {
	r := newTestRegistry(t)
	seedSeats(t, r)
	ctx := context.Background()

	seat, err := r.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	now := time.Now()
	seat.Status = models.SeatReserved
	seat.SetClaim("u1", now, "b1", now.Add(time.Hour))
	pair, err := r.Pair(seat)
	require.NoError(t, err)
	require.NoError(t, r.store.AtomicWrite(ctx, []store.Pair{pair}))

	err = r.SetMaintenance(ctx, "F1-A-01", models.SeatMaintenance, models.Maintenance{Reason: "x"})
	assert.ErrorIs(t, err, ErrSeatClaimed)
}

func TestSetMaintenanceValidatesStatus(t *testing.T) {
	r := newTestRegistry(t)
	seedSeats(t, r)

	err := r.SetMaintenance(context.Background(), "F1-A-01", models.SeatOccupied, models.Maintenance{Reason: "x"})
	assert.Error(t, err)
}
