package audit

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"seatflow/internal/models"
	"seatflow/internal/store"
)

func newRecorder(t *testing.T) *StoreRecorder {
	t.Helper()
	logger := zerolog.New(io.Discard)
	return NewStoreRecorder(store.NewMemory(), &logger)
}

func waitForEntries(t *testing.T, r *StoreRecorder, want int) []Entry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := r.List(context.Background())
		require.NoError(t, err)
		if len(entries) >= want {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d audit entries", want)
	return nil
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	r := newRecorder(t)

	r.Record(context.Background(), Entry{Action: "booking.cancel", TargetID: "b1", ActorID: "admin", Reason: "dup"})

	entries := waitForEntries(t, r, 1)
	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.At.IsZero())
	assert.Equal(t, "booking.cancel", e.Action)
	assert.Equal(t, "dup", e.Reason)
}

func TestListIsChronological(t *testing.T) {
	r := newRecorder(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	// Record out of order; the nanosecond path prefix sorts them.
	r.Record(context.Background(), Entry{Action: "second", At: base.Add(time.Minute)})
	r.Record(context.Background(), Entry{Action: "first", At: base})

	entries := waitForEntries(t, r, 2)
	assert.Equal(t, "first", entries[0].Action)
	assert.Equal(t, "second", entries[1].Action)
}

type staticBookings []models.Booking

func (s staticBookings) ListAll(context.Context) ([]models.Booking, error) {
	return s, nil
}

func TestExportWorkbook(t *testing.T) {
	r := newRecorder(t)
	r.Record(context.Background(), Entry{Action: "booking.cancel", TargetID: "b1", ActorID: "admin"})
	waitForEntries(t, r, 1)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	bookings := staticBookings{
		{ID: "b1", SeatID: "F1-A-01", UserID: "u1", UserName: "Alice",
			Status: models.BookingCompleted, CreatedAt: now,
			ScheduledStart: now, ScheduledEnd: now.Add(time.Hour), DurationMinutes: 60},
	}

	var buf bytes.Buffer
	require.NoError(t, NewExporter(bookings, r).Export(context.Background(), &buf))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()

	assert.Contains(t, file.GetSheetList(), "bookings")
	assert.Contains(t, file.GetSheetList(), "audit")

	cell, err := file.GetCellValue("bookings", "A2")
	require.NoError(t, err)
	assert.Equal(t, "b1", cell)
}
