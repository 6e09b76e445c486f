package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingExpired   BookingStatus = "expired" // missed the pre-check-in grace window
	BookingNoShow    BookingStatus = "no_show" // scheduled start passed without any check-in
	BookingCancelled BookingStatus = "cancelled"
)

// Cancellation records who cancelled a booking and why.
type Cancellation struct {
	By     string    `json:"by"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Booking represents one reservation of a seat by a user. Bookings are
// historical records: they are never deleted, only transitioned to a
// terminal status.
type Booking struct {
	ID     string `json:"id"`
	SeatID string `json:"seat_id"`
	UserID string `json:"user_id"`

	// Denormalized display fields for reporting.
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	ScheduledStart time.Time  `json:"scheduled_start"`
	ScheduledEnd   time.Time  `json:"scheduled_end"`
	EntryTime      *time.Time `json:"entry_time,omitempty"`
	ExitTime       *time.Time `json:"exit_time,omitempty"`

	Status          BookingStatus `json:"status"`
	DurationMinutes int           `json:"duration_minutes"`

	// OriginalEnd holds the pre-extension end time. It is snapshotted on
	// the first extension only and never overwritten afterwards.
	OriginalEnd  *time.Time    `json:"original_end,omitempty"`
	Cancellation *Cancellation `json:"cancellation,omitempty"`

	// Version is the store's optimistic-lock token for this booking record.
	Version int64 `json:"-"`
}

// IsLive reports whether the booking still holds or may come to hold a
// seat: pending or active.
func (b *Booking) IsLive() bool {
	return b.Status == BookingPending || b.Status == BookingActive
}

// IsTerminal reports whether the booking reached a final status.
func (b *Booking) IsTerminal() bool {
	return !b.IsLive()
}

// OverlapsWindow reports whether the booking's scheduled interval
// intersects the half-open window (start, end]. Touching boundaries do
// not conflict: a booking that ends exactly at start, or starts exactly
// at end, is compatible.
func (b *Booking) OverlapsWindow(start, end time.Time) bool {
	return b.ScheduledStart.Before(end) && b.ScheduledEnd.After(start)
}

// IsAdvance reports whether the booking was made ahead of its scheduled
// start (administrator assignment or advance booking) rather than as a
// walk-in claim. The sweep uses this to pick between the expired and
// no_show terminal statuses.
func (b *Booking) IsAdvance(grace time.Duration) bool {
	return b.ScheduledStart.After(b.CreatedAt.Add(grace))
}
