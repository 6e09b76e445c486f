// Package ledger provides access to booking records, keyed by
// (user, booking id). Bookings are retained indefinitely; a terminal
// transition is the only form of removal. The per-user live index at
// users/<id>/live is the optimistic token enforcing one live booking
// per user.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"seatflow/internal/models"
	"seatflow/internal/store"
)

const (
	bookingPrefix = "bookings/"
	userPrefix    = "users/"
)

// Ledger reads and composes write pairs for booking records.
type Ledger struct {
	store  store.Store
	logger *zerolog.Logger
}

// New constructs a Ledger over the given store.
func New(s store.Store, logger *zerolog.Logger) *Ledger {
	return &Ledger{store: s, logger: logger}
}

// BookingPath returns the store path of a booking record.
func BookingPath(userID, bookingID string) string {
	return bookingPrefix + userID + "/" + bookingID
}

// LiveIndexPath returns the store path of a user's live-booking index.
func LiveIndexPath(userID string) string {
	return userPrefix + userID + "/live"
}

// liveIndex is the persisted shape of the live-booking index. An empty
// BookingID means the user holds no live booking; the record itself is
// kept so its version stays monotonic.
type liveIndex struct {
	BookingID string `json:"booking_id"`
}

// LiveRef is a read of a user's live index together with the version
// token to guard the next write with.
type LiveRef struct {
	BookingID string
	Version   int64 // store version; 0 when the index was never written
}

// Get returns the booking, or (nil, nil) when absent.
func (l *Ledger) Get(ctx context.Context, userID, bookingID string) (*models.Booking, error) {
	e, err := l.store.Read(ctx, BookingPath(userID, bookingID))
	if err != nil {
		return nil, fmt.Errorf("read booking %s: %w", bookingID, err)
	}
	if e == nil {
		return nil, nil
	}
	return decodeBooking(*e)
}

// Find locates a booking by id alone, scanning the collection. Intended
// for administrator operations that carry no user id.
func (l *Ledger) Find(ctx context.Context, bookingID string) (*models.Booking, error) {
	entries, err := l.store.ReadPrefix(ctx, bookingPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan bookings: %w", err)
	}
	for _, e := range entries {
		b, err := decodeBooking(e)
		if err != nil {
			return nil, err
		}
		if b.ID == bookingID {
			return b, nil
		}
	}
	return nil, nil
}

// ListUser returns all bookings of one user.
func (l *Ledger) ListUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return l.list(ctx, bookingPrefix+userID+"/")
}

// ListAll returns the full historical booking collection.
func (l *Ledger) ListAll(ctx context.Context) ([]models.Booking, error) {
	return l.list(ctx, bookingPrefix)
}

// SeatBookings returns all non-terminal bookings for a seat.
func (l *Ledger) SeatBookings(ctx context.Context, seatID string) ([]models.Booking, error) {
	all, err := l.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, b := range all {
		if b.SeatID == seatID && b.IsLive() {
			out = append(out, b)
		}
	}
	return out, nil
}

// UserDayMinutes sums the booked minutes of a user's live and completed
// bookings whose scheduled start falls on the given day. Used by the
// extension policy's daily cap.
func (l *Ledger) UserDayMinutes(ctx context.Context, userID string, day time.Time) (int, error) {
	bookings, err := l.ListUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	y, m, d := day.Date()
	total := 0
	for _, b := range bookings {
		if b.Status != models.BookingPending && b.Status != models.BookingActive && b.Status != models.BookingCompleted {
			continue
		}
		by, bm, bd := b.ScheduledStart.Date()
		if by == y && bm == m && bd == d {
			total += b.DurationMinutes
		}
	}
	return total, nil
}

// Live returns the user's current live booking, or (nil, ref) when none
// exists. The returned LiveRef carries the version to guard index
// updates with.
func (l *Ledger) Live(ctx context.Context, userID string) (*models.Booking, LiveRef, error) {
	ref := LiveRef{}
	e, err := l.store.Read(ctx, LiveIndexPath(userID))
	if err != nil {
		return nil, ref, fmt.Errorf("read live index for %s: %w", userID, err)
	}
	if e == nil {
		return nil, ref, nil
	}
	var idx liveIndex
	if err := json.Unmarshal(e.Value, &idx); err != nil {
		return nil, ref, fmt.Errorf("decode live index for %s: %w", userID, err)
	}
	ref = LiveRef{BookingID: idx.BookingID, Version: e.Version}
	if idx.BookingID == "" {
		return nil, ref, nil
	}

	b, err := l.Get(ctx, userID, idx.BookingID)
	if err != nil {
		return nil, ref, err
	}
	if b == nil || b.IsTerminal() {
		// Index points at a finished booking; treat as no live booking.
		// The next claim's guarded index write repairs it.
		return nil, ref, nil
	}
	return b, ref, nil
}

// Pair marshals the booking into a write pair guarded by the version it
// was read at. A booking with Version 0 is a new record.
func (l *Ledger) Pair(b *models.Booking) (store.Pair, error) {
	value, err := json.Marshal(b)
	if err != nil {
		return store.Pair{}, fmt.Errorf("marshal booking %s: %w", b.ID, err)
	}
	guard := b.Version
	if guard == 0 {
		guard = store.GuardAbsent
	}
	return store.Pair{Path: BookingPath(b.UserID, b.ID), Value: value, Guard: guard}, nil
}

// LiveIndexPair composes a guarded write of the user's live index.
// Pass the LiveRef obtained from Live so a concurrent claim by the same
// user on another seat loses the race.
func (l *Ledger) LiveIndexPair(userID, bookingID string, ref LiveRef) store.Pair {
	value, _ := json.Marshal(liveIndex{BookingID: bookingID})
	guard := ref.Version
	if guard == 0 {
		guard = store.GuardAbsent
	}
	return store.Pair{Path: LiveIndexPath(userID), Value: value, Guard: guard}
}

func (l *Ledger) list(ctx context.Context, prefix string) ([]models.Booking, error) {
	entries, err := l.store.ReadPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	out := make([]models.Booking, 0, len(entries))
	for _, e := range entries {
		b, err := decodeBooking(e)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func decodeBooking(e store.Entry) (*models.Booking, error) {
	var b models.Booking
	if err := json.Unmarshal(e.Value, &b); err != nil {
		return nil, fmt.Errorf("decode booking at %s: %w", e.Path, err)
	}
	b.Version = e.Version
	return &b, nil
}
