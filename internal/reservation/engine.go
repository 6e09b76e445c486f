// Package reservation implements the joint seat/booking state machine:
// claim, QR-confirmed check-in and check-out, administrator actions and
// the expiry sweep. Every mutation is a guarded multi-path atomic write;
// a write that loses its version race is retried with fresh state a
// bounded number of times before ErrBusy is surfaced.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"seatflow/internal/audit"
	"seatflow/internal/events"
	"seatflow/internal/ledger"
	"seatflow/internal/metrics"
	"seatflow/internal/models"
	"seatflow/internal/registry"
	"seatflow/internal/store"
)

const (
	// GracePeriod is the window a reserved seat waits for its check-in
	// scan before the sweep reclaims it.
	GracePeriod = 150 * time.Second

	// occupancyCeiling bounds how long an occupied seat with a missing
	// deadline survives before the sweep reclaims it anyway.
	occupancyCeiling = 24 * time.Hour

	writeAttempts = 3
)

// Engine orchestrates seat and booking transitions.
type Engine struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	store    store.Store
	rules    models.RulesProvider
	bus      *events.Bus
	audit    audit.Recorder
	logger   *zerolog.Logger
	now      func() time.Time
}

// New constructs a reservation engine.
func New(
	reg *registry.Registry,
	led *ledger.Ledger,
	st store.Store,
	rules models.RulesProvider,
	bus *events.Bus,
	rec audit.Recorder,
	logger *zerolog.Logger,
) *Engine {
	return &Engine{
		registry: reg,
		ledger:   led,
		store:    st,
		rules:    rules,
		bus:      bus,
		audit:    rec,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the engine's clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// ClaimResult is returned by Claim: the created booking and the QR
// payload the user presents at check-in and check-out.
type ClaimResult struct {
	Booking *models.Booking
	QR      string
}

// Claim reserves a seat for a user for the requested duration, starting
// now. The seat must be
// available and the user must hold no live booking. The seat write is
// conditioned on the version the seat was read at, so of two concurrent
// claims on the same seat exactly one commits.
func (e *Engine) Claim(ctx context.Context, seatID, userID, userName string, duration time.Duration) (*ClaimResult, error) {
	now := e.now()
	requestedEnd := now.Add(duration)
	if err := e.validateWindow(now, now, requestedEnd); err != nil {
		metrics.IncClaim("policy")
		return nil, err
	}

	var result *ClaimResult
	err := e.withRetry(ctx, func(ctx context.Context) error {
		seat, err := e.registry.Get(ctx, seatID)
		if err != nil {
			return err
		}
		if seat.Status != models.SeatAvailable {
			return ErrSeatUnavailable
		}

		live, ref, err := e.ledger.Live(ctx, userID)
		if err != nil {
			return err
		}
		if live != nil {
			return ErrUserHasLiveBooking
		}

		booking := &models.Booking{
			ID:              uuid.NewString(),
			SeatID:          seatID,
			UserID:          userID,
			UserName:        userName,
			CreatedAt:       now,
			ScheduledStart:  now,
			ScheduledEnd:    requestedEnd,
			Status:          models.BookingPending,
			DurationMinutes: int(duration.Minutes()),
		}

		seat.Status = models.SeatReserved
		seat.SetClaim(userID, now, booking.ID, requestedEnd)

		pairs, err := e.pairs(seat, booking)
		if err != nil {
			return err
		}
		pairs = append(pairs, e.ledger.LiveIndexPair(userID, booking.ID, ref))
		if err := e.store.AtomicWrite(ctx, pairs); err != nil {
			return err
		}

		qr, err := models.EncodeQR(models.QRPayload{BookingID: booking.ID, UserID: userID, SeatID: seatID})
		if err != nil {
			return err
		}
		result = &ClaimResult{Booking: booking, QR: qr}
		return nil
	})
	if err != nil {
		metrics.IncClaim(resultLabel(err))
		return nil, err
	}

	metrics.IncClaim("ok")
	e.bus.Publish(events.Event{Type: events.TypeSeatClaimed, SeatID: seatID, BookingID: result.Booking.ID, UserID: userID, At: now})
	e.logger.Info().Str("seat", seatID).Str("user", userID).Str("booking", result.Booking.ID).Msg("seat claimed")
	return result, nil
}

// ConfirmCheckIn transitions a pending booking to active on a matching
// QR scan: seat becomes occupied, the occupancy deadline is set to
// entry time plus the booked duration.
func (e *Engine) ConfirmCheckIn(ctx context.Context, p models.QRPayload) error {
	err := e.withRetry(ctx, func(ctx context.Context) error {
		b, err := e.ledger.Get(ctx, p.UserID, p.BookingID)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrBookingNotFound
		}
		if !p.Matches(b) {
			return ErrPayloadMismatch
		}
		if b.Status != models.BookingPending {
			return ErrBookingNotPending
		}
		return e.checkIn(ctx, b)
	})
	metrics.IncCheckIn(resultLabel(err))
	return err
}

// ConfirmCheckOut completes an active booking on a matching QR scan:
// the seat is released and the exit time recorded.
func (e *Engine) ConfirmCheckOut(ctx context.Context, p models.QRPayload) error {
	err := e.withRetry(ctx, func(ctx context.Context) error {
		b, err := e.ledger.Get(ctx, p.UserID, p.BookingID)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrBookingNotFound
		}
		if !p.Matches(b) {
			return ErrPayloadMismatch
		}
		if b.Status != models.BookingActive {
			return ErrBookingNotActive
		}
		return e.checkOut(ctx, b, e.now())
	})
	metrics.IncCheckOut(resultLabel(err))
	return err
}

// AdminCancel releases the seat and cancels the booking, recording the
// acting administrator and reason. Valid from any live status; a
// booking already in a terminal status is left untouched.
func (e *Engine) AdminCancel(ctx context.Context, bookingID, adminID, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: cancellation reason is required", ErrPolicy)
	}

	err := e.withRetry(ctx, func(ctx context.Context) error {
		b, err := e.ledger.Find(ctx, bookingID)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrBookingNotFound
		}
		if b.IsTerminal() {
			return nil
		}

		now := e.now()
		b.Status = models.BookingCancelled
		b.Cancellation = &models.Cancellation{By: adminID, Reason: reason, At: now}
		return e.release(ctx, b, events.TypeBookingCancelled)
	})
	if err != nil {
		return err
	}

	metrics.IncAdminAction("cancel")
	e.audit.Record(ctx, audit.Entry{Action: "booking.cancel", TargetID: bookingID, ActorID: adminID, Reason: reason})
	return nil
}

// AdminManualCheckIn performs the check-in transition without payload
// verification, for operator-assisted flows.
func (e *Engine) AdminManualCheckIn(ctx context.Context, bookingID, adminID, reason string) error {
	err := e.withRetry(ctx, func(ctx context.Context) error {
		b, err := e.ledger.Find(ctx, bookingID)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrBookingNotFound
		}
		if b.Status != models.BookingPending {
			return ErrBookingNotPending
		}
		return e.checkIn(ctx, b)
	})
	if err != nil {
		return err
	}

	metrics.IncAdminAction("manual_checkin")
	e.audit.Record(ctx, audit.Entry{Action: "booking.manual_checkin", TargetID: bookingID, ActorID: adminID, Reason: reason})
	return nil
}

// AdminManualCheckOut performs the check-out transition without payload
// verification.
func (e *Engine) AdminManualCheckOut(ctx context.Context, bookingID, adminID, reason string) error {
	err := e.withRetry(ctx, func(ctx context.Context) error {
		b, err := e.ledger.Find(ctx, bookingID)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrBookingNotFound
		}
		if b.Status != models.BookingActive {
			return ErrBookingNotActive
		}
		return e.checkOut(ctx, b, e.now())
	})
	if err != nil {
		return err
	}

	metrics.IncAdminAction("manual_checkout")
	e.audit.Record(ctx, audit.Entry{Action: "booking.manual_checkout", TargetID: bookingID, ActorID: adminID, Reason: reason})
	return nil
}

// AdminAssignSeat creates a booking on behalf of a user, possibly for a
// future start. The seat is reserved immediately; the sweep holds the
// reservation until the scheduled start plus the grace period.
func (e *Engine) AdminAssignSeat(ctx context.Context, seatID, userID, userName string, start, end time.Time, adminID string) (*models.Booking, error) {
	now := e.now()
	if start.Before(now.Add(-time.Minute)) {
		return nil, fmt.Errorf("%w: start time is in the past", ErrPolicy)
	}
	if err := e.validateWindow(now, start, end); err != nil {
		return nil, err
	}

	var booking *models.Booking
	err := e.withRetry(ctx, func(ctx context.Context) error {
		seat, err := e.registry.Get(ctx, seatID)
		if err != nil {
			return err
		}
		if seat.Status != models.SeatAvailable {
			return ErrSeatUnavailable
		}

		live, ref, err := e.ledger.Live(ctx, userID)
		if err != nil {
			return err
		}
		if live != nil {
			return ErrUserHasLiveBooking
		}

		booking = &models.Booking{
			ID:              uuid.NewString(),
			SeatID:          seatID,
			UserID:          userID,
			UserName:        userName,
			CreatedAt:       now,
			ScheduledStart:  start,
			ScheduledEnd:    end,
			Status:          models.BookingPending,
			DurationMinutes: int(end.Sub(start).Minutes()),
		}

		seat.Status = models.SeatReserved
		seat.SetClaim(userID, now, booking.ID, end)

		pairs, err := e.pairs(seat, booking)
		if err != nil {
			return err
		}
		pairs = append(pairs, e.ledger.LiveIndexPair(userID, booking.ID, ref))
		return e.store.AtomicWrite(ctx, pairs)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncAdminAction("assign_seat")
	e.audit.Record(ctx, audit.Entry{
		Action:   "seat.assign",
		TargetID: seatID,
		ActorID:  adminID,
		Details:  map[string]string{"user_id": userID, "booking_id": booking.ID},
	})
	e.bus.Publish(events.Event{Type: events.TypeSeatClaimed, SeatID: seatID, BookingID: booking.ID, UserID: userID, At: now})
	return booking, nil
}

// checkIn writes the (seat=occupied, booking=active) pair. The seat
// must still reference the booking; if the sweep already reclaimed it
// the hold is gone and the booking is no longer pending.
func (e *Engine) checkIn(ctx context.Context, b *models.Booking) error {
	seat, err := e.registry.Get(ctx, b.SeatID)
	if err != nil {
		return err
	}
	if seat.BookingID != b.ID {
		return ErrBookingNotPending
	}

	now := e.now()
	deadline := now.Add(time.Duration(b.DurationMinutes) * time.Minute)

	seat.Status = models.SeatOccupied
	seat.OccupancyDeadline = &deadline
	b.Status = models.BookingActive
	b.EntryTime = &now

	pairs, err := e.pairs(seat, b)
	if err != nil {
		return err
	}
	if err := e.store.AtomicWrite(ctx, pairs); err != nil {
		return err
	}

	e.bus.Publish(events.Event{Type: events.TypeCheckedIn, SeatID: seat.ID, BookingID: b.ID, UserID: b.UserID, At: now})
	e.logger.Info().Str("seat", seat.ID).Str("booking", b.ID).Time("deadline", deadline).Msg("checked in")
	return nil
}

// checkOut writes the (seat=available, booking=completed) pair and
// clears the user's live index.
func (e *Engine) checkOut(ctx context.Context, b *models.Booking, exit time.Time) error {
	b.Status = models.BookingCompleted
	b.ExitTime = &exit
	return e.release(ctx, b, events.TypeCheckedOut)
}

// release clears the seat's claim quadruple, persists the booking's
// terminal state and resets the live index, all in one atomic write.
// The booking must already carry its terminal status.
func (e *Engine) release(ctx context.Context, b *models.Booking, eventType string) error {
	seat, err := e.registry.Get(ctx, b.SeatID)
	if err != nil {
		return err
	}

	pairs := make([]store.Pair, 0, 3)

	// The seat may already belong to another booking (sweep raced us);
	// only release it when it still references this one.
	if seat.BookingID == b.ID {
		seat.Status = models.SeatAvailable
		seat.ClearClaim()
		seatPair, err := e.registry.Pair(seat)
		if err != nil {
			return err
		}
		pairs = append(pairs, seatPair)
	}

	bookingPair, err := e.ledger.Pair(b)
	if err != nil {
		return err
	}
	pairs = append(pairs, bookingPair)

	_, ref, err := e.ledger.Live(ctx, b.UserID)
	if err != nil {
		return err
	}
	if ref.BookingID == b.ID {
		pairs = append(pairs, e.ledger.LiveIndexPair(b.UserID, "", ref))
	}

	if err := e.store.AtomicWrite(ctx, pairs); err != nil {
		return err
	}

	e.bus.Publish(events.Event{Type: eventType, SeatID: b.SeatID, BookingID: b.ID, UserID: b.UserID, At: e.now()})
	return nil
}

// pairs marshals the seat and booking into one guarded write set.
func (e *Engine) pairs(seat *models.Seat, b *models.Booking) ([]store.Pair, error) {
	seatPair, err := e.registry.Pair(seat)
	if err != nil {
		return nil, err
	}
	bookingPair, err := e.ledger.Pair(b)
	if err != nil {
		return nil, err
	}
	return []store.Pair{seatPair, bookingPair}, nil
}

// validateWindow enforces BookingRules on a requested occupancy window.
func (e *Engine) validateWindow(now, start, end time.Time) error {
	rules := e.rules()
	duration := end.Sub(start)
	if duration < rules.MinBooking() {
		return fmt.Errorf("%w: booking shorter than %s", ErrPolicy, rules.MinBooking())
	}
	if duration > rules.MaxBooking() {
		return fmt.Errorf("%w: booking longer than %s", ErrPolicy, rules.MaxBooking())
	}
	if end.After(now.Add(rules.MaxAdvance())) {
		return fmt.Errorf("%w: booking beyond the %s advance horizon", ErrPolicy, rules.MaxAdvance())
	}
	return nil
}

// withRetry runs fn, retrying on conditional-write conflicts with fresh
// state, bounded before surfacing ErrBusy.
func (e *Engine) withRetry(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 0; attempt < writeAttempts; attempt++ {
		err := fn(ctx)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		e.logger.Debug().Int("attempt", attempt+1).Msg("write conflict, retrying")
	}
	return ErrBusy
}

// resultLabel maps an operation outcome to a metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrPolicy):
		return "policy"
	default:
		return "rejected"
	}
}
