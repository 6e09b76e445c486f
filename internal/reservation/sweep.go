package reservation

import (
	"context"
	"errors"
	"time"

	"seatflow/internal/events"
	"seatflow/internal/metrics"
	"seatflow/internal/models"
	"seatflow/internal/store"
)

// SweepExpired reclaims seats whose reservation or occupancy window has
// elapsed. It is idempotent and safe to invoke concurrently from any
// number of callers: every reclamation is a guarded write, so of two
// racing sweepers exactly one commits and the other skips the seat.
// Returns the ids of the seats reclaimed by this invocation.
func (e *Engine) SweepExpired(ctx context.Context) ([]string, error) {
	seats, err := e.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var reclaimed []string
	for i := range seats {
		seat := seats[i]
		var (
			did bool
			err error
		)
		switch seat.Status {
		case models.SeatReserved:
			did, err = e.sweepReserved(ctx, &seat, now)
		case models.SeatOccupied:
			did, err = e.sweepOccupied(ctx, &seat, now)
		default:
			continue
		}
		if errors.Is(err, store.ErrConflict) {
			// Another writer (sweeper or a check-in) got there first.
			continue
		}
		if err != nil {
			e.logger.Error().Err(err).Str("seat", seat.ID).Msg("sweep failed for seat")
			continue
		}
		if did {
			reclaimed = append(reclaimed, seat.ID)
		}
	}
	return reclaimed, nil
}

// sweepReserved handles a seat holding an unconfirmed reservation.
func (e *Engine) sweepReserved(ctx context.Context, seat *models.Seat, now time.Time) (bool, error) {
	if !seat.HasClaim() {
		// Malformed quadruple: repair immediately.
		return true, e.reclaim(ctx, seat, nil, models.BookingExpired, "malformed", now)
	}

	b, err := e.ledger.Get(ctx, seat.ClaimedBy, seat.BookingID)
	if err != nil {
		return false, err
	}
	if b == nil || b.IsTerminal() {
		// The seat references a booking that no longer holds it.
		return true, e.reclaim(ctx, seat, nil, models.BookingExpired, "orphaned", now)
	}

	// Advance bookings hold their reservation until the scheduled start;
	// walk-in claims wait out the grace window from the claim itself.
	holdFrom := *seat.ClaimedAt
	terminal := models.BookingExpired
	reason := "grace_elapsed"
	if b.IsAdvance(GracePeriod) {
		holdFrom = b.ScheduledStart
		terminal = models.BookingNoShow
		reason = "no_show"
	}
	if now.Sub(holdFrom) <= GracePeriod {
		return false, nil
	}
	return true, e.reclaim(ctx, seat, b, terminal, reason, now)
}

// sweepOccupied handles a seat whose occupant overstayed the deadline.
func (e *Engine) sweepOccupied(ctx context.Context, seat *models.Seat, now time.Time) (bool, error) {
	deadline := seat.OccupancyDeadline
	if deadline == nil {
		// Missing deadline: fall back to a hard ceiling from the claim
		// time so malformed data cannot strand the seat forever.
		if seat.ClaimedAt == nil {
			return true, e.reclaim(ctx, seat, nil, models.BookingCompleted, "malformed", now)
		}
		ceiling := seat.ClaimedAt.Add(occupancyCeiling)
		if now.Before(ceiling) {
			return false, nil
		}
		deadline = &ceiling
	}
	if !now.After(*deadline) {
		return false, nil
	}

	var b *models.Booking
	if seat.ClaimedBy != "" && seat.BookingID != "" {
		var err error
		b, err = e.ledger.Get(ctx, seat.ClaimedBy, seat.BookingID)
		if err != nil {
			return false, err
		}
		if b != nil && b.IsTerminal() {
			b = nil
		}
	}
	if b != nil {
		// Exit time is the deadline, not now: the user was not present
		// past the deadline, and recording now would overstate duration.
		exit := *deadline
		b.Status = models.BookingCompleted
		b.ExitTime = &exit
	}
	return true, e.reclaimSeat(ctx, seat, b, "deadline", now)
}

// reclaim terminates the booking referenced by the seat (when live) with
// the given terminal status and releases the seat.
func (e *Engine) reclaim(ctx context.Context, seat *models.Seat, b *models.Booking, terminal models.BookingStatus, reason string, now time.Time) error {
	if b == nil && seat.ClaimedBy != "" && seat.BookingID != "" {
		found, err := e.ledger.Get(ctx, seat.ClaimedBy, seat.BookingID)
		if err != nil {
			return err
		}
		if found != nil && found.IsLive() {
			b = found
		}
	}
	if b != nil {
		b.Status = terminal
	}
	return e.reclaimSeat(ctx, seat, b, reason, now)
}

// reclaimSeat writes the release: seat cleared, booking (if any) in its
// terminal state, live index reset when it still points at the booking.
func (e *Engine) reclaimSeat(ctx context.Context, seat *models.Seat, b *models.Booking, reason string, now time.Time) error {
	seat.Status = models.SeatAvailable
	seat.ClearClaim()

	seatPair, err := e.registry.Pair(seat)
	if err != nil {
		return err
	}
	pairs := []store.Pair{seatPair}

	if b != nil {
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
	}

	if err := e.store.AtomicWrite(ctx, pairs); err != nil {
		return err
	}

	metrics.IncSweepReclaimed(reason)
	e.bus.Publish(events.Event{Type: events.TypeSeatReclaimed, SeatID: seat.ID, At: now})
	if b != nil {
		eventType := events.TypeBookingExpired
		switch b.Status {
		case models.BookingNoShow:
			eventType = events.TypeBookingNoShow
		case models.BookingCompleted:
			eventType = events.TypeCheckedOut
		}
		e.bus.Publish(events.Event{Type: eventType, SeatID: seat.ID, BookingID: b.ID, UserID: b.UserID, At: now})
	}
	e.logger.Info().Str("seat", seat.ID).Str("reason", reason).Msg("seat reclaimed")
	return nil
}
