// Package extension decides whether an active occupancy may be
// lengthened: it checks policy limits and seat conflicts, performs the
// guarded extension write, and proposes alternative seats when the
// current seat is taken.
package extension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"seatflow/internal/events"
	"seatflow/internal/ledger"
	"seatflow/internal/metrics"
	"seatflow/internal/models"
	"seatflow/internal/registry"
	"seatflow/internal/store"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrBookingNotLive  = errors.New("booking is not live")

	// ErrBusy mirrors the reservation engine's bounded-retry behavior.
	ErrBusy = errors.New("operation lost repeated write races, try again")
)

// urgencyWindow is how close to the current end a booking must be for
// the extension request to be flagged urgent. Informational only.
const urgencyWindow = 15 * time.Minute

const writeAttempts = 3

// Availability is the result of a seat-conflict check.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Policy is the result of a rules check.
type Policy struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Result is the outcome of an extension attempt. On conflict failures
// Alternatives lists available seats in the same section with no
// overlapping booking over the requested window.
type Result struct {
	Success      bool       `json:"success"`
	NewEndTime   *time.Time `json:"new_end_time,omitempty"`
	Message      string     `json:"message,omitempty"`
	Alternatives []string   `json:"alternatives,omitempty"`
	Urgent       bool       `json:"urgent"`
}

// Engine evaluates and applies booking extensions.
type Engine struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	store    store.Store
	rules    models.RulesProvider
	bus      *events.Bus
	logger   *zerolog.Logger
	now      func() time.Time
}

// New constructs an extension engine.
func New(
	reg *registry.Registry,
	led *ledger.Ledger,
	st store.Store,
	rules models.RulesProvider,
	bus *events.Bus,
	logger *zerolog.Logger,
) *Engine {
	return &Engine{
		registry: reg,
		ledger:   led,
		store:    st,
		rules:    rules,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the engine's clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// CheckAvailability reports whether the booking's seat is free over the
// extension window (currentEnd, currentEnd+additional].
func (e *Engine) CheckAvailability(ctx context.Context, bookingID string, additional time.Duration) (Availability, error) {
	b, err := e.liveBooking(ctx, bookingID)
	if err != nil {
		return Availability{}, err
	}
	return e.checkAvailability(ctx, b, additional)
}

func (e *Engine) checkAvailability(ctx context.Context, b *models.Booking, additional time.Duration) (Availability, error) {
	newEnd := b.ScheduledEnd.Add(additional)
	others, err := e.ledger.SeatBookings(ctx, b.SeatID)
	if err != nil {
		return Availability{}, err
	}
	for _, other := range others {
		if other.ID == b.ID {
			continue
		}
		if other.OverlapsWindow(b.ScheduledEnd, newEnd) {
			return Availability{
				Available: false,
				Reason:    fmt.Sprintf("seat %s is booked from %s", b.SeatID, other.ScheduledStart.Format(time.Kitchen)),
			}, nil
		}
	}
	return Availability{Available: true}, nil
}

// CheckPolicy reports whether the extension stays within BookingRules:
// the per-booking duration cap, the user's daily cap, and the extension
// increment granularity.
func (e *Engine) CheckPolicy(ctx context.Context, bookingID string, additional time.Duration) (Policy, error) {
	b, err := e.liveBooking(ctx, bookingID)
	if err != nil {
		return Policy{}, err
	}
	return e.checkPolicy(ctx, b, additional)
}

func (e *Engine) checkPolicy(ctx context.Context, b *models.Booking, additional time.Duration) (Policy, error) {
	rules := e.rules()

	if additional <= 0 {
		return Policy{Allowed: false, Reason: "extension must be positive"}, nil
	}
	if increment := rules.ExtensionIncrement(); additional%increment != 0 {
		return Policy{Allowed: false, Reason: fmt.Sprintf("extensions are granted in %s increments", increment)}, nil
	}

	newDuration := time.Duration(b.DurationMinutes)*time.Minute + additional
	if newDuration > rules.MaxBooking() {
		return Policy{Allowed: false, Reason: fmt.Sprintf("total duration would exceed the %s booking limit", rules.MaxBooking())}, nil
	}

	dayMinutes, err := e.ledger.UserDayMinutes(ctx, b.UserID, b.ScheduledStart)
	if err != nil {
		return Policy{}, err
	}
	if time.Duration(dayMinutes)*time.Minute+additional > rules.MaxDaily() {
		return Policy{Allowed: false, Reason: fmt.Sprintf("daily occupancy would exceed the %s limit", rules.MaxDaily())}, nil
	}

	return Policy{Allowed: true}, nil
}

// Extend lengthens the booking by the requested delta. On success the
// booking's end, duration and the seat's occupancy deadline move
// together in one guarded write; the pre-extension end time is
// snapshotted on the first extension only.
func (e *Engine) Extend(ctx context.Context, bookingID string, additional time.Duration) (Result, error) {
	var result Result
	for attempt := 0; attempt < writeAttempts; attempt++ {
		b, err := e.liveBooking(ctx, bookingID)
		if err != nil {
			return Result{}, err
		}

		urgent := b.ScheduledEnd.Sub(e.now()) <= urgencyWindow

		policy, err := e.checkPolicy(ctx, b, additional)
		if err != nil {
			return Result{}, err
		}
		if !policy.Allowed {
			metrics.IncExtension("policy")
			return Result{Success: false, Message: policy.Reason, Urgent: urgent}, nil
		}

		availability, err := e.checkAvailability(ctx, b, additional)
		if err != nil {
			return Result{}, err
		}
		if !availability.Available {
			alternatives, err := e.FindAlternatives(ctx, b, additional)
			if err != nil {
				return Result{}, err
			}
			metrics.IncExtension("conflict")
			return Result{
				Success:      false,
				Message:      availability.Reason,
				Alternatives: alternatives,
				Urgent:       urgent,
			}, nil
		}

		newEnd := b.ScheduledEnd.Add(additional)
		if b.OriginalEnd == nil {
			original := b.ScheduledEnd
			b.OriginalEnd = &original
		}
		b.ScheduledEnd = newEnd
		b.DurationMinutes += int(additional.Minutes())

		seat, err := e.registry.Get(ctx, b.SeatID)
		if err != nil {
			return Result{}, err
		}
		seat.OccupancyDeadline = &newEnd

		seatPair, err := e.registry.Pair(seat)
		if err != nil {
			return Result{}, err
		}
		bookingPair, err := e.ledger.Pair(b)
		if err != nil {
			return Result{}, err
		}

		err = e.store.AtomicWrite(ctx, []store.Pair{seatPair, bookingPair})
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return Result{}, err
		}

		metrics.IncExtension("ok")
		e.bus.Publish(events.Event{Type: events.TypeBookingExtended, SeatID: b.SeatID, BookingID: b.ID, UserID: b.UserID, At: e.now()})
		e.logger.Info().Str("booking", b.ID).Time("new_end", newEnd).Msg("booking extended")
		result = Result{Success: true, NewEndTime: &newEnd, Urgent: urgent}
		return result, nil
	}
	metrics.IncExtension("busy")
	return Result{}, ErrBusy
}

// FindAlternatives returns available seats in the booking's section
// with no booking overlapping the extension window, ordered by seat id.
func (e *Engine) FindAlternatives(ctx context.Context, b *models.Booking, additional time.Duration) ([]string, error) {
	seat, err := e.registry.Get(ctx, b.SeatID)
	if err != nil {
		return nil, err
	}
	candidates, err := e.registry.ListSection(ctx, seat.Section)
	if err != nil {
		return nil, err
	}

	newEnd := b.ScheduledEnd.Add(additional)
	var out []string
	for _, candidate := range candidates {
		if candidate.ID == b.SeatID || candidate.Status != models.SeatAvailable {
			continue
		}
		others, err := e.ledger.SeatBookings(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		conflict := false
		for _, other := range others {
			if other.OverlapsWindow(b.ScheduledEnd, newEnd) {
				conflict = true
				break
			}
		}
		if !conflict {
			out = append(out, candidate.ID)
		}
	}
	return out, nil
}

// liveBooking locates a live booking by id.
func (e *Engine) liveBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := e.ledger.Find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBookingNotFound
	}
	if !b.IsLive() {
		return nil, ErrBookingNotLive
	}
	return b, nil
}
