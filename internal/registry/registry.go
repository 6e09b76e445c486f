// Package registry provides access to seat records, grouped by floor.
// Seats are created once at facility setup and never deleted; every
// mutation goes through a version-guarded write so concurrent writers
// cannot clobber each other.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"seatflow/internal/models"
	"seatflow/internal/store"
)

const seatPrefix = "seats/"

var (
	ErrSeatNotFound = errors.New("seat not found")
	// ErrSeatClaimed is returned when a maintenance flag would co-occur
	// with a live claim. The booking must be evicted or cancelled first.
	ErrSeatClaimed = errors.New("seat has a live claim")
)

// maintenance writes retry this many times on version conflicts before
// surfacing the conflict.
const writeAttempts = 3

// Registry reads and mutates seat records in the store.
type Registry struct {
	store  store.Store
	logger *zerolog.Logger
}

// New constructs a Registry over the given store.
func New(s store.Store, logger *zerolog.Logger) *Registry {
	return &Registry{store: s, logger: logger}
}

// SeatPath returns the store path of a seat record.
func SeatPath(seatID string) string {
	return seatPrefix + seatID
}

// Get returns the seat with its current version token, or
// ErrSeatNotFound when absent.
func (r *Registry) Get(ctx context.Context, seatID string) (*models.Seat, error) {
	e, err := r.store.Read(ctx, SeatPath(seatID))
	if err != nil {
		return nil, fmt.Errorf("read seat %s: %w", seatID, err)
	}
	if e == nil {
		return nil, ErrSeatNotFound
	}
	return decodeSeat(*e)
}

// List returns every seat, ordered by id.
func (r *Registry) List(ctx context.Context) ([]models.Seat, error) {
	entries, err := r.store.ReadPrefix(ctx, seatPrefix)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	seats := make([]models.Seat, 0, len(entries))
	for _, e := range entries {
		seat, err := decodeSeat(e)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *seat)
	}
	return seats, nil
}

// ListFloor returns the seats of one floor, ordered by id.
func (r *Registry) ListFloor(ctx context.Context, floor string) ([]models.Seat, error) {
	seats, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := seats[:0]
	for _, s := range seats {
		if s.Floor == floor {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListSection returns the seats of one section, ordered by id.
func (r *Registry) ListSection(ctx context.Context, section string) ([]models.Seat, error) {
	seats, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := seats[:0]
	for _, s := range seats {
		if s.Section == section {
			out = append(out, s)
		}
	}
	return out, nil
}

// Pair marshals the seat into a write pair guarded by the version it
// was read at. A seat with Version 0 is treated as a new record.
func (r *Registry) Pair(seat *models.Seat) (store.Pair, error) {
	value, err := json.Marshal(seat)
	if err != nil {
		return store.Pair{}, fmt.Errorf("marshal seat %s: %w", seat.ID, err)
	}
	guard := seat.Version
	if guard == 0 {
		guard = store.GuardAbsent
	}
	return store.Pair{Path: SeatPath(seat.ID), Value: value, Guard: guard}, nil
}

// EnsureSeats creates missing seat records at facility setup. Existing
// seats are left untouched so repeated startups never reset state.
func (r *Registry) EnsureSeats(ctx context.Context, seats []models.Seat) (int, error) {
	created := 0
	for i := range seats {
		seat := seats[i]
		seat.Status = models.SeatAvailable
		seat.Version = 0
		pair, err := r.Pair(&seat)
		if err != nil {
			return created, err
		}
		err = r.store.AtomicWrite(ctx, []store.Pair{pair})
		if errors.Is(err, store.ErrConflict) {
			continue // already exists
		}
		if err != nil {
			return created, fmt.Errorf("create seat %s: %w", seat.ID, err)
		}
		created++
	}
	if created > 0 {
		r.logger.Info().Int("created", created).Msg("seat records created")
	}
	return created, nil
}

// SetMaintenance withdraws a seat from service. The seat must not hold
// a live claim; an occupied or reserved seat must be released first.
// Status must be maintenance or out_of_service.
func (r *Registry) SetMaintenance(ctx context.Context, seatID string, status models.SeatStatus, rec models.Maintenance) error {
	if status != models.SeatMaintenance && status != models.SeatOutOfService {
		return fmt.Errorf("invalid maintenance status %q", status)
	}
	return r.update(ctx, seatID, func(seat *models.Seat) error {
		if seat.HasClaim() || seat.PartialClaim() {
			return ErrSeatClaimed
		}
		seat.Status = status
		seat.Maintenance = &rec
		return nil
	})
}

// ClearMaintenance restores a seat to service.
func (r *Registry) ClearMaintenance(ctx context.Context, seatID string) error {
	return r.update(ctx, seatID, func(seat *models.Seat) error {
		if seat.Status != models.SeatMaintenance && seat.Status != models.SeatOutOfService {
			return fmt.Errorf("seat %s is not in maintenance", seatID)
		}
		seat.Status = models.SeatAvailable
		seat.Maintenance = nil
		return nil
	})
}

// update applies fn under the seat's version guard, retrying on
// conflicts with freshly read state.
func (r *Registry) update(ctx context.Context, seatID string, fn func(*models.Seat) error) error {
	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		seat, err := r.Get(ctx, seatID)
		if err != nil {
			return err
		}
		if err := fn(seat); err != nil {
			return err
		}
		pair, err := r.Pair(seat)
		if err != nil {
			return err
		}
		err = r.store.AtomicWrite(ctx, []store.Pair{pair})
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func decodeSeat(e store.Entry) (*models.Seat, error) {
	var seat models.Seat
	if err := json.Unmarshal(e.Value, &seat); err != nil {
		return nil, fmt.Errorf("decode seat at %s: %w", e.Path, err)
	}
	seat.Version = e.Version
	return &seat, nil
}
