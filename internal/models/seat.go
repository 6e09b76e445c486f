package models

import "time"

// SeatStatus is the lifecycle state of a seat.
type SeatStatus string

const (
	SeatAvailable    SeatStatus = "available"
	SeatReserved     SeatStatus = "reserved"
	SeatOccupied     SeatStatus = "occupied"
	SeatMaintenance  SeatStatus = "maintenance"
	SeatOutOfService SeatStatus = "out_of_service"
)

// Maintenance describes why a seat is withdrawn from service.
type Maintenance struct {
	Reason     string     `json:"reason"`
	ReportedBy string     `json:"reported_by"`
	ExpectedAt *time.Time `json:"expected_at,omitempty"` // expected restoration, if known
}

// Seat represents a numbered seat on a floor. Floor and Section are
// explicit fields populated once at facility setup; callers must never
// re-derive them from the ID prefix.
//
// ClaimedBy, ClaimedAt, BookingID and OccupancyDeadline form the claim
// quadruple: they transition together and are either all set or all clear.
type Seat struct {
	ID      string     `json:"id"`
	Floor   string     `json:"floor"`
	Section string     `json:"section"`
	Status  SeatStatus `json:"status"`

	ClaimedBy         string     `json:"claimed_by,omitempty"`
	ClaimedAt         *time.Time `json:"claimed_at,omitempty"`
	BookingID         string     `json:"booking_id,omitempty"`
	OccupancyDeadline *time.Time `json:"occupancy_deadline,omitempty"`

	Maintenance *Maintenance `json:"maintenance,omitempty"`

	// Version is the store's optimistic-lock token for this seat record.
	// It is not part of the persisted value.
	Version int64 `json:"-"`
}

// HasClaim reports whether the claim quadruple is fully populated.
func (s *Seat) HasClaim() bool {
	return s.ClaimedBy != "" && s.ClaimedAt != nil && s.BookingID != "" && s.OccupancyDeadline != nil
}

// PartialClaim reports whether the quadruple is malformed: some fields
// set and others clear. The sweep reclaims such seats immediately.
func (s *Seat) PartialClaim() bool {
	set := 0
	if s.ClaimedBy != "" {
		set++
	}
	if s.ClaimedAt != nil {
		set++
	}
	if s.BookingID != "" {
		set++
	}
	if s.OccupancyDeadline != nil {
		set++
	}
	return set > 0 && set < 4
}

// SetClaim populates the claim quadruple.
func (s *Seat) SetClaim(userID string, claimedAt time.Time, bookingID string, deadline time.Time) {
	s.ClaimedBy = userID
	s.ClaimedAt = &claimedAt
	s.BookingID = bookingID
	s.OccupancyDeadline = &deadline
}

// ClearClaim resets the claim quadruple.
func (s *Seat) ClearClaim() {
	s.ClaimedBy = ""
	s.ClaimedAt = nil
	s.BookingID = ""
	s.OccupancyDeadline = nil
}
