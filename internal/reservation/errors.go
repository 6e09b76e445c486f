package reservation

import "errors"

// Precondition violations are reported to the caller and never retried:
// retrying without fixing the precondition fails identically.
var (
	ErrSeatUnavailable    = errors.New("seat is not available")
	ErrUserHasLiveBooking = errors.New("user already holds a live booking")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrBookingNotPending  = errors.New("booking is not pending")
	ErrBookingNotActive   = errors.New("booking is not active")
	ErrPayloadMismatch    = errors.New("qr payload does not match booking")

	// ErrBusy is surfaced after a bounded number of conditional writes
	// lost the race to another writer. Callers retry with fresh state.
	ErrBusy = errors.New("operation lost repeated write races, try again")

	// ErrPolicy wraps policy rejections; the wrapping message carries
	// the human-readable reason.
	ErrPolicy = errors.New("policy rejection")
)
