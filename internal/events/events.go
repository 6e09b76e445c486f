// Package events provides in-process pub/sub for booking lifecycle
// events, plus an optional forwarder pushing them to a message broker.
package events

import (
	"sync"
	"time"
)

// Event types published by the reservation and extension engines.
const (
	TypeSeatClaimed      = "seat.claimed"
	TypeCheckedIn        = "booking.checked_in"
	TypeCheckedOut       = "booking.checked_out"
	TypeBookingExpired   = "booking.expired"
	TypeBookingNoShow    = "booking.no_show"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingExtended  = "booking.extended"
	TypeSeatReclaimed    = "seat.reclaimed"
)

// Event is a lightweight domain event.
type Event struct {
	Type      string    `json:"type"`
	SeatID    string    `json:"seat_id,omitempty"`
	BookingID string    `json:"booking_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	At        time.Time `json:"at"`
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type. The empty type
// subscribes to every event.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[""]...)
	b.mu.RUnlock()

	if event.At.IsZero() {
		event.At = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		handler(event)
	}
}
