package models

import (
	"encoding/json"
	"fmt"
)

// QRPayload is the JSON object encoded into the QR code handed out at
// claim time and scanned back at check-in and check-out. The three
// fields must round-trip exactly; any mismatch against the booking is a
// hard rejection.
type QRPayload struct {
	BookingID string `json:"bookingId"`
	UserID    string `json:"userId"`
	SeatID    string `json:"seatId"`
}

// EncodeQR serializes the payload for embedding in a QR code.
func EncodeQR(p QRPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return string(data), nil
}

// DecodeQR parses a scanned QR payload. Unknown fields are rejected so
// a tampered or foreign code fails loudly instead of half-matching.
func DecodeQR(raw string) (QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return QRPayload{}, fmt.Errorf("decode qr payload: %w", err)
	}
	if p.BookingID == "" || p.UserID == "" || p.SeatID == "" {
		return QRPayload{}, fmt.Errorf("qr payload missing fields")
	}
	return p, nil
}

// Matches reports whether the payload identifies the given booking.
func (p QRPayload) Matches(b *Booking) bool {
	return p.BookingID == b.ID && p.UserID == b.UserID && p.SeatID == b.SeatID
}
