// Package analytics computes occupancy statistics from booking
// history. All functions are pure; callers supply the booking slice
// (typically ledger.ListAll) and a reporting window.
package analytics

import (
	"sort"
	"time"

	"seatflow/internal/models"
)

// HourCount is one bucket of the peak-hours histogram.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Report is the full analytics payload served to admins.
type Report struct {
	WindowStart    time.Time   `json:"window_start"`
	WindowEnd      time.Time   `json:"window_end"`
	SeatCount      int         `json:"seat_count"`
	TotalBookings  int         `json:"total_bookings"`
	OccupancyRate  float64     `json:"occupancy_rate"`
	PeakHours      []HourCount `json:"peak_hours"`
	NoShowRate     float64     `json:"no_show_rate"`
	OccupiedMinute int         `json:"occupied_minutes"`
}

// Build assembles a report over [start, end).
func Build(bookings []models.Booking, seatCount int, start, end time.Time) Report {
	occupied := OccupiedMinutes(bookings, start, end)
	return Report{
		WindowStart:    start,
		WindowEnd:      end,
		SeatCount:      seatCount,
		TotalBookings:  countInWindow(bookings, start, end),
		OccupancyRate:  OccupancyRate(bookings, seatCount, start, end),
		PeakHours:      PeakHours(bookings, start, end, 3),
		NoShowRate:     NoShowRate(bookings, start, end),
		OccupiedMinute: occupied,
	}
}

// OccupiedMinutes sums actual occupancy (entry to exit, clipped to the
// window) across all bookings. Bookings without an entry never
// occupied the seat and contribute nothing.
func OccupiedMinutes(bookings []models.Booking, start, end time.Time) int {
	total := 0
	now := time.Now()
	for _, b := range bookings {
		if b.EntryTime == nil {
			continue
		}
		from := *b.EntryTime
		to := now
		if b.ExitTime != nil {
			to = *b.ExitTime
		}
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		if to.After(from) {
			total += int(to.Sub(from).Minutes())
		}
	}
	return total
}

// OccupancyRate is occupied minutes over total available seat-minutes
// in the window. Returns 0 when the window or seat count is empty.
func OccupancyRate(bookings []models.Booking, seatCount int, start, end time.Time) float64 {
	capacity := float64(seatCount) * end.Sub(start).Minutes()
	if capacity <= 0 {
		return 0
	}
	return float64(OccupiedMinutes(bookings, start, end)) / capacity
}

// PeakHours returns the top n hours of day (0-23) by booking starts
// within the window, busiest first. Ties break toward the earlier hour.
func PeakHours(bookings []models.Booking, start, end time.Time, n int) []HourCount {
	counts := make(map[int]int)
	for _, b := range bookings {
		if b.ScheduledStart.Before(start) || !b.ScheduledStart.Before(end) {
			continue
		}
		counts[b.ScheduledStart.Hour()]++
	}
	out := make([]HourCount, 0, len(counts))
	for hour, count := range counts {
		out = append(out, HourCount{Hour: hour, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hour < out[j].Hour
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// NoShowRate is the share of terminal bookings in the window that
// ended as no-shows.
func NoShowRate(bookings []models.Booking, start, end time.Time) float64 {
	terminal, noShow := 0, 0
	for _, b := range bookings {
		if b.ScheduledStart.Before(start) || !b.ScheduledStart.Before(end) {
			continue
		}
		if !b.IsTerminal() {
			continue
		}
		terminal++
		if b.Status == models.BookingNoShow {
			noShow++
		}
	}
	if terminal == 0 {
		return 0
	}
	return float64(noShow) / float64(terminal)
}

func countInWindow(bookings []models.Booking, start, end time.Time) int {
	n := 0
	for _, b := range bookings {
		if !b.ScheduledStart.Before(start) && b.ScheduledStart.Before(end) {
			n++
		}
	}
	return n
}
