package models

import "time"

// BookingRules is the external policy configuration consumed by booking
// creation and the extension engine. It is read-only to the core and
// hot-reloadable between operations: each check reads the current value.
type BookingRules struct {
	MinBookingMinutes        int `yaml:"min_booking_minutes" json:"min_booking_minutes"`
	MaxBookingMinutes        int `yaml:"max_booking_minutes" json:"max_booking_minutes"`
	MaxDailyMinutes          int `yaml:"max_daily_minutes" json:"max_daily_minutes"`
	ExtensionIncrementMinute int `yaml:"extension_increment_minutes" json:"extension_increment_minutes"`
	MaxAdvanceDays           int `yaml:"max_advance_days" json:"max_advance_days"`
}

// MinBooking returns the minimum booking duration.
func (r BookingRules) MinBooking() time.Duration {
	if r.MinBookingMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(r.MinBookingMinutes) * time.Minute
}

// MaxBooking returns the maximum booking duration.
func (r BookingRules) MaxBooking() time.Duration {
	if r.MaxBookingMinutes <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(r.MaxBookingMinutes) * time.Minute
}

// MaxDaily returns the per-user daily occupancy cap.
func (r BookingRules) MaxDaily() time.Duration {
	if r.MaxDailyMinutes <= 0 {
		return 8 * time.Hour
	}
	return time.Duration(r.MaxDailyMinutes) * time.Minute
}

// ExtensionIncrement returns the granularity extensions must be
// requested in.
func (r BookingRules) ExtensionIncrement() time.Duration {
	if r.ExtensionIncrementMinute <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(r.ExtensionIncrementMinute) * time.Minute
}

// MaxAdvance returns how far ahead a booking may be scheduled.
func (r BookingRules) MaxAdvance() time.Duration {
	if r.MaxAdvanceDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(r.MaxAdvanceDays) * 24 * time.Hour
}

// RulesProvider returns the current policy. Engines call it on every
// check so hot reloads take effect without restarts.
type RulesProvider func() BookingRules
