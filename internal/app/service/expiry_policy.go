package service

import (
	"fmt"
	"time"
)

const (
	BusinessOpenHour  = 10
	BusinessCloseHour = 23

	DefaultReservationWindow = 30 * time.Minute
	ExpiredLabel             = "Expired"
)

// ExpiryPolicy decides when a reservation lapses. The seller only answers
// between OpenHour and CloseHour, so a reservation placed while the shop is
// closed starts its window at the next opening.
type ExpiryPolicy struct {
	OpenHour  int
	CloseHour int
	Window    time.Duration
	Location  *time.Location
}

func NewExpiryPolicy(window time.Duration, loc *time.Location) ExpiryPolicy {
	if window <= 0 {
		window = DefaultReservationWindow
	}
	if loc == nil {
		loc = time.UTC
	}
	return ExpiryPolicy{
		OpenHour:  BusinessOpenHour,
		CloseHour: BusinessCloseHour,
		Window:    window,
		Location:  loc,
	}
}

func (p ExpiryPolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// ComputeExpiry returns the instant a reservation started at reservedAt expires.
func (p ExpiryPolicy) ComputeExpiry(reservedAt time.Time) time.Time {
	local := reservedAt.In(p.location())
	hour := local.Hour()

	switch {
	case hour == p.CloseHour-1:
		// last hour before closing keeps the plain window even if it runs past close
		return reservedAt.Add(p.Window)
	case hour >= p.CloseHour:
		return p.openingOn(local.AddDate(0, 0, 1)).Add(p.Window)
	case hour < p.OpenHour:
		return p.openingOn(local).Add(p.Window)
	default:
		return reservedAt.Add(p.Window)
	}
}

func (p ExpiryPolicy) openingOn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), p.OpenHour, 0, 0, 0, p.location())
}

// IsPastExpiry reports whether now is at or after the reservation's expiry.
func (p ExpiryPolicy) IsPastExpiry(reservedAt, now time.Time) bool {
	return !now.Before(p.ComputeExpiry(reservedAt))
}

// FormatRemaining renders a countdown such as "1h 05m 09s" or "12m 30s".
// Partial seconds round up so a live reservation never reads as zero.
func FormatRemaining(now, expiry time.Time) string {
	if !expiry.After(now) {
		return ExpiredLabel
	}

	left := expiry.Sub(now)
	if rem := left % time.Second; rem != 0 {
		left += time.Second - rem
	}

	hours := int(left / time.Hour)
	minutes := int(left % time.Hour / time.Minute)
	seconds := int(left % time.Minute / time.Second)

	if hours > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}
