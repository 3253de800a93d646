package court

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound            = errors.New("court not found")
	ErrInvalidOpeningHours = errors.New("invalid opening hours")
)

// Court is a bookable resource owned by a facility.
type Court struct {
	ID           string
	FacilityID   string
	OperatorID   string // user who operates the owning facility
	Name         string
	OpenTime     string // Format: HH:MM:SS or HH:MM
	CloseTime    string // Format: HH:MM:SS or HH:MM
	PricePerHour int64  // minor currency units
	IsActive     bool
	CreatedAt    time.Time
}

// ParseClock parses a time-of-day string and returns the offset from midnight.
// Assumes format is HH:MM:SS or HH:MM.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		// Fallback: try short format if long format fails
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// HoursOn returns the opening and closing instants of the court on the day of date,
// in date's location. Operating hours never cross midnight.
func (c *Court) HoursOn(date time.Time) (time.Time, time.Time, error) {
	open, err := ParseClock(c.OpenTime)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidOpeningHours
	}
	closing, err := ParseClock(c.CloseTime)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidOpeningHours
	}
	if closing <= open {
		return time.Time{}, time.Time{}, ErrInvalidOpeningHours
	}

	return At(date, open), At(date, closing), nil
}

// At returns the wall-clock time clock on the day of date, in date's location.
// The wall clock is kept on daylight saving days.
func At(date time.Time, clock time.Duration) time.Time {
	h := int(clock / time.Hour)
	m := int(clock % time.Hour / time.Minute)
	sec := int(clock % time.Minute / time.Second)
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, sec, 0, date.Location())
}

// Covers reports whether [start, end) lies within the court's operating hours of a single day.
func (c *Court) Covers(start, end time.Time) bool {
	open, closing, err := c.HoursOn(start)
	if err != nil {
		return false
	}
	return !start.Before(open) && !end.After(closing)
}
