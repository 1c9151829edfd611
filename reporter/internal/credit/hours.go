package credit

import (
	"fmt"
	"time"
)

// Hours is the local working day, [StartOfDay, EndOfDay) in whole hours.
type Hours struct {
	StartOfDay int
	EndOfDay   int
}

// DefaultHours is 09:00 to 17:00.
var DefaultHours = Hours{StartOfDay: 9, EndOfDay: 17}

// Validate checks 0 <= StartOfDay < EndOfDay <= 24.
func (h Hours) Validate() error {
	if h.StartOfDay < 0 || h.EndOfDay > 24 || h.StartOfDay >= h.EndOfDay {
		return fmt.Errorf("working hours %d-%d: want 0 <= start < end <= 24", h.StartOfDay, h.EndOfDay)
	}
	return nil
}

// OutOfHours reports whether t, seen in loc, falls on a weekend or outside
// the working day.
func (h Hours) OutOfHours(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return local.Hour() < h.StartOfDay || local.Hour() >= h.EndOfDay
}
