package types

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date layout used for window bounds and per-day
// output partitions.
const DateLayout = "2006-01-02"

// TimeWindow is a range of UTC calendar dates.
//
// Days enumerates Start up to but excluding End. Covers, used to classify
// records, is inclusive of both bounds.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow truncates start and end to UTC dates and rejects start > end.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	w := TimeWindow{Start: Date(start), End: Date(end)}
	if w.Start.After(w.End) {
		return TimeWindow{}, fmt.Errorf("window: start %s is after end %s",
			w.Start.Format(DateLayout), w.End.Format(DateLayout))
	}
	return w, nil
}

// WindowEndingAt returns the window of daysBack days ending (exclusively) at end.
func WindowEndingAt(end time.Time, daysBack int) (TimeWindow, error) {
	if daysBack < 0 {
		return TimeWindow{}, fmt.Errorf("window: days back must not be negative, got %d", daysBack)
	}
	end = Date(end)
	return NewTimeWindow(end.AddDate(0, 0, -daysBack), end)
}

// Days returns every date in [Start, End).
func (w TimeWindow) Days() []time.Time {
	var days []time.Time
	for d := w.Start; d.Before(w.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Covers reports whether the UTC date of t lies within [Start, End].
func (w TimeWindow) Covers(t time.Time) bool {
	d := Date(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w TimeWindow) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

// Date truncates t to midnight of its UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string as a UTC date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
