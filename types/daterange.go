package types

import (
	"fmt"
	"time"
)

// Date truncates t to a calendar day at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDate builds a UTC calendar date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateRange is a closed interval of calendar days. Both bounds are included.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange builds a range from two dates, truncated to calendar days.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: Date(start), End: Date(end)}
}

// Validate reports an error when End precedes Start or either bound is unset.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("date range: both bounds are required")
	}
	if Date(r.End).Before(Date(r.Start)) {
		return fmt.Errorf("date range: end %s before start %s",
			r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	return nil
}

// Contains reports whether the calendar day of t lies within [Start, End].
func (r DateRange) Contains(t time.Time) bool {
	d := Date(t)
	return !d.Before(Date(r.Start)) && !d.After(Date(r.End))
}

// String renders the range as "2024-01-01..2024-01-31".
func (r DateRange) String() string {
	return r.Start.Format(time.DateOnly) + ".." + r.End.Format(time.DateOnly)
}
