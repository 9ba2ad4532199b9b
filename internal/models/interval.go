package models

import (
	"fmt"
	"time"
)

// Interval is a half-open range of calendar days [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval normalizes both bounds to UTC midnight.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: NormalizeDate(start), End: NormalizeDate(end)}
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps uses half-open semantics: touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Intersects reports whether the interval shares any instant with [start, end).
func (i Interval) Intersects(start, end time.Time) bool {
	return i.Overlaps(Interval{Start: start, End: end})
}

// CoversDay uses closed semantics (Start <= day <= End). Calendar displays
// mark the checkout day as occupied even though it is bookable.
func (i Interval) CoversDay(day time.Time) bool {
	d := NormalizeDate(day)
	return !d.Before(i.Start) && !d.After(i.End)
}

// Nights is the number of nights in the stay.
func (i Interval) Nights() int {
	return int(i.End.Sub(i.Start).Hours() / 24)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(DateLayout), i.End.Format(DateLayout))
}

// NormalizeDate drops the time of day and location, keeping the calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", s, DateLayout)
	}
	return t, nil
}

// ParseMonth parses a YYYY-MM month.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: expected %s", s, MonthLayout)
	}
	return t.Year(), t.Month(), nil
}
