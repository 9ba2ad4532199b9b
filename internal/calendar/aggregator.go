// Package calendar projects a booking set onto month grids, day panels and
// sorted lists.
//
// Display projections use closed intervals: a booking is shown on every day
// from its start through its end date inclusive, so the checkout day stays
// marked even though the availability index treats it as free.
package calendar

import (
	"sort"
	"time"

	"staybook/internal/models"
)

// MonthBounds returns the first and last day of a month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last
}

// MonthGrid buckets bookings by every day of the month. Days without
// bookings get an empty bucket. Buckets are in list order.
func MonthGrid(bookings []*models.Booking, year int, month time.Month) *models.MonthView {
	first, last := MonthBounds(year, month)
	view := &models.MonthView{
		Year:       year,
		Month:      month,
		DayBuckets: make(map[string][]*models.Booking, last.Day()),
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		view.DayBuckets[d.Format(models.DateLayout)] = []*models.Booking{}
	}

	for _, b := range SortForList(bookings) {
		iv := b.Interval()
		from, to := iv.Start, iv.End
		if from.Before(first) {
			from = first
		}
		if to.After(last) {
			to = last
		}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			key := d.Format(models.DateLayout)
			view.DayBuckets[key] = append(view.DayBuckets[key], b)
		}
	}
	return view
}

// DayDetail returns the bookings shown on a single day, in list order.
func DayDetail(bookings []*models.Booking, day time.Time) []*models.Booking {
	out := make([]*models.Booking, 0)
	for _, b := range bookings {
		if b.Interval().CoversDay(day) {
			out = append(out, b)
		}
	}
	return SortForList(out)
}

// SortForList orders by start date, then id. The input slice is not modified.
func SortForList(bookings []*models.Booking) []*models.Booking {
	out := make([]*models.Booking, len(bookings))
	copy(out, bookings)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Occupancy counts, per day, how many of the month's bookings are shown.
func Occupancy(view *models.MonthView) map[string]int {
	out := make(map[string]int, len(view.DayBuckets))
	for day, list := range view.DayBuckets {
		out[day] = len(list)
	}
	return out
}
