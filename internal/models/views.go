package models

import "time"

// CreateBookingInput is what callers supply for a new reservation.
type CreateBookingInput struct {
	PropertyID  string    `json:"property_id"`
	CustomerID  string    `json:"customer_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	GuestCount  int       `json:"guest_count"`
	Status      Status    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	AmountPaid  float64   `json:"amount_paid"`
	Notes       string    `json:"notes,omitempty"`
}

// BookingFilter is the compound predicate used by list and calendar views.
// Empty fields match everything.
type BookingFilter struct {
	PropertyID string    `json:"property_id,omitempty"`
	CustomerID string    `json:"customer_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Search     string    `json:"search,omitempty"`
	DateRange  *Interval `json:"date_range,omitempty"`
}

// MonthView maps every day of a month (YYYY-MM-DD) to the bookings shown on it.
type MonthView struct {
	Year       int                   `json:"year"`
	Month      time.Month            `json:"month"`
	DayBuckets map[string][]*Booking `json:"day_buckets"`
}

// Day returns the bucket for the given date.
func (v *MonthView) Day(d time.Time) []*Booking {
	return v.DayBuckets[NormalizeDate(d).Format(DateLayout)]
}
