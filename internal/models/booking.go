package models

import "time"

type Booking struct {
	ID          string    `json:"id"`
	PropertyID  string    `json:"property_id"`
	CustomerID  string    `json:"customer_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Status      Status    `json:"status"`
	GuestCount  int       `json:"guest_count"`
	TotalAmount float64   `json:"total_amount"`
	AmountPaid  float64   `json:"amount_paid"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

// Interval returns the booking's half-open stay [StartDate, EndDate).
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartDate, End: b.EndDate}
}

// IsActive reports whether the booking holds its dates.
func (b *Booking) IsActive() bool {
	return b.Status.IsActive()
}

// Clone returns a shallow copy safe to hand to other goroutines.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// BookingPatch carries the optional fields of an edit. Status is changed
// only through status transitions.
type BookingPatch struct {
	PropertyID  *string    `json:"property_id,omitempty"`
	CustomerID  *string    `json:"customer_id,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	GuestCount  *int       `json:"guest_count,omitempty"`
	TotalAmount *float64   `json:"total_amount,omitempty"`
	AmountPaid  *float64   `json:"amount_paid,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// Apply returns a copy of b with the patch applied.
func (p BookingPatch) Apply(b *Booking) *Booking {
	out := b.Clone()
	if p.PropertyID != nil {
		out.PropertyID = *p.PropertyID
	}
	if p.CustomerID != nil {
		out.CustomerID = *p.CustomerID
	}
	if p.StartDate != nil {
		out.StartDate = NormalizeDate(*p.StartDate)
	}
	if p.EndDate != nil {
		out.EndDate = NormalizeDate(*p.EndDate)
	}
	if p.GuestCount != nil {
		out.GuestCount = *p.GuestCount
	}
	if p.TotalAmount != nil {
		out.TotalAmount = *p.TotalAmount
	}
	if p.AmountPaid != nil {
		out.AmountPaid = *p.AmountPaid
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	return out
}

// MovesDates reports whether the patch touches the property or the interval.
func (p BookingPatch) MovesDates() bool {
	return p.PropertyID != nil || p.StartDate != nil || p.EndDate != nil
}
