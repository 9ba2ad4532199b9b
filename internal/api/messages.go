package api

import (
	"strings"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"
)

// BookingMessage is the wire form of a booking shared by HTTP and gRPC.
// Dates are YYYY-MM-DD; EndDate is the check-out day.
type BookingMessage struct {
	ID          string  `json:"id"`
	PropertyID  string  `json:"property_id"`
	CustomerID  string  `json:"customer_id"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Nights      int     `json:"nights"`
	Status      string  `json:"status"`
	GuestCount  int     `json:"guest_count"`
	TotalAmount float64 `json:"total_amount"`
	AmountPaid  float64 `json:"amount_paid"`
	Notes       string  `json:"notes,omitempty"`
	Version     int64   `json:"version"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

func toBookingMessage(b *models.Booking) *BookingMessage {
	if b == nil {
		return nil
	}
	msg := &BookingMessage{
		ID:          b.ID,
		PropertyID:  b.PropertyID,
		CustomerID:  b.CustomerID,
		StartDate:   b.StartDate.Format(models.DateLayout),
		EndDate:     b.EndDate.Format(models.DateLayout),
		Nights:      b.Interval().Nights(),
		Status:      b.Status.String(),
		GuestCount:  b.GuestCount,
		TotalAmount: b.TotalAmount,
		AmountPaid:  b.AmountPaid,
		Notes:       b.Notes,
		Version:     b.Version,
	}
	if !b.CreatedAt.IsZero() {
		msg.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !b.UpdatedAt.IsZero() {
		msg.UpdatedAt = b.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return msg
}

func toBookingMessages(bs []*models.Booking) []*BookingMessage {
	out := make([]*BookingMessage, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingMessage(b))
	}
	return out
}

type CreateBookingRequest struct {
	PropertyID     string  `json:"property_id"`
	CustomerID     string  `json:"customer_id"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	GuestCount     int     `json:"guest_count"`
	Status         string  `json:"status,omitempty"`
	TotalAmount    float64 `json:"total_amount"`
	AmountPaid     float64 `json:"amount_paid"`
	Notes          string  `json:"notes,omitempty"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

func (r *CreateBookingRequest) toInput() (models.CreateBookingInput, error) {
	start, err := parseDate(r.StartDate)
	if err != nil {
		return models.CreateBookingInput{}, err
	}
	end, err := parseDate(r.EndDate)
	if err != nil {
		return models.CreateBookingInput{}, err
	}
	return models.CreateBookingInput{
		PropertyID:  strings.TrimSpace(r.PropertyID),
		CustomerID:  strings.TrimSpace(r.CustomerID),
		StartDate:   start,
		EndDate:     end,
		GuestCount:  r.GuestCount,
		Status:      models.Status(strings.ToLower(strings.TrimSpace(r.Status))),
		TotalAmount: r.TotalAmount,
		AmountPaid:  r.AmountPaid,
		Notes:       r.Notes,
	}, nil
}

// UpdateBookingRequest mirrors models.BookingPatch with string dates.
type UpdateBookingRequest struct {
	PropertyID  *string  `json:"property_id,omitempty"`
	CustomerID  *string  `json:"customer_id,omitempty"`
	StartDate   *string  `json:"start_date,omitempty"`
	EndDate     *string  `json:"end_date,omitempty"`
	GuestCount  *int     `json:"guest_count,omitempty"`
	TotalAmount *float64 `json:"total_amount,omitempty"`
	AmountPaid  *float64 `json:"amount_paid,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

func (r *UpdateBookingRequest) toPatch() (models.BookingPatch, error) {
	patch := models.BookingPatch{
		PropertyID:  r.PropertyID,
		CustomerID:  r.CustomerID,
		GuestCount:  r.GuestCount,
		TotalAmount: r.TotalAmount,
		AmountPaid:  r.AmountPaid,
		Notes:       r.Notes,
	}
	if r.StartDate != nil {
		d, err := parseDate(*r.StartDate)
		if err != nil {
			return patch, err
		}
		patch.StartDate = &d
	}
	if r.EndDate != nil {
		d, err := parseDate(*r.EndDate)
		if err != nil {
			return patch, err
		}
		patch.EndDate = &d
	}
	return patch, nil
}

type GetBookingRequest struct {
	ID string `json:"id"`
}

type TransitionStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ListBookingsRequest struct {
	PropertyID string `json:"property_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Search     string `json:"search,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

type ListBookingsResponse struct {
	Bookings []*BookingMessage `json:"bookings"`
}

type CheckAvailabilityRequest struct {
	PropertyID string `json:"property_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

type CheckAvailabilityResponse struct {
	Available            bool   `json:"available"`
	ConflictingBookingID string `json:"conflicting_booking_id,omitempty"`
}

// MonthViewMessage lists every day of the month with the ids shown on it.
type MonthViewMessage struct {
	Month    string                     `json:"month"`
	Days     map[string][]string        `json:"days"`
	Bookings map[string]*BookingMessage `json:"bookings"`
}

func toMonthViewMessage(v *models.MonthView) *MonthViewMessage {
	msg := &MonthViewMessage{
		Month:    time.Date(v.Year, v.Month, 1, 0, 0, 0, 0, time.UTC).Format(models.MonthLayout),
		Days:     make(map[string][]string, len(v.DayBuckets)),
		Bookings: make(map[string]*BookingMessage),
	}
	for day, bucket := range v.DayBuckets {
		ids := make([]string, 0, len(bucket))
		for _, b := range bucket {
			ids = append(ids, b.ID)
			if _, ok := msg.Bookings[b.ID]; !ok {
				msg.Bookings[b.ID] = toBookingMessage(b)
			}
		}
		msg.Days[day] = ids
	}
	return msg
}

func parseDate(s string) (time.Time, error) {
	d, err := models.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, domain.NewValidationError(domain.ReasonInvalidDate)
	}
	return d, nil
}

func parseRange(from, to string) (models.Interval, error) {
	start, err := parseDate(from)
	if err != nil {
		return models.Interval{}, err
	}
	end, err := parseDate(to)
	if err != nil {
		return models.Interval{}, err
	}
	return models.NewInterval(start, end), nil
}
