package models

import (
	"fmt"
	"time"
)

// SyncTask records one attempt to mirror a booking into an external calendar.
type SyncTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	BookingID   string     `json:"booking_id"`
	CalendarID  string     `json:"calendar_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// CalendarEvent is what the external calendar receives for a booking.
// Start and End are all-day dates; End is exclusive like the booking interval.
type CalendarEvent struct {
	BookingID      string    `json:"booking_id"`
	Summary        string    `json:"summary"`
	Description    string    `json:"description"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AttendeeEmails []string  `json:"attendee_emails,omitempty"`
}

// NewCalendarEvent describes b for the property's calendar. Either lookup may be nil.
func NewCalendarEvent(b *Booking, property *Property, customer *Customer) CalendarEvent {
	guest := b.CustomerID
	var attendees []string
	if customer != nil {
		if customer.Name != "" {
			guest = customer.Name
		}
		if customer.Email != "" {
			attendees = []string{customer.Email}
		}
	}

	place := b.PropertyID
	if property != nil && property.Name != "" {
		place = property.Name
	}

	desc := fmt.Sprintf("Booking %s\nGuests: %d\nNights: %d", b.ID, b.GuestCount, b.Interval().Nights())
	if b.Notes != "" {
		desc += "\n" + b.Notes
	}

	return CalendarEvent{
		BookingID:      b.ID,
		Summary:        fmt.Sprintf("%s: %s", place, guest),
		Description:    desc,
		Start:          b.StartDate,
		End:            b.EndDate,
		AttendeeEmails: attendees,
	}
}
