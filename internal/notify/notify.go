// Package notify delivers operator notifications about booking activity.
package notify

import (
	"context"
	"fmt"
	"strings"

	"staybook/internal/domain"
	"staybook/internal/events"

	"github.com/rs/zerolog"
)

const (
	KindBookingCreated       = "booking_created"
	KindBookingUpdated       = "booking_updated"
	KindBookingStatusChanged = "booking_status_changed"
	KindCalendarSyncOK       = "calendar_sync_succeeded"
	KindCalendarSyncFailed   = "calendar_sync_failed"
)

// SyncOutcome is the payload of the calendar sync kinds.
type SyncOutcome struct {
	BookingID  string `json:"booking_id"`
	CalendarID string `json:"calendar_id"`
	Error      string `json:"error,omitempty"`
}

// Format renders a notification as a short Markdown message.
func Format(kind string, payload interface{}) string {
	switch p := payload.(type) {
	case events.BookingEventPayload:
		switch kind {
		case KindBookingCreated:
			return fmt.Sprintf("*New booking* `%s`\nProperty: %s\nDates: %s - %s\nGuests: %d\nStatus: %s",
				p.BookingID, p.PropertyID, p.StartDate, p.EndDate, p.GuestCount, p.Status)
		case KindBookingStatusChanged:
			return fmt.Sprintf("*Booking* `%s` %s -> *%s*\nProperty: %s\nDates: %s - %s",
				p.BookingID, p.PreviousStatus, p.Status, p.PropertyID, p.StartDate, p.EndDate)
		default:
			return fmt.Sprintf("*Booking updated* `%s`\nProperty: %s\nDates: %s - %s",
				p.BookingID, p.PropertyID, p.StartDate, p.EndDate)
		}
	case SyncOutcome:
		if kind == KindCalendarSyncFailed {
			return fmt.Sprintf("*Calendar sync failed* for `%s`\nCalendar: %s\nError: %s", p.BookingID, p.CalendarID, p.Error)
		}
		return fmt.Sprintf("Calendar sync done for `%s`", p.BookingID)
	default:
		return fmt.Sprintf("%s: %v", strings.ReplaceAll(kind, "_", " "), payload)
	}
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "notify").Logger()
	return &LogNotifier{logger: &l}
}

func (n *LogNotifier) Notify(_ context.Context, kind string, payload interface{}) {
	level := n.logger.Info()
	if kind == KindCalendarSyncFailed {
		level = n.logger.Warn()
	}
	level.Str("kind", kind).Interface("payload", payload).Msg("notification")
}

// Multi fans a notification out to every sink.
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, kind string, payload interface{}) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, kind, payload)
		}
	}
}
