// Package google mirrors confirmed bookings into Google Calendar.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"staybook/internal/domain"
	"staybook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarClient inserts one all-day event per booking. Every failure is a *domain.SyncError.
type CalendarClient struct {
	service *calendar.Service
}

// NewCalendarClient authenticates with a service account credentials file.
func NewCalendarClient(ctx context.Context, credentialsFile string) (*CalendarClient, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return NewCalendarClientWithOptions(ctx, option.WithHTTPClient(config.Client(ctx)))
}

func NewCalendarClientWithOptions(ctx context.Context, opts ...option.ClientOption) (*CalendarClient, error) {
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return &CalendarClient{service: srv}, nil
}

// SyncBooking inserts the event, or updates it when the booking was mirrored before.
func (c *CalendarClient) SyncBooking(ctx context.Context, calendarID string, ev models.CalendarEvent) error {
	event := toGoogleEvent(ev)

	_, err := c.service.Events.Insert(calendarID, event).SendUpdates("none").Context(ctx).Do()
	if isDuplicate(err) && event.Id != "" {
		_, err = c.service.Events.Update(calendarID, event.Id, event).SendUpdates("none").Context(ctx).Do()
	}
	if err != nil {
		return toSyncError(ctx, err)
	}
	return nil
}

func toGoogleEvent(ev models.CalendarEvent) *calendar.Event {
	event := &calendar.Event{
		Id:           EventID(ev.BookingID),
		Summary:      ev.Summary,
		Description:  ev.Description,
		Start:        &calendar.EventDateTime{Date: ev.Start.Format(models.DateLayout)},
		End:          &calendar.EventDateTime{Date: ev.End.Format(models.DateLayout)},
		Transparency: "opaque",
	}
	for _, email := range ev.AttendeeEmails {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}
	return event
}

// EventID derives a stable Google event id (base32hex alphabet, 5+ chars) from a booking id.
// It returns "" when the booking id cannot produce one and Google assigns the id.
func EventID(bookingID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(bookingID) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'v') {
			b.WriteRune(r)
		}
	}
	if b.Len() < 5 {
		return ""
	}
	return b.String()
}

func isDuplicate(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

func toSyncError(ctx context.Context, err error) *domain.SyncError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.SyncError{Detail: domain.SyncTimeoutDetail}
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &domain.SyncError{Detail: fmt.Sprintf("google api %d: %s", gerr.Code, gerr.Message)}
	}
	return &domain.SyncError{Detail: err.Error()}
}
