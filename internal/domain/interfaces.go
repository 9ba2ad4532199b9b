package domain

import (
	"context"
	"time"

	"staybook/internal/models"
)

// Repository is the entity store: the source of truth for bookings and the
// read-only catalog of properties and customers.
type Repository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id string, version int64, status models.Status) error
	DeleteBooking(ctx context.Context, id string) error
	GetAllBookings(ctx context.Context) ([]*models.Booking, error)
	GetActiveBookings(ctx context.Context) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Booking, error)

	GetProperty(ctx context.Context, id string) (*models.Property, error)
	ListProperties(ctx context.Context) ([]*models.Property, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
}

// SyncQueueRepository persists calendar sync attempts.
type SyncQueueRepository interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	GetSyncTask(ctx context.Context, id int64) (*models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string) error
}

// Catalog resolves the external entities a booking points at.
type Catalog interface {
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListProperties(ctx context.Context) ([]*models.Property, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier is the user-facing notification sink. Implementations must not block
// the caller on delivery and never report failures back.
type Notifier interface {
	Notify(ctx context.Context, kind string, payload interface{})
}

// CalendarSyncer mirrors a booking into an external calendar.
type CalendarSyncer interface {
	SyncBooking(ctx context.Context, calendarID string, event models.CalendarEvent) error
}

// SyncRequest is everything the dispatcher needs to build an external event.
type SyncRequest struct {
	Booking  *models.Booking
	Property *models.Property
	Customer *models.Customer
}

// SyncDispatcher schedules a best-effort calendar sync off the caller's path.
type SyncDispatcher interface {
	Dispatch(ctx context.Context, req SyncRequest) error
}

// IdempotencyStore remembers which booking a client request key produced.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, bookingID string) error
}

// BookingService is the surface exposed to the HTTP and gRPC transports.
type BookingService interface {
	CreateBooking(ctx context.Context, in models.CreateBookingInput) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error)
	TransitionStatus(ctx context.Context, id string, to models.Status) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	CheckAvailability(ctx context.Context, propertyID string, interval models.Interval) (string, bool, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error)
	GetMonthView(ctx context.Context, propertyID, status string, year int, month time.Month) (*models.MonthView, error)
	GetDayDetail(ctx context.Context, propertyID, status string, date time.Time) ([]*models.Booking, error)
}
